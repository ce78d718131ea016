package maintenance

import (
	"context"
	"database/sql"
	"fmt"

	"chunkchain/internal/database"
	"chunkchain/internal/logger"
)

// DatabaseMaintenanceTask refreshes planner statistics and optionally
// rebuilds the database file.
type DatabaseMaintenanceTask struct {
	db     *sql.DB
	vacuum bool
	logger logger.Logger
}

// NewDatabaseMaintenanceTask creates a new database maintenance task
func NewDatabaseMaintenanceTask(db *sql.DB, vacuum bool, log logger.Logger) *DatabaseMaintenanceTask {
	if log == nil {
		log = logger.Nop()
	}

	return &DatabaseMaintenanceTask{
		db:     db,
		vacuum: vacuum,
		logger: log,
	}
}

// Name returns the task name
func (t *DatabaseMaintenanceTask) Name() string {
	return "database_maintenance"
}

// Description returns the task description
func (t *DatabaseMaintenanceTask) Description() string {
	if t.vacuum {
		return "Optimize query planner statistics and VACUUM the database"
	}
	return "Optimize query planner statistics"
}

// Execute runs the database maintenance task
func (t *DatabaseMaintenanceTask) Execute(ctx context.Context) TaskResult {
	initialSize, err := t.getDatabaseSize(ctx)
	if err != nil {
		return TaskResult{
			Success: false,
			Message: "Failed to get database size",
			Error:   err,
		}
	}

	if err := database.Optimize(ctx, t.db, t.vacuum); err != nil {
		return TaskResult{
			Success: false,
			Message: "Database optimization failed",
			Error:   err,
		}
	}

	finalSize, err := t.getDatabaseSize(ctx)
	if err != nil {
		t.logger.Warn("could not read database size after maintenance", "error", err)
		finalSize = initialSize
	}

	reclaimed := max(initialSize-finalSize, 0)
	message := fmt.Sprintf("Database maintenance completed. Database size: %.1f MB", float64(finalSize)/(1024*1024))
	if reclaimed > 0 {
		message += fmt.Sprintf(", Space reclaimed: %.1f MB", float64(reclaimed)/(1024*1024))
	}

	return TaskResult{
		Success:        true,
		Message:        message,
		SpaceReclaimed: reclaimed,
	}
}

// IsDestructive returns false since VACUUM keeps every row
func (t *DatabaseMaintenanceTask) IsDestructive() bool {
	return false
}

// getDatabaseSize returns the size of the database in bytes
func (t *DatabaseMaintenanceTask) getDatabaseSize(ctx context.Context) (int64, error) {
	var size int64
	err := t.db.QueryRowContext(ctx,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").Scan(&size)
	return size, err
}
