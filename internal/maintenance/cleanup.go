package maintenance

import (
	"context"
	"database/sql"
	"fmt"

	"chunkchain/internal/chunkstore"
	"chunkchain/internal/logger"
)

// OrphanChunkCleanupTask removes chunks whose sample no longer exists.
// Chunk tables carry no foreign key to text_samples, so a sample removed
// outside the corpus service leaves its chunks behind.
type OrphanChunkCleanupTask struct {
	db     *sql.DB
	tables []chunkstore.Table
	logger logger.Logger
}

// NewOrphanChunkCleanupTask creates a cleanup task over both chunk tables
func NewOrphanChunkCleanupTask(db *sql.DB, log logger.Logger) *OrphanChunkCleanupTask {
	if log == nil {
		log = logger.Nop()
	}

	return &OrphanChunkCleanupTask{
		db:     db,
		tables: []chunkstore.Table{chunkstore.WordChunks, chunkstore.SentenceChunks},
		logger: log,
	}
}

// Name returns the task name
func (t *OrphanChunkCleanupTask) Name() string {
	return "orphan_chunk_cleanup"
}

// Description returns the task description
func (t *OrphanChunkCleanupTask) Description() string {
	return "Delete chunks that belong to deleted text samples"
}

// Execute runs the cleanup in one transaction
func (t *OrphanChunkCleanupTask) Execute(ctx context.Context) TaskResult {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return TaskResult{
			Success: false,
			Message: "Failed to start transaction",
			Error:   err,
		}
	}
	defer tx.Rollback()

	var total int
	for _, table := range t.tables {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+string(table)+`
			WHERE sample_id NOT IN (SELECT id FROM text_samples)`)
		if err != nil {
			return TaskResult{
				Success: false,
				Message: fmt.Sprintf("Failed to clean up %s", table),
				Error:   err,
			}
		}

		n, err := res.RowsAffected()
		if err != nil {
			t.logger.Warn("could not get rows affected", "table", table, "error", err)
			n = 0
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return TaskResult{
			Success: false,
			Message: "Failed to commit cleanup transaction",
			Error:   err,
		}
	}

	return TaskResult{
		Success:          true,
		RecordsProcessed: total,
		Message:          fmt.Sprintf("Cleaned up %d orphaned chunks", total),
	}
}

// IsDestructive returns true since this task deletes data
func (t *OrphanChunkCleanupTask) IsDestructive() bool {
	return true
}
