// Package maintenance keeps the corpus database tidy: it removes chunks of
// deleted samples and refreshes SQLite statistics, on a cron schedule or on
// demand.
package maintenance

import (
	"context"
	"encoding/json"
	"time"
)

// Task is one unit of database maintenance.
type Task interface {
	Name() string
	Description() string
	Execute(ctx context.Context) TaskResult
	// IsDestructive reports whether the task deletes rows.
	IsDestructive() bool
}

// TaskResult is the outcome of one Execute call.
type TaskResult struct {
	Success          bool          `json:"success"`
	Duration         time.Duration `json:"duration"`
	Message          string        `json:"message"`
	RecordsProcessed int           `json:"records_processed,omitempty"`
	SpaceReclaimed   int64         `json:"space_reclaimed,omitempty"`
	Error            error         `json:"-"`
}

// MarshalJSON adds the error text, which error values cannot carry on their own.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	type plain TaskResult
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// TaskStatus is what the scheduler knows about a registered task.
type TaskStatus struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Destructive bool       `json:"destructive"`
	Schedule    string     `json:"schedule"`
	LastRun     time.Time  `json:"last_run"`
	NextRun     time.Time  `json:"next_run"`
	LastResult  TaskResult `json:"last_result"`
}

// Config configures a Scheduler.
type Config struct {
	Enabled bool
	// Schedule is a 5-field cron spec or an @every/@daily descriptor.
	Schedule string
	Vacuum   bool
}
