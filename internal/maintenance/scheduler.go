package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chunkchain/internal/logger"
)

// Scheduler runs registered tasks on the configured cron schedule. Every
// task shares the one schedule.
type Scheduler struct {
	config  Config
	cron    *cron.Cron
	tasks   map[string]Task
	entries map[string]cron.EntryID
	status  map[string]TaskStatus
	mu      sync.RWMutex
	running bool
	logger  logger.Logger
}

// NewScheduler creates a new maintenance scheduler
func NewScheduler(config Config, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}

	return &Scheduler{
		config:  config,
		cron:    cron.New(),
		tasks:   make(map[string]Task),
		entries: make(map[string]cron.EntryID),
		status:  make(map[string]TaskStatus),
		logger:  log.With("component", "maintenance"),
	}
}

// RegisterTask registers a maintenance task with the scheduler
func (s *Scheduler) RegisterTask(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := task.Name()
	s.tasks[name] = task
	s.status[name] = TaskStatus{
		Name:        name,
		Description: task.Description(),
		Destructive: task.IsDestructive(),
		Schedule:    s.config.Schedule,
	}

	s.logger.Debug("registered task", "task", name)
}

// Start begins the maintenance scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if !s.config.Enabled {
		s.logger.Info("scheduler disabled in configuration")
		return nil
	}

	for name, task := range s.tasks {
		id, err := s.cron.AddFunc(s.config.Schedule, func() {
			s.executeTask(context.Background(), name, task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
		s.entries[name] = id
	}

	s.cron.Start()
	s.running = true

	for name, id := range s.entries {
		status := s.status[name]
		status.NextRun = s.cron.Entry(id).Next
		s.status[name] = status
	}

	s.logger.Info("scheduler started", "tasks", len(s.tasks), "schedule", s.config.Schedule)
	return nil
}

// Stop stops the maintenance scheduler and waits for running tasks
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		s.logger.Info("scheduler stopped")
	case <-time.After(30 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
}

// RunNow executes all maintenance tasks immediately and returns their results
func (s *Scheduler) RunNow(ctx context.Context) map[string]TaskResult {
	s.mu.RLock()
	tasks := make(map[string]Task, len(s.tasks))
	for name, task := range s.tasks {
		tasks[name] = task
	}
	s.mu.RUnlock()

	results := make(map[string]TaskResult, len(tasks))
	for name, task := range tasks {
		results[name] = s.executeTask(ctx, name, task)
	}
	return results
}

// GetStatus returns the current status of all maintenance tasks
func (s *Scheduler) GetStatus() map[string]TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := make(map[string]TaskStatus, len(s.status))
	for name, stat := range s.status {
		status[name] = stat
	}
	return status
}

// NextRun returns when the schedule next fires after t, whether or not the
// scheduler is running. A disabled scheduler returns the zero time.
func (s *Scheduler) NextRun(t time.Time) (time.Time, error) {
	if !s.config.Enabled {
		return time.Time{}, nil
	}
	sched, err := cron.ParseStandard(s.config.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", s.config.Schedule, err)
	}
	return sched.Next(t), nil
}

// IsRunning returns true if the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// executeTask runs a single maintenance task and updates its status
func (s *Scheduler) executeTask(ctx context.Context, name string, task Task) TaskResult {
	start := time.Now()
	result := task.Execute(ctx)
	result.Duration = time.Since(start)

	s.mu.Lock()
	status := s.status[name]
	status.LastRun = start
	status.LastResult = result
	if id, ok := s.entries[name]; ok && s.running {
		status.NextRun = s.cron.Entry(id).Next
	}
	s.status[name] = status
	s.mu.Unlock()

	if result.Success {
		s.logger.Info("task completed", "task", name, "duration", result.Duration,
			"message", result.Message, "records", result.RecordsProcessed, "reclaimed", result.SpaceReclaimed)
	} else {
		s.logger.Error("task failed", "task", name, "duration", result.Duration,
			"message", result.Message, "error", result.Error)
	}
	return result
}
