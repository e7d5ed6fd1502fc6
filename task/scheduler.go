package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
)

// Scheduler fires tasks on cron schedules. The worker is looked up by task
// name at fire time, so re-registering a worker takes effect immediately.
type Scheduler struct {
	cron    *cron.Cron
	rt      core.Runtime
	logger  logging.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// NewScheduler creates a scheduler that executes workers against rt.
func NewScheduler(rt core.Runtime, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Scheduler{
		cron:    cron.New(),
		rt:      rt,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers task under the standard five-field cron spec (or a
// descriptor such as "@every 1m"). A task id is generated when empty and
// returned.
func (s *Scheduler) Schedule(spec string, t core.Task) (string, error) {
	if t.ID == "" {
		t.ID = core.NewID()
	}

	id, err := s.cron.AddFunc(spec, func() { _ = s.Run(context.Background(), t) })
	if err != nil {
		return "", fmt.Errorf("failed to schedule task %s: %w", t.Name, err)
	}

	s.mu.Lock()
	s.entries[t.ID] = id
	s.mu.Unlock()

	return t.ID, nil
}

// Unschedule removes a scheduled task.
func (s *Scheduler) Unschedule(taskID string) {
	s.mu.Lock()
	id, ok := s.entries[taskID]
	delete(s.entries, taskID)
	s.mu.Unlock()

	if ok {
		s.cron.Remove(id)
	}
}

// Run executes t once with its worker. Unknown workers and worker failures
// are logged and returned.
func (s *Scheduler) Run(ctx context.Context, t core.Task) error {
	w, ok := s.rt.GetTaskWorker(t.Name)
	if !ok || w.Execute == nil {
		s.logger.Warn("no task worker registered", "task", t.Name, "task_id", t.ID)
		return &core.NotFoundError{Kind: "task worker", Key: t.Name}
	}

	if w.Validate != nil {
		okToRun, err := w.Validate(ctx, s.rt, nil, nil)
		if err != nil {
			s.logger.Error("task validation failed", "task", t.Name, "error", err)
			return &core.HandlerError{Kind: "task", Name: t.Name, Err: err}
		}

		if !okToRun {
			return nil
		}
	}

	if err := w.Execute(ctx, s.rt, map[string]any{}, t); err != nil {
		s.logger.Error("task execution failed", "task", t.Name, "task_id", t.ID, "error", err)
		return &core.HandlerError{Kind: "task", Name: t.Name, Err: err}
	}

	return nil
}

// Start begins firing scheduled tasks.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.cron.Start()
		s.running = true
	}
}

// Stop halts the scheduler and waits for running tasks or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
