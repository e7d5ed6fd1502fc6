// Package task holds named background task workers and schedules recurring
// task executions with cron expressions.
package task

import (
	"sync"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
)

// Registry maps worker names to workers. Unlike services, a name collision
// overwrites the earlier registration.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]core.TaskWorker
	logger  logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Registry{workers: make(map[string]core.TaskWorker), logger: logger}
}

// Register stores w under its name, replacing any previous worker.
func (r *Registry) Register(w core.TaskWorker) {
	r.mu.Lock()
	_, exists := r.workers[w.Name]
	r.workers[w.Name] = w
	r.mu.Unlock()

	if exists {
		r.logger.Warn("task worker already registered, overwriting", "worker", w.Name)
	}
}

// Get returns the worker registered under name.
func (r *Registry) Get(name string) (core.TaskWorker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[name]

	return w, ok
}
