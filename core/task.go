package core

import "context"

// Task is a unit of background work addressed to a named worker.
type Task struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	RoomID   string         `json:"roomId,omitempty"`
	WorldID  string         `json:"worldId,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskWorker executes tasks with a matching name.
type TaskWorker struct {
	Name     string
	Validate Validator
	Execute  func(ctx context.Context, rt Runtime, options map[string]any, task Task) error
}
