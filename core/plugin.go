package core

import (
	"context"
	"net/http"
)

// RouteHandler serves an HTTP route contributed by a plugin.
type RouteHandler func(w http.ResponseWriter, r *http.Request, rt Runtime)

// Route is an HTTP endpoint contributed by a plugin.
type Route struct {
	Name    string
	Type    string // HTTP method
	Path    string
	Public  bool
	Handler RouteHandler
}

// EventSubscription subscribes Handler to Event. A plugin's subscriptions are
// registered in declaration order.
type EventSubscription struct {
	Event   EventType
	Handler EventHandler
}

// Plugin bundles any subset of capabilities. Zero-valued fields are skipped
// during installation.
type Plugin struct {
	Name        string
	Description string

	// Config is handed to Init. When ConfigSchema is set Config is validated
	// against it before Init runs.
	Config       map[string]any
	ConfigSchema map[string]any
	Init         func(ctx context.Context, config map[string]any, rt Runtime) error

	Adapter     DatabaseAdapter
	Actions     []Action
	Evaluators  []Evaluator
	Providers   []Provider
	Models      map[ModelType]ModelHandler
	Routes      []Route
	Events      []EventSubscription
	Services    []ServiceDescriptor
	TaskWorkers []TaskWorker
}
