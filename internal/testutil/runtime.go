package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
)

// Runtime is a core.Runtime whose behavior is supplied through its fields.
// Unset function fields fall back to inert defaults.
type Runtime struct {
	ID            string
	Char          *core.Character
	Log           logging.Logger
	DB            core.DatabaseAdapter
	ActionList    []core.Action
	ProviderList  []core.Provider
	EvaluatorList []core.Evaluator
	Settings      map[string]any
	Services      map[string]core.Service
	Workers       map[string]core.TaskWorker

	ModelFn     core.ModelHandler
	ComposeFn   func(ctx context.Context, msg *core.Memory, filter, include []string) (*core.State, error)
	KnowledgeFn func(ctx context.Context, msg *core.Memory) ([]core.KnowledgeItem, error)

	mu      sync.Mutex
	emitted []core.EventType
}

var _ core.Runtime = (*Runtime)(nil)

// NewRuntime returns a stub runtime for the given agent id.
func NewRuntime(agentID string) *Runtime {
	return &Runtime{ID: agentID, Char: &core.Character{ID: agentID, Name: "Test Agent"}, Log: logging.NoOpLogger{}}
}

func (r *Runtime) AgentID() string              { return r.ID }
func (r *Runtime) Character() *core.Character   { return r.Char }
func (r *Runtime) Adapter() core.DatabaseAdapter { return r.DB }
func (r *Runtime) Actions() []core.Action       { return r.ActionList }
func (r *Runtime) Providers() []core.Provider   { return r.ProviderList }
func (r *Runtime) Evaluators() []core.Evaluator { return r.EvaluatorList }

func (r *Runtime) Logger() logging.Logger {
	if r.Log == nil {
		return logging.NoOpLogger{}
	}

	return r.Log
}

func (r *Runtime) GetSetting(key string) any { return r.Settings[key] }

func (r *Runtime) GetService(serviceType string) core.Service { return r.Services[serviceType] }

func (r *Runtime) GetTaskWorker(name string) (core.TaskWorker, bool) {
	w, ok := r.Workers[name]
	return w, ok
}

func (r *Runtime) UseModel(ctx context.Context, _ core.ModelType, params core.ModelParams) (any, error) {
	if r.ModelFn == nil {
		return nil, &core.NotFoundError{Kind: "model handler", Key: "stub"}
	}

	return r.ModelFn(ctx, r, params)
}

func (r *Runtime) ComposeState(ctx context.Context, msg *core.Memory, filter, include []string) (*core.State, error) {
	if r.ComposeFn == nil {
		return core.NewState(), nil
	}

	return r.ComposeFn(ctx, msg, filter, include)
}

func (r *Runtime) GetKnowledge(ctx context.Context, msg *core.Memory) ([]core.KnowledgeItem, error) {
	if r.KnowledgeFn == nil {
		return nil, nil
	}

	return r.KnowledgeFn(ctx, msg)
}

func (r *Runtime) EmitEvent(_ context.Context, _ core.EventPayload, events ...core.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.emitted = append(r.emitted, events...)

	return nil
}

// Emitted returns the event names passed to EmitEvent so far.
func (r *Runtime) Emitted() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]core.EventType(nil), r.emitted...)
}
