package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/hupe1980/plugmesh/action"
	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/evaluator"
	"github.com/hupe1980/plugmesh/event"
	"github.com/hupe1980/plugmesh/knowledge"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/model"
	"github.com/hupe1980/plugmesh/observability"
	"github.com/hupe1980/plugmesh/service"
	"github.com/hupe1980/plugmesh/state"
	"github.com/hupe1980/plugmesh/task"
)

// SettingsSource is the process-wide configuration consulted last by
// GetSetting. *viper.Viper satisfies it.
type SettingsSource interface {
	Get(key string) any
}

// Options configures an Engine.
type Options struct {
	// Plugins are installed by Initialize before the plugins named by the
	// character.
	Plugins []core.Plugin

	// Catalog resolves the character's plugin names. Names already
	// installed through Plugins are not looked up.
	Catalog *Catalog

	// Adapter is bound before any plugin is installed. A plugin adapter is
	// only used when this is nil.
	Adapter core.DatabaseAdapter

	Settings SettingsSource

	// ModelStrategy selects among handlers registered for a model type.
	// Defaults to model.FirstRegistered.
	ModelStrategy model.SelectionStrategy

	StateCacheSize int
	EventQueueSize int

	// Splitter and Chunking configure knowledge ingestion.
	Splitter knowledge.Splitter
	Chunking knowledge.ChunkOptions

	Logger  logging.Logger
	Metrics *observability.Metrics
}

// Engine is the agent runtime. It implements core.Runtime.
type Engine struct {
	character *core.Character
	agentID   string
	catalog   *Catalog
	initial   []core.Plugin
	settings  SettingsSource
	logger    logging.Logger
	metrics   *observability.Metrics

	mu          sync.RWMutex
	adapter     core.DatabaseAdapter
	plugins     []string
	installed   map[string]struct{}
	actions     []core.Action
	providers   []core.Provider
	evaluators  []core.Evaluator
	routes      []core.Route
	initialized bool

	settingsMu sync.RWMutex

	models     *model.Registry
	services   *service.Registry
	tasks      *task.Registry
	scheduler  *task.Scheduler
	events     *event.Bus
	composer   *state.Composer
	dispatcher *action.Dispatcher
	evaluator  *evaluator.Runner
	knowledge  *knowledge.Service
}

var _ core.Runtime = (*Engine)(nil)

// New creates an engine for character. The character is copied; later
// changes by the caller are not observed. A character without an id gets
// one derived from its name.
func New(character *core.Character, optFns ...func(o *Options)) (*Engine, error) {
	if character == nil || character.Name == "" {
		return nil, fmt.Errorf("character name is required")
	}

	opts := Options{
		Catalog:        NewCatalog(),
		ModelStrategy:  model.FirstRegistered{},
		StateCacheSize: state.DefaultCacheSize,
		EventQueueSize: 64,
		Chunking:       knowledge.DefaultChunkOptions(),
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	char := copyCharacter(character)
	if char.ID == "" {
		char.ID = core.DeterministicID(char.Name)
	}

	logger := opts.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithAgent(char.ID)
	}

	composer, err := state.NewComposer(func(o *state.Options) {
		o.CacheSize = opts.StateCacheSize
		o.Logger = logging.Component(logger, "state")
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create state composer: %w", err)
	}

	e := &Engine{
		character: char,
		agentID:   char.ID,
		catalog:   opts.Catalog,
		initial:   opts.Plugins,
		settings:  opts.Settings,
		logger:    logger,
		metrics:   opts.Metrics,
		adapter:   opts.Adapter,
		installed: make(map[string]struct{}),
		models: model.NewRegistry(func(o *model.Options) {
			o.Strategy = opts.ModelStrategy
			o.Logger = logging.Component(logger, "model")
			o.Metrics = opts.Metrics
		}),
		services: service.NewRegistry(logging.Component(logger, "service")),
		tasks:    task.NewRegistry(logging.Component(logger, "task")),
		events: event.NewBus(func(o *event.Options) {
			o.QueueSize = opts.EventQueueSize
			o.Logger = logging.Component(logger, "event")
			o.Metrics = opts.Metrics
		}),
		composer: composer,
		dispatcher: action.NewDispatcher(func(o *action.Options) {
			o.Logger = logging.Component(logger, "action")
			o.Metrics = opts.Metrics
		}),
		evaluator: evaluator.NewRunner(func(o *evaluator.Options) {
			o.Logger = logging.Component(logger, "evaluator")
			o.Metrics = opts.Metrics
		}),
		knowledge: knowledge.NewService(func(o *knowledge.Options) {
			o.Splitter = opts.Splitter
			o.Chunking = opts.Chunking
			o.Logger = logging.Component(logger, "knowledge")
		}),
	}

	e.scheduler = task.NewScheduler(e, logging.Component(logger, "scheduler"))

	return e, nil
}

func copyCharacter(c *core.Character) *core.Character {
	out := *c
	out.Bio = append([]string(nil), c.Bio...)
	out.Plugins = append([]string(nil), c.Plugins...)
	out.Knowledge = append([]string(nil), c.Knowledge...)
	out.Settings = maps.Clone(c.Settings)
	out.Secrets = maps.Clone(c.Secrets)
	out.Templates = maps.Clone(c.Templates)

	if out.Settings == nil {
		out.Settings = make(map[string]any)
	}

	if out.Secrets == nil {
		out.Secrets = make(map[string]string)
	}

	return &out
}

// AgentID implements core.Runtime.
func (e *Engine) AgentID() string { return e.agentID }

// Character implements core.Runtime.
func (e *Engine) Character() *core.Character { return e.character }

// Logger implements core.Runtime.
func (e *Engine) Logger() logging.Logger { return e.logger }

// Metrics returns the metrics the engine reports to, possibly nil.
func (e *Engine) Metrics() *observability.Metrics { return e.metrics }

// Adapter implements core.Runtime.
func (e *Engine) Adapter() core.DatabaseAdapter {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.adapter
}

// Actions implements core.Runtime.
func (e *Engine) Actions() []core.Action {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]core.Action(nil), e.actions...)
}

// Providers implements core.Runtime.
func (e *Engine) Providers() []core.Provider {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]core.Provider(nil), e.providers...)
}

// Evaluators implements core.Runtime.
func (e *Engine) Evaluators() []core.Evaluator {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]core.Evaluator(nil), e.evaluators...)
}

// Routes returns the plugin routes in installation order.
func (e *Engine) Routes() []core.Route {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]core.Route(nil), e.routes...)
}

// Plugins returns the names of installed plugins in installation order.
func (e *Engine) Plugins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]string(nil), e.plugins...)
}

// GetService implements core.Runtime.
func (e *Engine) GetService(serviceType string) core.Service {
	return e.services.Get(serviceType)
}

// GetTaskWorker implements core.Runtime.
func (e *Engine) GetTaskWorker(name string) (core.TaskWorker, bool) {
	return e.tasks.Get(name)
}

// RegisterTaskWorker adds or replaces a task worker.
func (e *Engine) RegisterTaskWorker(w core.TaskWorker) { e.tasks.Register(w) }

// ScheduleTask runs task on a cron schedule and returns its id.
func (e *Engine) ScheduleTask(spec string, t core.Task) (string, error) {
	return e.scheduler.Schedule(spec, t)
}

// UnscheduleTask removes a scheduled task.
func (e *Engine) UnscheduleTask(taskID string) { e.scheduler.Unschedule(taskID) }

// RunTask executes task once with its registered worker.
func (e *Engine) RunTask(ctx context.Context, t core.Task) error {
	return e.scheduler.Run(ctx, t)
}

// RegisterModel appends handler for modelType.
func (e *Engine) RegisterModel(modelType core.ModelType, handler core.ModelHandler) {
	e.models.Register(modelType, handler)
}

// UseModel implements core.Runtime.
func (e *Engine) UseModel(ctx context.Context, modelType core.ModelType, params core.ModelParams) (any, error) {
	return e.models.Invoke(ctx, e, modelType, params)
}

// On subscribes handler to event.
func (e *Engine) On(event core.EventType, handler core.EventHandler) {
	e.events.On(event, handler)
}

// EmitEvent implements core.Runtime. A payload without a runtime is
// delivered with this engine set.
func (e *Engine) EmitEvent(ctx context.Context, payload core.EventPayload, events ...core.EventType) error {
	if payload.Runtime == nil {
		payload.Runtime = e
	}

	return e.events.Emit(ctx, payload, events...)
}

// ComposeState implements core.Runtime.
func (e *Engine) ComposeState(ctx context.Context, message *core.Memory, filter, include []string) (*core.State, error) {
	return e.composer.Compose(ctx, e, message, filter, include)
}

// ProcessActions runs the actions named by responses. The first handler
// failure aborts the batch.
func (e *Engine) ProcessActions(ctx context.Context, message *core.Memory, responses []*core.Memory, st *core.State, callback core.HandlerCallback) error {
	return e.dispatcher.Process(ctx, e, message, responses, st, callback)
}

// Evaluate runs the evaluators selected for message and returns them.
func (e *Engine) Evaluate(ctx context.Context, message *core.Memory, st *core.State, didRespond bool, callback core.HandlerCallback, responses []*core.Memory) ([]core.Evaluator, error) {
	return e.evaluator.Evaluate(ctx, e, message, st, didRespond, callback, responses)
}

// AddKnowledge ingests item as a document with embedded fragments.
func (e *Engine) AddKnowledge(ctx context.Context, item core.KnowledgeItem, opts knowledge.ChunkOptions) error {
	return e.knowledge.AddKnowledge(ctx, e, item, opts)
}

// GetKnowledge implements core.Runtime.
func (e *Engine) GetKnowledge(ctx context.Context, message *core.Memory) ([]core.KnowledgeItem, error) {
	return e.knowledge.GetKnowledge(ctx, e, message)
}

// Stop shuts the runtime down. Every step runs; failures are joined.
func (e *Engine) Stop(ctx context.Context) error {
	e.scheduler.Stop(ctx)

	var errs []error

	if err := e.events.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close event bus: %w", err))
	}

	if err := e.services.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}

	if db := e.Adapter(); db != nil {
		if err := db.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close adapter: %w", err))
		}
	}

	e.logger.Info("agent stopped", "agent_id", e.agentID)

	return errors.Join(errs...)
}
