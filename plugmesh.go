// Package plugmesh is the entry point for building an agent runtime from a
// character and a set of plugins. Most applications:
//  1. Load or declare a core.Character
//  2. Create an Agent via New (optionally supplying a durable DatabaseAdapter)
//  3. Call Start, then feed messages through HandleMessage or Run
//
// The façade wires the engine, the turn runner and the bootstrap plugin
// together. Defaults are suitable for local development: an in-process
// database adapter and the plugins of DefaultCatalog.
package plugmesh

import (
	"context"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/engine"
	"github.com/hupe1980/plugmesh/knowledge"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/memory"
	"github.com/hupe1980/plugmesh/model/anthropic"
	"github.com/hupe1980/plugmesh/model/openai"
	"github.com/hupe1980/plugmesh/observability"
	"github.com/hupe1980/plugmesh/plugins/bootstrap"
	"github.com/hupe1980/plugmesh/runner"
)

// Options configures an Agent.
type Options struct {
	// Adapter defaults to an in-process memory.InMemoryStore.
	Adapter core.DatabaseAdapter
	// Plugins are installed before the plugins named by the character.
	// Defaults to the bootstrap plugin.
	Plugins []core.Plugin
	// Catalog resolves character plugin names. Defaults to DefaultCatalog.
	Catalog  *engine.Catalog
	Settings engine.SettingsSource

	Chunking       knowledge.ChunkOptions
	StateCacheSize int

	Logger logging.Logger
	// Metrics defaults to observability.DefaultMetrics.
	Metrics *observability.Metrics

	// RunnerOptions are applied to the turn runner.
	RunnerOptions []func(o *runner.Options)
}

// Agent couples an engine with its turn runner.
type Agent struct {
	*engine.Engine
	runner *runner.Runner
}

// DefaultCatalog returns a catalog holding the plugins shipped with plugmesh.
// Model plugins read their API keys through the runtime settings.
func DefaultCatalog() *engine.Catalog {
	c := engine.NewCatalog()
	c.Add(bootstrap.PluginName, bootstrap.Plugin)
	c.Add(openai.PluginName, func() core.Plugin { return openai.New().Plugin() })
	c.Add(anthropic.PluginName, func() core.Plugin { return anthropic.New().Plugin() })

	return c
}

// New creates an agent for character. Call Start before handling messages.
func New(character *core.Character, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Plugins:        []core.Plugin{bootstrap.Plugin()},
		Chunking:       knowledge.DefaultChunkOptions(),
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Adapter == nil {
		opts.Adapter = memory.NewInMemoryStore()
	}

	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}

	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics()
	}

	eng, err := engine.New(character, func(o *engine.Options) {
		o.Adapter = opts.Adapter
		o.Plugins = opts.Plugins
		o.Catalog = opts.Catalog
		o.Settings = opts.Settings
		o.Chunking = opts.Chunking
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics

		if opts.StateCacheSize > 0 {
			o.StateCacheSize = opts.StateCacheSize
		}
	})
	if err != nil {
		return nil, err
	}

	runnerOpts := append([]func(o *runner.Options){func(o *runner.Options) {
		o.Logger = logging.Component(eng.Logger(), "runner")
		o.Metrics = opts.Metrics
	}}, opts.RunnerOptions...)

	return &Agent{Engine: eng, runner: runner.New(eng, runnerOpts...)}, nil
}

// Start initializes the engine: plugins are installed and the agent is
// bootstrapped in the database.
func (a *Agent) Start(ctx context.Context) error {
	return a.Initialize(ctx)
}

// Runner returns the turn runner of the agent.
func (a *Agent) Runner() *runner.Runner { return a.runner }

// HandleMessage runs one turn for message. See runner.Runner.HandleMessage.
func (a *Agent) HandleMessage(ctx context.Context, message *core.Memory, callback core.HandlerCallback) (*runner.TurnResult, error) {
	return a.runner.HandleMessage(ctx, message, callback)
}

// Run processes message asynchronously. See runner.Runner.Run.
func (a *Agent) Run(ctx context.Context, message *core.Memory) (string, <-chan core.Content, <-chan error, error) {
	return a.runner.Run(ctx, message)
}
