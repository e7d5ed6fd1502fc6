package core

import "context"

// HandlerCallback delivers response content produced by an action or
// evaluator, for example to a messaging platform. It returns the memories
// that were recorded for the delivered content.
type HandlerCallback func(ctx context.Context, content Content) ([]*Memory, error)

// Handler is the shared signature of action and evaluator handlers.
type Handler func(
	ctx context.Context,
	rt Runtime,
	message *Memory,
	state *State,
	options map[string]any,
	callback HandlerCallback,
	responses []*Memory,
) (any, error)

// Validator decides whether an action or evaluator applies to a message.
type Validator func(ctx context.Context, rt Runtime, message *Memory, state *State) (bool, error)

// ProviderFunc produces context for a message given the cached state.
type ProviderFunc func(ctx context.Context, rt Runtime, message *Memory, state *State) (ProviderResult, error)

// Provider is a named context source.
type Provider interface {
	Name() string
	Description() string
	// Position is the merge sort key. Lower positions merge first.
	Position() int
	// Private providers only run when explicitly included.
	Private() bool
	// Dynamic providers only run when explicitly included.
	Dynamic() bool
	Get(ctx context.Context, rt Runtime, message *Memory, state *State) (ProviderResult, error)
}

// Action is a named capability a response can request.
type Action interface {
	Name() string
	Description() string
	Similes() []string
	Validate(ctx context.Context, rt Runtime, message *Memory, state *State) (bool, error)
	// Handler returns nil when the action has no implementation.
	Handler() Handler
}

// Evaluator is a post-hoc judge that runs after a response cycle.
type Evaluator interface {
	Name() string
	Description() string
	Similes() []string
	AlwaysRun() bool
	Validate(ctx context.Context, rt Runtime, message *Memory, state *State) (bool, error)
	// Handler returns nil when the evaluator has no implementation.
	Handler() Handler
}

// ProviderOptions configures NewProvider.
type ProviderOptions struct {
	Description string
	Position    int
	Private     bool
	Dynamic     bool
}

type funcProvider struct {
	name string
	opts ProviderOptions
	fn   ProviderFunc
}

// NewProvider wraps fn as a Provider.
func NewProvider(name string, fn ProviderFunc, optFns ...func(o *ProviderOptions)) Provider {
	opts := ProviderOptions{}
	for _, f := range optFns {
		f(&opts)
	}

	return &funcProvider{name: name, opts: opts, fn: fn}
}

func (p *funcProvider) Name() string        { return p.name }
func (p *funcProvider) Description() string { return p.opts.Description }
func (p *funcProvider) Position() int       { return p.opts.Position }
func (p *funcProvider) Private() bool       { return p.opts.Private }
func (p *funcProvider) Dynamic() bool       { return p.opts.Dynamic }

func (p *funcProvider) Get(ctx context.Context, rt Runtime, message *Memory, state *State) (ProviderResult, error) {
	return p.fn(ctx, rt, message, state)
}

// ActionOptions configures NewAction and NewEvaluator.
type ActionOptions struct {
	Description string
	Similes     []string
	// Validate defaults to always true.
	Validate Validator
	// AlwaysRun only applies to evaluators.
	AlwaysRun bool
}

type funcAction struct {
	name    string
	opts    ActionOptions
	handler Handler
}

func newFuncAction(name string, handler Handler, optFns []func(o *ActionOptions)) *funcAction {
	opts := ActionOptions{}
	for _, f := range optFns {
		f(&opts)
	}

	return &funcAction{name: name, opts: opts, handler: handler}
}

// NewAction wraps handler as an Action. A nil handler yields an action that
// resolves but cannot run.
func NewAction(name string, handler Handler, optFns ...func(o *ActionOptions)) Action {
	return newFuncAction(name, handler, optFns)
}

// NewEvaluator wraps handler as an Evaluator.
func NewEvaluator(name string, handler Handler, optFns ...func(o *ActionOptions)) Evaluator {
	return newFuncAction(name, handler, optFns)
}

func (a *funcAction) Name() string        { return a.name }
func (a *funcAction) Description() string { return a.opts.Description }
func (a *funcAction) Similes() []string   { return a.opts.Similes }
func (a *funcAction) AlwaysRun() bool     { return a.opts.AlwaysRun }
func (a *funcAction) Handler() Handler    { return a.handler }

func (a *funcAction) Validate(ctx context.Context, rt Runtime, message *Memory, state *State) (bool, error) {
	if a.opts.Validate == nil {
		return true, nil
	}

	return a.opts.Validate(ctx, rt, message, state)
}
