// Package evaluator runs post-hoc evaluators after a response cycle.
package evaluator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/observability"
)

// AuditType tags evaluator audit entries.
const AuditType = "evaluator"

// Options configures a Runner.
type Options struct {
	// StateInclude lists the providers forced into the state handed to
	// selected evaluators.
	StateInclude []string
	Logger       logging.Logger
	Metrics      *observability.Metrics
}

// Runner validates and executes evaluators.
type Runner struct {
	opts Options
}

// NewRunner creates a runner.
func NewRunner(optFns ...func(o *Options)) *Runner {
	opts := Options{
		StateInclude: []string{"RECENT_MESSAGES", "EVALUATORS"},
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{opts: opts}
}

// Evaluate validates every registered evaluator concurrently and runs the
// handlers of those selected, also concurrently, against a recomposed state.
// An evaluator is skipped without validation when it has no handler, or when
// didRespond is false and it is not marked AlwaysRun. When nothing is
// selected the state is not recomposed. The selected evaluators are returned.
func (r *Runner) Evaluate(
	ctx context.Context,
	rt core.Runtime,
	message *core.Memory,
	state *core.State,
	didRespond bool,
	callback core.HandlerCallback,
	responses []*core.Memory,
) ([]core.Evaluator, error) {
	selected, err := r.validate(ctx, rt, message, state, didRespond)
	if err != nil {
		return nil, err
	}

	if len(selected) == 0 {
		return []core.Evaluator{}, nil
	}

	state, err = rt.ComposeState(ctx, message, nil, r.opts.StateInclude)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, ev := range selected {
		ev := ev

		g.Go(func() error {
			return r.run(gctx, rt, ev, message, state, callback, responses)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return selected, nil
}

func (r *Runner) validate(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State, didRespond bool) ([]core.Evaluator, error) {
	evaluators := rt.Evaluators()
	ok := make([]bool, len(evaluators))

	g, gctx := errgroup.WithContext(ctx)

	for i, ev := range evaluators {
		i, ev := i, ev

		if ev.Handler() == nil {
			continue
		}

		if !didRespond && !ev.AlwaysRun() {
			continue
		}

		g.Go(func() error {
			valid, err := ev.Validate(gctx, rt, message, state)
			if err != nil {
				return &core.HandlerError{Kind: "evaluator validation", Name: ev.Name(), Err: err}
			}

			ok[i] = valid

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	selected := make([]core.Evaluator, 0, len(evaluators))

	for i, ev := range evaluators {
		if ok[i] {
			selected = append(selected, ev)
		}
	}

	return selected, nil
}

func (r *Runner) run(
	ctx context.Context,
	rt core.Runtime,
	ev core.Evaluator,
	message *core.Memory,
	state *core.State,
	callback core.HandlerCallback,
	responses []*core.Memory,
) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanEvaluate,
		attribute.String(observability.AttrName, ev.Name()),
		attribute.String(observability.AttrMessageID, message.ID))
	defer span.End()

	payload := core.EventPayload{Runtime: rt, Message: message, Data: map[string]any{"evaluator": ev.Name()}}
	if err := rt.EmitEvent(ctx, payload, core.EventEvaluatorStarted); err != nil {
		r.opts.Logger.Warn("failed to emit event", "event", core.EventEvaluatorStarted, "error", err)
	}

	_, err := ev.Handler()(ctx, rt, message, state, map[string]any{}, callback, responses)
	observability.MarkSpanResult(span, err)
	r.opts.Metrics.IncEvaluator(ev.Name(), err)

	if err != nil {
		r.opts.Logger.Error("evaluator failed", "evaluator", ev.Name(), "error", err)
		return &core.HandlerError{Kind: "evaluator", Name: ev.Name(), Err: err}
	}

	if db := rt.Adapter(); db != nil {
		return db.Log(ctx, core.LogEntry{
			EntityID: message.EntityID,
			RoomID:   message.RoomID,
			Type:     AuditType,
			Body: map[string]any{
				"evaluator": ev.Name(),
				"messageId": message.ID,
				"message":   message.Content.Text,
				"state":     state,
			},
		})
	}

	return nil
}
