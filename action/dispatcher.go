package action

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/observability"
)

// AuditType tags action audit entries.
const AuditType = "action"

// Options configures a Dispatcher.
type Options struct {
	// StateFilter selects the providers refreshed before each action.
	StateFilter []string
	Logger      logging.Logger
	Metrics     *observability.Metrics
}

// Dispatcher executes the actions named by response memories.
type Dispatcher struct {
	opts Options
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		StateFilter: []string{"RECENT_MESSAGES"},
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{opts: opts}
}

// Process runs the actions named by each response in order. State is
// recomposed before every action, so the state argument only documents the
// caller's view. Unresolved actions and actions without a handler are logged
// and skipped. The first handler error aborts the whole batch.
func (d *Dispatcher) Process(
	ctx context.Context,
	rt core.Runtime,
	message *core.Memory,
	responses []*core.Memory,
	_ *core.State,
	callback core.HandlerCallback,
) error {
	for _, response := range responses {
		if response == nil || len(response.Content.Actions) == 0 {
			d.opts.Logger.Warn("no actions found in response", "message_id", message.ID)
			continue
		}

		for _, name := range response.Content.Actions {
			if err := d.run(ctx, rt, message, responses, callback, name); err != nil {
				return err
			}
		}
	}

	return nil
}

func (d *Dispatcher) run(
	ctx context.Context,
	rt core.Runtime,
	message *core.Memory,
	responses []*core.Memory,
	callback core.HandlerCallback,
	name string,
) error {
	state, err := rt.ComposeState(ctx, message, d.opts.StateFilter, nil)
	if err != nil {
		return err
	}

	act, ok := Resolve(rt.Actions(), name)
	if !ok {
		d.opts.Logger.Error("no action found", "action", name, "message_id", message.ID)
		d.opts.Metrics.IncAction(name, "unresolved")

		return nil
	}

	handler := act.Handler()
	if handler == nil {
		d.opts.Logger.Error("action has no handler", "action", act.Name(), "message_id", message.ID)
		d.opts.Metrics.IncAction(act.Name(), "no_handler")

		return nil
	}

	payload := core.EventPayload{Runtime: rt, Message: message, Data: map[string]any{"action": act.Name()}}
	d.emit(ctx, rt, payload, core.EventActionStarted)

	ctx, span := observability.StartSpan(ctx, observability.SpanAction,
		attribute.String(observability.AttrName, act.Name()),
		attribute.String(observability.AttrMessageID, message.ID))
	defer span.End()

	d.opts.Logger.Debug("executing action", "action", act.Name(), "requested", name)

	_, err = handler(ctx, rt, message, state, map[string]any{}, callback, responses)
	observability.MarkSpanResult(span, err)

	if err != nil {
		d.opts.Metrics.IncAction(act.Name(), "error")
		d.opts.Logger.Error("action failed", "action", act.Name(), "error", err)

		return &core.HandlerError{Kind: "action", Name: act.Name(), Err: err}
	}

	d.opts.Metrics.IncAction(act.Name(), "success")
	d.emit(ctx, rt, payload, core.EventActionCompleted)

	if db := rt.Adapter(); db != nil {
		return db.Log(ctx, core.LogEntry{
			EntityID: message.EntityID,
			RoomID:   message.RoomID,
			Type:     AuditType,
			Body: map[string]any{
				"action":    act.Name(),
				"message":   message.Content.Text,
				"messageId": message.ID,
				"state":     state,
				"responses": responses,
			},
		})
	}

	return nil
}

func (d *Dispatcher) emit(ctx context.Context, rt core.Runtime, payload core.EventPayload, event core.EventType) {
	if err := rt.EmitEvent(ctx, payload, event); err != nil {
		d.opts.Logger.Warn("failed to emit event", "event", event, "error", err)
	}
}
