package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/util"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/observability"
)

// MessageTemplateName is the character template key overriding
// DefaultMessageTemplate.
const MessageTemplateName = "messageHandlerTemplate"

// DefaultMessageTemplate renders the prompt for the response model from the
// composed state values.
const DefaultMessageTemplate = `# Task: Generate dialog and actions for {{.agentName}}.
{{.providers}}

Respond with a single JSON object and nothing else:
{"thought": "<your reasoning>", "text": "<the message to send>", "actions": ["REPLY"]}
Only use action names listed above.`

// Runtime is the part of the engine the runner drives.
type Runtime interface {
	core.Runtime
	ProcessActions(ctx context.Context, message *core.Memory, responses []*core.Memory, st *core.State, callback core.HandlerCallback) error
	Evaluate(ctx context.Context, message *core.Memory, st *core.State, didRespond bool, callback core.HandlerCallback, responses []*core.Memory) ([]core.Evaluator, error)
}

// Options configures a Runner.
type Options struct {
	// ModelType generates the response. Defaults to TEXT_LARGE.
	ModelType core.ModelType
	// StateInclude forces providers into the turn state. Defaults to
	// ACTIONS so the prompt lists the available actions.
	StateInclude []string
	// ContentBufferSize is the buffer of the channel returned by Run.
	ContentBufferSize int
	Logger            logging.Logger
	Metrics           *observability.Metrics
}

// TurnResult describes a completed turn.
type TurnResult struct {
	RunID      string         `json:"runId"`
	Message    *core.Memory   `json:"message"`
	Response   *core.Memory   `json:"response"`
	Sent       []core.Content `json:"sent"`
	Evaluators []string       `json:"evaluators"`
}

// Runner processes incoming messages one turn at a time. Public methods are
// safe for concurrent use.
type Runner struct {
	rt   Runtime
	opts Options

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New creates a runner for rt.
func New(rt Runtime, optFns ...func(o *Options)) *Runner {
	opts := Options{
		ModelType:         core.ModelTypeTextLarge,
		StateInclude:      []string{"ACTIONS"},
		ContentBufferSize: 16,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{rt: rt, opts: opts, activeRuns: make(map[string]context.CancelFunc)}
}

// HandleMessage runs one turn: the message is stored, state is composed, the
// response model is prompted, the response is stored, its actions are
// dispatched and evaluators run. Content passed to the action callback is
// stored as agent messages and forwarded to callback, which may be nil.
func (r *Runner) HandleMessage(ctx context.Context, message *core.Memory, callback core.HandlerCallback) (*TurnResult, error) {
	return r.handle(ctx, core.NewID(), message, callback)
}

func (r *Runner) handle(ctx context.Context, runID string, message *core.Memory, callback core.HandlerCallback) (result *TurnResult, err error) {
	if message == nil || message.RoomID == "" {
		return nil, errors.New("message with room id is required")
	}

	db := r.rt.Adapter()
	if db == nil {
		return nil, errors.New("no database adapter bound")
	}

	if message.ID == "" {
		message.ID = core.NewID()
	}

	if message.AgentID == "" {
		message.AgentID = r.rt.AgentID()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanTurn,
		attribute.String(observability.AttrAgentID, r.rt.AgentID()),
		attribute.String(observability.AttrMessageID, message.ID))
	defer span.End()

	done := r.opts.Metrics.TurnStarted()
	defer done()

	start := time.Now()

	r.emit(ctx, message, map[string]any{"runId": runID}, core.EventRunStarted, core.EventMessageReceived)

	defer func() {
		observability.MarkSpanResult(span, err)

		status := "completed"
		data := map[string]any{"runId": runID, "duration": time.Since(start).Milliseconds()}

		if err != nil {
			status = "error"
			data["error"] = err.Error()
		}

		data["status"] = status
		r.emit(ctx, message, data, core.EventRunEnded)
	}()

	if _, err := db.CreateMemory(ctx, message, core.TableMessages, true); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	st, err := r.rt.ComposeState(ctx, message, nil, r.opts.StateInclude)
	if err != nil {
		return nil, err
	}

	prompt, err := util.RenderTemplate(r.rt.Character().Template(MessageTemplateName, DefaultMessageTemplate), st.Values)
	if err != nil {
		return nil, err
	}

	params := core.ModelParams{core.ParamPrompt: prompt}
	if system := r.rt.Character().System; system != "" {
		params[core.ParamSystem] = system
	}

	raw, err := r.rt.UseModel(ctx, r.opts.ModelType, params)
	if err != nil {
		return nil, err
	}

	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected %s response type %T", r.opts.ModelType, raw)
	}

	content := ParseResponse(text)
	content.InReplyTo = message.ID
	content.Source = message.Content.Source

	response := &core.Memory{
		ID:        core.NewID(),
		EntityID:  r.rt.AgentID(),
		AgentID:   r.rt.AgentID(),
		RoomID:    message.RoomID,
		CreatedAt: time.Now(),
		Content:   content,
	}

	if _, err := db.CreateMemory(ctx, response, core.TableMessages, true); err != nil {
		return nil, fmt.Errorf("failed to store response: %w", err)
	}

	result = &TurnResult{RunID: runID, Message: message, Response: response, Sent: []core.Content{}}

	var sentMu sync.Mutex

	send := func(ctx context.Context, c core.Content) ([]*core.Memory, error) {
		if c.InReplyTo == "" {
			c.InReplyTo = message.ID
		}

		if c.Source == "" {
			c.Source = message.Content.Source
		}

		sent := &core.Memory{
			ID:        core.NewID(),
			EntityID:  r.rt.AgentID(),
			AgentID:   r.rt.AgentID(),
			RoomID:    message.RoomID,
			CreatedAt: time.Now(),
			Content:   c,
		}

		if _, err := db.CreateMemory(ctx, sent, core.TableMessages, true); err != nil {
			return nil, fmt.Errorf("failed to store sent message: %w", err)
		}

		sentMu.Lock()
		result.Sent = append(result.Sent, c)
		sentMu.Unlock()

		r.emit(ctx, sent, map[string]any{"runId": runID}, core.EventMessageSent)

		memories := []*core.Memory{sent}

		if callback != nil {
			more, err := callback(ctx, c)
			if err != nil {
				return nil, err
			}

			memories = append(memories, more...)
		}

		return memories, nil
	}

	responses := []*core.Memory{response}

	if err := r.rt.ProcessActions(ctx, message, responses, st, send); err != nil {
		return nil, err
	}

	sentMu.Lock()
	didRespond := len(result.Sent) > 0
	sentMu.Unlock()

	evaluators, err := r.rt.Evaluate(ctx, message, st, didRespond, send, responses)
	if err != nil {
		return nil, err
	}

	result.Evaluators = make([]string, 0, len(evaluators))
	for _, ev := range evaluators {
		result.Evaluators = append(result.Evaluators, ev.Name())
	}

	r.rt.Logger().Debug("turn completed", "run_id", runID, "message_id", message.ID,
		"actions", content.Actions, "sent", len(result.Sent), "evaluators", result.Evaluators)

	return result, nil
}

func (r *Runner) emit(ctx context.Context, message *core.Memory, data map[string]any, events ...core.EventType) {
	err := r.rt.EmitEvent(ctx, core.EventPayload{
		Runtime: r.rt,
		Source:  message.Content.Source,
		Message: message,
		Data:    data,
	}, events...)
	if err != nil {
		r.opts.Logger.Warn("failed to emit event", "events", events, "error", err)
	}
}

// Run processes message asynchronously. Content sent during the turn is
// streamed on the content channel; a failure is delivered on the error
// channel. Both channels are closed when the turn ends.
func (r *Runner) Run(ctx context.Context, message *core.Memory) (string, <-chan core.Content, <-chan error, error) {
	if message == nil || message.RoomID == "" {
		return "", nil, nil, errors.New("message with room id is required")
	}

	runID := core.NewID()

	contentCh := make(chan core.Content, r.opts.ContentBufferSize)
	errorsCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	forward := func(ctx context.Context, c core.Content) ([]*core.Memory, error) {
		select {
		case contentCh <- c:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()

			cancel()
			close(contentCh)
			close(errorsCh)
		}()

		if _, err := r.handle(ctx, runID, message, forward); err != nil {
			errorsCh <- fmt.Errorf("run %s failed: %w", runID, err)
		}
	}()

	return runID, contentCh, errorsCh, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

type modelResponse struct {
	Thought string   `json:"thought"`
	Text    string   `json:"text"`
	Actions []string `json:"actions"`
}

// ParseResponse extracts {thought, text, actions} from a model response. The
// JSON object may be wrapped in a code fence or surrounded by prose. Anything
// that does not parse becomes a plain REPLY. A response naming no actions
// replies when it carries text and does nothing otherwise.
func ParseResponse(raw string) core.Content {
	trimmed := strings.TrimSpace(raw)

	var parsed modelResponse

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")

	if start < 0 || end <= start || json.Unmarshal([]byte(trimmed[start:end+1]), &parsed) != nil {
		return core.Content{Text: trimmed, Actions: []string{"REPLY"}}
	}

	actions := make([]string, 0, len(parsed.Actions))
	for _, a := range parsed.Actions {
		if a = strings.TrimSpace(a); a != "" {
			actions = append(actions, a)
		}
	}

	if len(actions) == 0 {
		if strings.TrimSpace(parsed.Text) != "" {
			actions = []string{"REPLY"}
		} else {
			actions = []string{"NONE"}
		}
	}

	return core.Content{Text: parsed.Text, Thought: parsed.Thought, Actions: actions}
}
