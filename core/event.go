package core

import "context"

// EventType names an event bus channel.
type EventType string

const (
	EventMessageReceived  EventType = "MESSAGE_RECEIVED"
	EventMessageSent      EventType = "MESSAGE_SENT"
	EventActionStarted    EventType = "ACTION_STARTED"
	EventActionCompleted  EventType = "ACTION_COMPLETED"
	EventEvaluatorStarted EventType = "EVALUATOR_STARTED"
	EventRunStarted       EventType = "RUN_STARTED"
	EventRunEnded         EventType = "RUN_ENDED"
	EventWorldJoined      EventType = "WORLD_JOINED"
	EventEntityJoined     EventType = "ENTITY_JOINED"
)

// EventPayload is delivered to every subscriber of an event.
type EventPayload struct {
	Runtime Runtime
	Source  string
	Message *Memory
	Data    map[string]any
}

// EventHandler handles a single event delivery.
type EventHandler func(ctx context.Context, payload EventPayload) error
