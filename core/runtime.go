package core

import (
	"context"

	"github.com/hupe1980/plugmesh/logging"
)

// KnowledgeItem is a document returned by knowledge retrieval.
type KnowledgeItem struct {
	ID      string  `json:"id"`
	Content Content `json:"content"`
}

// Runtime is the view of the agent runtime handed to every capability.
type Runtime interface {
	AgentID() string
	Character() *Character
	Logger() logging.Logger
	Adapter() DatabaseAdapter

	Actions() []Action
	Providers() []Provider
	Evaluators() []Evaluator

	// GetSetting resolves key from secrets, settings, nested settings secrets
	// and finally process configuration. It returns nil when unset.
	GetSetting(key string) any
	GetService(serviceType string) Service
	GetTaskWorker(name string) (TaskWorker, bool)

	UseModel(ctx context.Context, modelType ModelType, params ModelParams) (any, error)
	ComposeState(ctx context.Context, message *Memory, filter, include []string) (*State, error)
	EmitEvent(ctx context.Context, payload EventPayload, events ...EventType) error
	GetKnowledge(ctx context.Context, message *Memory) ([]KnowledgeItem, error)
}
