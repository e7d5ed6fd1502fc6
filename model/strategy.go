package model

import (
	"sync"

	"github.com/hupe1980/plugmesh/core"
)

// SelectionStrategy picks one handler from the non-empty list registered for
// a model type.
type SelectionStrategy interface {
	Select(modelType core.ModelType, handlers []core.ModelHandler) (core.ModelHandler, bool)
}

// FirstRegistered always selects the earliest registration. Later handlers
// are fallbacks that are never reached.
type FirstRegistered struct{}

// Select implements SelectionStrategy.
func (FirstRegistered) Select(_ core.ModelType, handlers []core.ModelHandler) (core.ModelHandler, bool) {
	if len(handlers) == 0 {
		return nil, false
	}

	return handlers[0], true
}

// RoundRobin rotates through the handlers of each model type.
type RoundRobin struct {
	mu   sync.Mutex
	next map[core.ModelType]int
}

// NewRoundRobin creates a RoundRobin strategy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{next: make(map[core.ModelType]int)}
}

// Select implements SelectionStrategy.
func (s *RoundRobin) Select(modelType core.ModelType, handlers []core.ModelHandler) (core.ModelHandler, bool) {
	if len(handlers) == 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.next[modelType] % len(handlers)
	s.next[modelType] = i + 1

	return handlers[i], true
}
