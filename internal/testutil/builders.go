package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/plugmesh/core"
)

// NewMessage builds a message memory in the given room.
func NewMessage(roomID, text string, actions ...string) *core.Memory {
	return &core.Memory{
		ID:        core.NewID(),
		EntityID:  "user-1",
		RoomID:    roomID,
		CreatedAt: time.Now(),
		Content:   core.Content{Text: text, Actions: actions},
	}
}

// Dim is the dimension of FakeEmbedding vectors.
const Dim = 16

// FakeEmbedding returns a deterministic bag-of-words embedding handler and a
// counter of its invocations. Texts sharing words get similar vectors.
func FakeEmbedding() (core.ModelHandler, *atomic.Int32) {
	calls := &atomic.Int32{}

	return func(_ context.Context, _ core.Runtime, params core.ModelParams) (any, error) {
		calls.Add(1)
		return Embed(params.String(core.ParamText)), nil
	}, calls
}

// Embed computes the FakeEmbedding vector for text.
func Embed(text string) []float32 {
	v := make([]float32, Dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%Dim]++
	}

	return v
}

// StaticProvider returns a provider that always yields the given text and values.
func StaticProvider(name string, position int, text string, values map[string]any) core.Provider {
	return core.NewProvider(name, func(context.Context, core.Runtime, *core.Memory, *core.State) (core.ProviderResult, error) {
		return core.ProviderResult{Text: text, Values: values}, nil
	}, func(o *core.ProviderOptions) { o.Position = position })
}
