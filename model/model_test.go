package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/testutil"
	"github.com/hupe1980/plugmesh/memory"
)

func constHandler(v any) core.ModelHandler {
	return func(context.Context, core.Runtime, core.ModelParams) (any, error) { return v, nil }
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	r := NewRegistry()
	r.Register(core.ModelTypeTextLarge, constHandler("first"))
	r.Register(core.ModelTypeTextLarge, constHandler("second"))

	res, err := r.Invoke(context.Background(), nil, core.ModelTypeTextLarge, core.ModelParams{})
	require.NoError(t, err)
	assert.Equal(t, "first", res)
	assert.Len(t, r.Handlers(core.ModelTypeTextLarge), 2)
}

func TestRegistry_RoundRobin(t *testing.T) {
	r := NewRegistry(func(o *Options) { o.Strategy = NewRoundRobin() })
	r.Register(core.ModelTypeTextSmall, constHandler("a"))
	r.Register(core.ModelTypeTextSmall, constHandler("b"))

	var got []any
	for i := 0; i < 3; i++ {
		res, err := r.Invoke(context.Background(), nil, core.ModelTypeTextSmall, nil)
		require.NoError(t, err)
		got = append(got, res)
	}

	assert.Equal(t, []any{"a", "b", "a"}, got)
}

func TestRegistry_NotFound(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Resolve(core.ModelTypeTextEmbedding)
	assert.False(t, ok)

	_, err := r.Invoke(context.Background(), nil, core.ModelTypeTextEmbedding, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), string(core.ModelTypeTextEmbedding))
}

func TestRegistry_HandlerFailure(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register(core.ModelTypeTextLarge, func(context.Context, core.Runtime, core.ModelParams) (any, error) {
		return nil, boom
	})

	_, err := r.Invoke(context.Background(), nil, core.ModelTypeTextLarge, nil)
	assert.ErrorIs(t, err, core.ErrHandlerFailure)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_AuditEntry(t *testing.T) {
	db := memory.NewInMemoryStore()
	rt := testutil.NewRuntime("agent-1")
	rt.DB = db

	r := NewRegistry()
	r.Register(core.ModelTypeTextEmbedding, constHandler([]float32{0.1, 0.2}))
	r.Register(core.ModelTypeTextLarge, constHandler("hello"))

	_, err := r.Invoke(context.Background(), rt, core.ModelTypeTextEmbedding, core.ModelParams{"text": "secret", "dims": 2})
	require.NoError(t, err)
	_, err = r.Invoke(context.Background(), rt, core.ModelTypeTextLarge, core.ModelParams{"prompt": "p"})
	require.NoError(t, err)

	logs := db.Logs("useModel:TEXT_EMBEDDING")
	require.Len(t, logs, 1)
	assert.Equal(t, "agent-1", logs[0].EntityID)
	assert.Equal(t, []string{"dims", "text"}, logs[0].Body["params"])
	assert.Equal(t, ArrayPlaceholder, logs[0].Body["response"])
	assert.NotContains(t, logs[0].Body, "secret")

	logs = db.Logs("useModel:TEXT_LARGE")
	require.Len(t, logs, 1)
	assert.Equal(t, "hello", logs[0].Body["response"])
}

func TestAuditResponse(t *testing.T) {
	assert.Equal(t, ArrayPlaceholder, AuditResponse([]float64{1, 2}))
	assert.Equal(t, ArrayPlaceholder, AuditResponse([]any{1, 2.5}))
	assert.Equal(t, []any{1, "x"}, AuditResponse([]any{1, "x"}))
	assert.Equal(t, []any{}, AuditResponse([]any{}))
	assert.Equal(t, "text", AuditResponse("text"))
	assert.Nil(t, AuditResponse(nil))
}

func TestAsEmbedding(t *testing.T) {
	v, err := AsEmbedding([]float64{0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1}, v)

	v, err = AsEmbedding([]any{0.25})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25}, v)

	_, err = AsEmbedding("nope")
	assert.Error(t, err)
	_, err = AsEmbedding([]any{"x"})
	assert.Error(t, err)
}
