package state

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/testutil"
)

func newComposer(t *testing.T) *Composer {
	t.Helper()

	c, err := NewComposer()
	require.NoError(t, err)

	return c
}

func countingProvider(name string, position int, text string, calls *atomic.Int32, optFns ...func(o *core.ProviderOptions)) core.Provider {
	return core.NewProvider(name, func(context.Context, core.Runtime, *core.Memory, *core.State) (core.ProviderResult, error) {
		calls.Add(1)
		return core.ProviderResult{Text: text, Values: map[string]any{name: text}}, nil
	}, append([]func(o *core.ProviderOptions){func(o *core.ProviderOptions) { o.Position = position }}, optFns...)...)
}

func TestCompose_TextJoinedInPositionOrder(t *testing.T) {
	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		testutil.StaticProvider("P2", 5, "ctx2", nil),
		testutil.StaticProvider("P1", 0, "ctx1", nil),
	}

	s, err := newComposer(t).Compose(context.Background(), rt, testutil.NewMessage("room", "hi"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "ctx1\nctx2", s.Text)
	assert.Equal(t, "ctx1\nctx2", s.Values[ProvidersKey])
	assert.Equal(t, []string{"P1", "P2"}, s.Providers().Names())
}

func TestCompose_DeterministicMergeOrder(t *testing.T) {
	delayed := func(name string, position int, delay time.Duration) core.Provider {
		return core.NewProvider(name, func(ctx context.Context, _ core.Runtime, _ *core.Memory, _ *core.State) (core.ProviderResult, error) {
			time.Sleep(delay)
			return core.ProviderResult{Text: name, Values: map[string]any{"winner": name}}, nil
		}, func(o *core.ProviderOptions) { o.Position = position })
	}

	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		delayed("ten", 10, 0),
		delayed("minus-five", -5, 30*time.Millisecond),
		delayed("zero", 0, 15*time.Millisecond),
	}

	for i := 0; i < 3; i++ {
		s, err := newComposer(t).Compose(context.Background(), rt, testutil.NewMessage("room", "hi"), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "minus-five\nzero\nten", s.Text)
		assert.Equal(t, "ten", s.Values["winner"])
	}
}

func TestCompose_Idempotent(t *testing.T) {
	var calls atomic.Int32

	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{countingProvider("A", 0, "a", &calls)}

	c := newComposer(t)
	msg := testutil.NewMessage("room", "hi")

	first, err := c.Compose(context.Background(), rt, msg, nil, nil)
	require.NoError(t, err)
	second, err := c.Compose(context.Background(), rt, msg, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompose_IncludedProviderOverridesCachedValues(t *testing.T) {
	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		testutil.StaticProvider("A", 0, "a", map[string]any{"mood": "calm", "onlyA": true}),
		core.NewProvider("B", func(context.Context, core.Runtime, *core.Memory, *core.State) (core.ProviderResult, error) {
			return core.ProviderResult{Text: "b", Values: map[string]any{"mood": "excited"}}, nil
		}, func(o *core.ProviderOptions) { o.Dynamic = true }),
	}

	c := newComposer(t)
	msg := testutil.NewMessage("room", "hi")

	s, err := c.Compose(context.Background(), rt, msg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "calm", s.Values["mood"])

	s, err = c.Compose(context.Background(), rt, msg, nil, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, "excited", s.Values["mood"])
	assert.Equal(t, true, s.Values["onlyA"])
	assert.Equal(t, "a\nb", s.Text)
	assert.Equal(t, []string{"A", "B"}, s.Providers().Names())
}

func TestCompose_PrivateAndDynamicNeedInclude(t *testing.T) {
	var priv, dyn, pub atomic.Int32

	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		countingProvider("PRIVATE", 0, "p", &priv, func(o *core.ProviderOptions) { o.Private = true }),
		countingProvider("DYNAMIC", 0, "d", &dyn, func(o *core.ProviderOptions) { o.Dynamic = true }),
		countingProvider("PUBLIC", 0, "x", &pub),
	}

	c := newComposer(t)

	_, err := c.Compose(context.Background(), rt, testutil.NewMessage("room", "hi"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), priv.Load())
	assert.Equal(t, int32(0), dyn.Load())
	assert.Equal(t, int32(1), pub.Load())

	s, err := c.Compose(context.Background(), rt, testutil.NewMessage("room", "hi"), nil, []string{"PRIVATE", "DYNAMIC"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), priv.Load())
	assert.Equal(t, int32(1), dyn.Load())
	assert.Equal(t, []string{"PRIVATE", "DYNAMIC", "PUBLIC"}, s.Providers().Names())
}

func TestCompose_FilterRunsExactlyNamed(t *testing.T) {
	var a, b atomic.Int32

	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		countingProvider("A", 0, "a", &a),
		countingProvider("B", 1, "b", &b),
	}

	s, err := newComposer(t).Compose(context.Background(), rt, testutil.NewMessage("room", "hi"), []string{"B", "UNKNOWN"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), a.Load())
	assert.Equal(t, int32(1), b.Load())
	assert.Equal(t, "b", s.Text)
}

func TestCompose_ProvidersSeeCachedStateOnly(t *testing.T) {
	var seen atomic.Value

	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		testutil.StaticProvider("FIRST", 0, "first", map[string]any{"first": 1}),
		core.NewProvider("SECOND", func(_ context.Context, _ core.Runtime, _ *core.Memory, s *core.State) (core.ProviderResult, error) {
			seen.Store(len(s.Providers()))
			return core.ProviderResult{Text: "second"}, nil
		}, func(o *core.ProviderOptions) { o.Position = 1 }),
	}

	_, err := newComposer(t).Compose(context.Background(), rt, testutil.NewMessage("room", "hi"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, seen.Load())
}

func TestCompose_DuplicateNamesResolveToFirst(t *testing.T) {
	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		testutil.StaticProvider("DUP", 0, "first", nil),
		testutil.StaticProvider("DUP", 0, "second", nil),
	}

	s, err := newComposer(t).Compose(context.Background(), rt, testutil.NewMessage("room", "hi"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", s.Text)
}

func TestCompose_ProviderError(t *testing.T) {
	boom := errors.New("boom")

	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{
		core.NewProvider("BAD", func(context.Context, core.Runtime, *core.Memory, *core.State) (core.ProviderResult, error) {
			return core.ProviderResult{}, boom
		}),
	}

	c := newComposer(t)
	msg := testutil.NewMessage("room", "hi")

	_, err := c.Compose(context.Background(), rt, msg, nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, core.ErrHandlerFailure)

	_, ok := c.Cache().Get(msg.ID)
	assert.False(t, ok)
}

func TestCompose_ReturnedStateIsolatedFromCache(t *testing.T) {
	rt := testutil.NewRuntime("agent")
	rt.ProviderList = []core.Provider{testutil.StaticProvider("A", 0, "a", map[string]any{"k": "v"})}

	c := newComposer(t)
	msg := testutil.NewMessage("room", "hi")

	s, err := c.Compose(context.Background(), rt, msg, nil, nil)
	require.NoError(t, err)
	s.Values["k"] = "mutated"

	again, err := c.Compose(context.Background(), rt, msg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Values["k"])
}

func TestCache_Eviction(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)

	c.Put("a", core.NewState())
	c.Put("b", core.NewState())
	c.Put("c", core.NewState())

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Delete("b")
	assert.Equal(t, 1, c.Len())
}
