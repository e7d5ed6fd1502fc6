package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/testutil"
)

type warnCounter struct {
	warns int
}

func (w *warnCounter) Debug(string, ...any) {}
func (w *warnCounter) Info(string, ...any)  {}
func (w *warnCounter) Warn(string, ...any)  { w.warns++ }
func (w *warnCounter) Error(string, ...any) {}

func TestRegistry_OverwritesWithWarning(t *testing.T) {
	log := &warnCounter{}
	r := NewRegistry(log)

	r.Register(core.TaskWorker{Name: "digest", Execute: func(context.Context, core.Runtime, map[string]any, core.Task) error { return nil }})
	r.Register(core.TaskWorker{Name: "digest"})

	w, ok := r.Get("digest")
	require.True(t, ok)
	assert.Nil(t, w.Execute)
	assert.Equal(t, 1, log.warns)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestScheduler_Run(t *testing.T) {
	rt := testutil.NewRuntime("agent")

	var got core.Task

	rt.Workers = map[string]core.TaskWorker{
		"digest": {Name: "digest", Execute: func(_ context.Context, _ core.Runtime, _ map[string]any, task core.Task) error {
			got = task
			return nil
		}},
		"broken": {Name: "broken", Execute: func(context.Context, core.Runtime, map[string]any, core.Task) error {
			return errors.New("boom")
		}},
		"gated": {
			Name:     "gated",
			Validate: func(context.Context, core.Runtime, *core.Memory, *core.State) (bool, error) { return false, nil },
			Execute: func(context.Context, core.Runtime, map[string]any, core.Task) error {
				return errors.New("must not run")
			},
		},
	}

	s := NewScheduler(rt, nil)

	require.NoError(t, s.Run(context.Background(), core.Task{ID: "t1", Name: "digest"}))
	assert.Equal(t, "t1", got.ID)

	assert.ErrorIs(t, s.Run(context.Background(), core.Task{Name: "broken"}), core.ErrHandlerFailure)
	assert.ErrorIs(t, s.Run(context.Background(), core.Task{Name: "missing"}), core.ErrNotFound)
	assert.NoError(t, s.Run(context.Background(), core.Task{Name: "gated"}))
}

func TestScheduler_ScheduleAndStop(t *testing.T) {
	s := NewScheduler(testutil.NewRuntime("agent"), nil)

	_, err := s.Schedule("not a spec", core.Task{Name: "digest"})
	assert.Error(t, err)

	id, err := s.Schedule("@every 1h", core.Task{Name: "digest"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s.Start()
	s.Start()
	s.Unschedule(id)
	s.Stop(context.Background())
	s.Stop(context.Background())
}
