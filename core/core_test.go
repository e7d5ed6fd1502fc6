package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicID(t *testing.T) {
	a := DeterministicID("agent", "hello")
	b := DeterministicID("agent", "hello")
	c := DeterministicID("agent", "hello!")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, DeterministicID("ab", "c"), DeterministicID("a", "bc"))
	assert.NotEqual(t, NewID(), NewID())
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"not found", &NotFoundError{Kind: "model", Key: "TEXT_LARGE"}, ErrNotFound},
		{"duplicate", &DuplicateRegistrationError{Kind: "service", Key: "x"}, ErrDuplicateRegistration},
		{"handler", &HandlerError{Kind: "action", Name: "REPLY", Err: base}, ErrHandlerFailure},
		{"setup", &SetupError{Step: "adapter", Err: base}, ErrSetupFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.target)
		})
	}

	assert.ErrorIs(t, &HandlerError{Kind: "action", Name: "REPLY", Err: base}, base)
	assert.Contains(t, (&NotFoundError{Kind: "model", Key: "TEXT_LARGE"}).Error(), "TEXT_LARGE")
}

func TestProviderOutputs(t *testing.T) {
	var p ProviderOutputs
	p = p.Set("A", ProviderResult{Text: "a"})
	p = p.Set("B", ProviderResult{Text: "b"})

	updated := p.Set("A", ProviderResult{Text: "a2"})

	assert.Equal(t, []string{"A", "B"}, updated.Names())
	r, ok := updated.Get("A")
	require.True(t, ok)
	assert.Equal(t, "a2", r.Text)

	// original slice untouched
	r, _ = p.Get("A")
	assert.Equal(t, "a", r.Text)

	_, ok = p.Get("missing")
	assert.False(t, ok)
}

func TestStateCloneAndProviders(t *testing.T) {
	s := NewState()
	s.Values["k"] = "v"
	s.Data["providers"] = ProviderOutputs{{Name: "A"}}

	c := s.Clone()
	c.Values["k"] = "changed"

	assert.Equal(t, "v", s.Values["k"])
	assert.Equal(t, []string{"A"}, c.Providers().Names())

	var nilState *State
	assert.Nil(t, nilState.Providers())
	assert.NotNil(t, nilState.Clone().Values)
}

func TestNewActionDefaults(t *testing.T) {
	a := NewAction("REPLY", nil, func(o *ActionOptions) {
		o.Similes = []string{"RESPOND"}
	})

	ok, err := a.Validate(context.Background(), nil, &Memory{}, NewState())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, a.Handler())
	assert.Equal(t, []string{"RESPOND"}, a.Similes())

	e := NewEvaluator("REFLECT", nil, func(o *ActionOptions) {
		o.AlwaysRun = true
		o.Validate = func(context.Context, Runtime, *Memory, *State) (bool, error) { return false, nil }
	})

	ok, err = e.Validate(context.Background(), nil, &Memory{}, NewState())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, e.AlwaysRun())
}

func TestCharacterTemplate(t *testing.T) {
	c := &Character{Templates: map[string]string{"messageHandlerTemplate": "custom"}}

	assert.Equal(t, "custom", c.Template("messageHandlerTemplate", "default"))
	assert.Equal(t, "default", c.Template("other", "default"))

	var nilChar *Character
	assert.Equal(t, "default", nilChar.Template("x", "default"))
}
