package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestStructuredLogger_KeyValueAttrs(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("state").
		WithAgent("agent-1")

	l.Warn("provider failed", "provider", "TIME")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "provider failed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "state", entry["component"])
	assert.Equal(t, "agent-1", entry["agent_id"])
	assert.Equal(t, "TIME", entry["provider"])
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger(&LoggerConfig{Level: LogLevelError, Output: &buf})
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.LogModelCall("TEXT_LARGE", 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "Model call failed")
}

func TestComponent(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, Component(nil, "x"))

	var buf bytes.Buffer

	base := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))
	Component(base, "events").Info("hello")
	assert.Contains(t, buf.String(), `"component":"events"`)

	assert.Equal(t, NoOpLogger{}, Component(NoOpLogger{}, "x"))
}
