package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/testutil"
)

func TestPlugin_RegistersTextModels(t *testing.T) {
	p := New().Plugin()

	assert.Equal(t, PluginName, p.Name)
	assert.Contains(t, p.Models, core.ModelTypeTextSmall)
	assert.Contains(t, p.Models, core.ModelTypeTextLarge)
	assert.NotContains(t, p.Models, core.ModelTypeTextEmbedding)
}

func TestAdapter_InitResolvesKeyFromRuntime(t *testing.T) {
	a := New()

	_, err := a.Plugin().Models[core.ModelTypeTextLarge](context.Background(), nil, core.ModelParams{})
	require.ErrorContains(t, err, "not initialized")

	rt := testutil.NewRuntime("agent")
	rt.Settings = map[string]any{APIKeySetting: "sk-test"}

	require.NoError(t, a.Plugin().Init(context.Background(), nil, rt))
	assert.NotNil(t, a.client)
}
