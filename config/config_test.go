package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1024, cfg.State.CacheSize)
	assert.Equal(t, 3000, cfg.Knowledge.TargetTokens)
	assert.Equal(t, logging.LogLevelInfo, cfg.LoggerConfig().Level)
	assert.Equal(t, 200, cfg.ChunkOptions().OverlapTokens)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "plugmesh.yaml", `
character: ada.yaml
log:
  level: debug
  format: json
server:
  addr: ":8080"
knowledge:
  target_tokens: 500
  overlap_tokens: 50
`)

	t.Setenv("PLUGMESH_SERVER_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ada.yaml", cfg.Character)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.Knowledge.TargetTokens)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "knowledge:\n  target_tokens: 10\n  overlap_tokens: 10\n")

	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_Get(t *testing.T) {
	path := writeFile(t, "plugmesh.yaml", "OPENAI_MODEL: gpt-4o-mini\n")

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Get("OPENAI_MODEL"))
	assert.Equal(t, "sk-test", cfg.Get("ANTHROPIC_API_KEY"))
	assert.Nil(t, cfg.Get("PLUGMESH_TEST_UNSET_KEY"))
}

func TestLoadCharacter(t *testing.T) {
	path := writeFile(t, "ada.yaml", `
name: Ada
bio:
  - Ada writes Go.
plugins: [bootstrap, openai]
knowledge:
  - Go was released in 2009.
settings:
  model: gpt-4o
  secrets:
    TOKEN: abc
`)

	c, err := LoadCharacter(path)
	require.NoError(t, err)

	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, core.DeterministicID("Ada"), c.ID)
	assert.Equal(t, []string{"bootstrap", "openai"}, c.Plugins)
	assert.Equal(t, "gpt-4o", c.Settings["model"])

	secrets, ok := c.Settings["secrets"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc", secrets["TOKEN"])
}

func TestParseCharacter_JSON(t *testing.T) {
	c, err := ParseCharacter([]byte(`{"id": "fixed", "name": "Ada", "system": "Be brief."}`))
	require.NoError(t, err)
	assert.Equal(t, "fixed", c.ID)
	assert.Equal(t, "Be brief.", c.System)
}

func TestParseCharacter_Invalid(t *testing.T) {
	_, err := ParseCharacter([]byte("bio: [x]"))
	require.ErrorContains(t, err, "name is required")

	_, err = ParseCharacter([]byte("name: Ada\nplugins: [a, a]"))
	require.ErrorContains(t, err, "duplicate plugin")
}
