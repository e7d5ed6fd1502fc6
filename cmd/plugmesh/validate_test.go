package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeValidate(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"validate"}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func writeCharacter(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "character.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestValidate(t *testing.T) {
	path := writeCharacter(t, "name: Ada\nplugins: [bootstrap, openai]\nknowledge: [a, b]\n")

	out, err := executeValidate(t, "--character", path)
	require.NoError(t, err)
	assert.Contains(t, out, `character "Ada"`)
	assert.Contains(t, out, "knowledge items: 2")
}

func TestValidate_UnknownPlugin(t *testing.T) {
	path := writeCharacter(t, "name: Ada\nplugins: [bootstrap, nope]\n")

	_, err := executeValidate(t, "--character", path)
	require.ErrorContains(t, err, "unknown plugins: nope")
}

func TestValidate_MissingCharacter(t *testing.T) {
	_, err := executeValidate(t)
	require.ErrorContains(t, err, "no character file given")
}
