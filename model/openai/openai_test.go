package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"model":  "text-embedding-3-small",
				"data":   []any{map[string]any{"object": "embedding", "index": 0, "embedding": []float64{0.5, 0.25}}},
				"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
			})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 0,
				"model":   body["model"],
				"choices": []any{map[string]any{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": "model:" + body["model"].(string)},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestAdapter(t *testing.T) *Adapter {
	srv := newTestServer(t)
	t.Cleanup(srv.Close)

	client := openai.NewClient(option.WithBaseURL(srv.URL+"/"), option.WithAPIKey("test"), option.WithMaxRetries(0))

	return NewFromClient(&client, func(o *Options) { o.SmallModel = "small-model" })
}

func TestPlugin_RegistersModels(t *testing.T) {
	p := New().Plugin()

	assert.Equal(t, PluginName, p.Name)
	assert.Contains(t, p.Models, core.ModelTypeTextSmall)
	assert.Contains(t, p.Models, core.ModelTypeTextLarge)
	assert.Contains(t, p.Models, core.ModelTypeTextEmbedding)
	assert.NotNil(t, p.Init)
}

func TestAdapter_Embedding(t *testing.T) {
	a := newTestAdapter(t)

	res, err := a.Plugin().Models[core.ModelTypeTextEmbedding](context.Background(), nil, core.ModelParams{core.ParamText: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, res)
}

func TestAdapter_Text(t *testing.T) {
	a := newTestAdapter(t)

	res, err := a.Plugin().Models[core.ModelTypeTextSmall](context.Background(), nil, core.ModelParams{
		core.ParamPrompt: "hi",
		core.ParamSystem: "be brief",
	})
	require.NoError(t, err)
	assert.Equal(t, "model:small-model", res)
}

func TestAdapter_NotInitialized(t *testing.T) {
	_, err := New().Plugin().Models[core.ModelTypeTextLarge](context.Background(), nil, core.ModelParams{})
	assert.ErrorContains(t, err, "not initialized")
}
