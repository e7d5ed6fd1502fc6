// Package openai provides a plugin that registers text generation and
// embedding handlers backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/plugmesh/core"
)

// PluginName is the name the plugin registers under.
const PluginName = "openai"

// APIKeySetting is resolved through the runtime when Options.APIKey is empty.
const APIKeySetting = "OPENAI_API_KEY"

// Options configure the OpenAI adapter.
// Fields mirror a subset of the API parameters intentionally kept minimal;
// extend via functional options without breaking callers.
type Options struct {
	LargeModel          string
	SmallModel          string
	EmbeddingModel      string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Adapter wraps the OpenAI chat completion and embedding endpoints.
type Adapter struct {
	mu     sync.RWMutex
	client *openai.Client
	opts   Options
}

// New creates an adapter. The client is built during plugin init.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		LargeModel:          openai.ChatModelGPT4o,
		SmallModel:          openai.ChatModelGPT4oMini,
		EmbeddingModel:      openai.EmbeddingModelTextEmbedding3Small,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Adapter{opts: opts}
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Adapter {
	a := New(optFns...)
	a.client = client

	return a
}

// Plugin returns the plugin registering TEXT_SMALL, TEXT_LARGE and
// TEXT_EMBEDDING handlers.
func (a *Adapter) Plugin() core.Plugin {
	return core.Plugin{
		Name:        PluginName,
		Description: "OpenAI text generation and embeddings",
		Init:        a.init,
		Models: map[core.ModelType]core.ModelHandler{
			core.ModelTypeTextSmall:     a.textHandler(func(o Options) string { return o.SmallModel }),
			core.ModelTypeTextLarge:     a.textHandler(func(o Options) string { return o.LargeModel }),
			core.ModelTypeTextEmbedding: a.embed,
		},
	}
}

func (a *Adapter) init(_ context.Context, config map[string]any, rt core.Runtime) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return nil
	}

	key := a.opts.APIKey
	if key == "" {
		if v, ok := config["apiKey"].(string); ok {
			key = v
		}
	}

	if key == "" {
		if v, ok := rt.GetSetting(APIKeySetting).(string); ok {
			key = v
		}
	}

	var clientOpts []option.RequestOption
	if key != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(key))
	}

	client := openai.NewClient(clientOpts...)
	a.client = &client

	return nil
}

func (a *Adapter) getClient() (*openai.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.client == nil {
		return nil, fmt.Errorf("openai client not initialized")
	}

	return a.client, nil
}

func (a *Adapter) textHandler(pick func(Options) string) core.ModelHandler {
	return func(ctx context.Context, _ core.Runtime, params core.ModelParams) (any, error) {
		client, err := a.getClient()
		if err != nil {
			return nil, err
		}

		var messages []openai.ChatCompletionMessageParamUnion
		if system := params.String(core.ParamSystem); system != "" {
			messages = append(messages, openai.SystemMessage(system))
		}

		messages = append(messages, openai.UserMessage(params.String(core.ParamPrompt)))

		req := openai.ChatCompletionNewParams{
			Model:               pick(a.opts),
			Messages:            messages,
			Temperature:         openai.Float(a.opts.Temperature),
			MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
		}

		if t, ok := params[core.ParamTemperature].(float64); ok {
			req.Temperature = openai.Float(t)
		}

		if n, ok := params[core.ParamMaxTokens].(int); ok && n > 0 {
			req.MaxCompletionTokens = openai.Int(int64(n))
		}

		resp, err := client.Chat.Completions.New(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("openai api error: %w", err)
		}

		if len(resp.Choices) == 0 {
			return "", nil
		}

		return resp.Choices[0].Message.Content, nil
	}
}

func (a *Adapter) embed(ctx context.Context, _ core.Runtime, params core.ModelParams) (any, error) {
	client, err := a.getClient()
	if err != nil {
		return nil, err
	}

	resp, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(params.String(core.ParamText))},
		Model: a.opts.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding error: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding response is empty")
	}

	out := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		out[i] = float32(v)
	}

	return out, nil
}
