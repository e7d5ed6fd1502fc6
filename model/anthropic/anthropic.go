// Package anthropic provides a plugin that registers text generation handlers
// backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/plugmesh/core"
)

// PluginName is the name the plugin registers under.
const PluginName = "anthropic"

// APIKeySetting is resolved through the runtime when Options.APIKey is empty.
const APIKeySetting = "ANTHROPIC_API_KEY"

// Options configures the Anthropic adapter (model ids, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	LargeModel  anthropic.Model
	SmallModel  anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Adapter wraps the Anthropic Messages API. The client is created lazily on
// plugin init unless supplied up front.
type Adapter struct {
	mu     sync.RWMutex
	client *anthropic.Client
	opts   Options
}

// New creates an adapter. The client is built during plugin init.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		LargeModel:  anthropic.ModelClaude3_5Sonnet20241022,
		SmallModel:  anthropic.Model("claude-3-5-haiku-20241022"),
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Adapter{opts: opts}
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Adapter {
	a := New(optFns...)
	a.client = client

	return a
}

// Plugin returns the plugin registering TEXT_SMALL and TEXT_LARGE handlers.
func (a *Adapter) Plugin() core.Plugin {
	return core.Plugin{
		Name:        PluginName,
		Description: "Anthropic text generation",
		Init:        a.init,
		Models: map[core.ModelType]core.ModelHandler{
			core.ModelTypeTextSmall: a.textHandler(func(o Options) anthropic.Model { return o.SmallModel }),
			core.ModelTypeTextLarge: a.textHandler(func(o Options) anthropic.Model { return o.LargeModel }),
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

	client := anthropic.NewClient(clientOpts...)
	a.client = &client

	return nil
}

func (a *Adapter) textHandler(pick func(Options) anthropic.Model) core.ModelHandler {
	return func(ctx context.Context, _ core.Runtime, params core.ModelParams) (any, error) {
		a.mu.RLock()
		client := a.client
		a.mu.RUnlock()

		if client == nil {
			return nil, fmt.Errorf("anthropic client not initialized")
		}

		req := anthropic.MessageNewParams{
			Model:       pick(a.opts),
			MaxTokens:   a.opts.MaxTokens,
			Temperature: anthropic.Float(a.opts.Temperature),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(params.String(core.ParamPrompt))),
			},
		}

		if t, ok := params[core.ParamTemperature].(float64); ok {
			req.Temperature = anthropic.Float(t)
		}

		if n, ok := params[core.ParamMaxTokens].(int); ok && n > 0 {
			req.MaxTokens = int64(n)
		}

		if system := params.String(core.ParamSystem); system != "" {
			req.System = []anthropic.TextBlockParam{{Text: system}}
		}

		resp, err := client.Messages.New(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("anthropic api error: %w", err)
		}

		var sb strings.Builder

		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.AsText().Text)
			}
		}

		return sb.String(), nil
	}
}
