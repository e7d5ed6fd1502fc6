package core

import "context"

// ModelType is the key model handlers are registered under.
type ModelType string

const (
	ModelTypeTextSmall     ModelType = "TEXT_SMALL"
	ModelTypeTextLarge     ModelType = "TEXT_LARGE"
	ModelTypeTextEmbedding ModelType = "TEXT_EMBEDDING"
)

// Well-known model parameter keys.
const (
	ParamPrompt      = "prompt"
	ParamSystem      = "system"
	ParamText        = "text"
	ParamTemperature = "temperature"
	ParamMaxTokens   = "maxTokens"
)

// ModelParams are the arguments passed to a model handler.
type ModelParams map[string]any

// String returns the string parameter key or "".
func (p ModelParams) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// ModelHandler performs one model call. Text models return a string,
// embedding models return []float32.
type ModelHandler func(ctx context.Context, rt Runtime, params ModelParams) (any, error)
