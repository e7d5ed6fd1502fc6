package model

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/observability"
)

// ArrayPlaceholder replaces numeric array responses in audit entries.
const ArrayPlaceholder = "[array]"

// Options configures a Registry.
type Options struct {
	// Strategy picks the handler to invoke. Defaults to FirstRegistered.
	Strategy SelectionStrategy
	Logger   logging.Logger
	Metrics  *observability.Metrics
}

// Registry holds model handlers keyed by model type. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.ModelType][]core.ModelHandler
	strategy SelectionStrategy
	logger   logging.Logger
	metrics  *observability.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Strategy: FirstRegistered{},
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		handlers: make(map[core.ModelType][]core.ModelHandler),
		strategy: opts.Strategy,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Register appends handler to the list for modelType. Existing entries are
// never replaced.
func (r *Registry) Register(modelType core.ModelType, handler core.ModelHandler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	r.handlers[modelType] = append(r.handlers[modelType], handler)
	r.mu.Unlock()

	r.logger.Debug("model handler registered", "model_type", modelType)
}

// Handlers returns a copy of the handlers registered for modelType.
func (r *Registry) Handlers(modelType core.ModelType) []core.ModelHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.ModelHandler, len(r.handlers[modelType]))
	copy(out, r.handlers[modelType])

	return out
}

// Resolve returns the handler chosen by the selection strategy, or false if
// no handler is registered for modelType.
func (r *Registry) Resolve(modelType core.ModelType) (core.ModelHandler, bool) {
	handlers := r.Handlers(modelType)
	if len(handlers) == 0 {
		return nil, false
	}

	return r.strategy.Select(modelType, handlers)
}

// Invoke resolves and calls the handler for modelType, then writes an audit
// entry tagged useModel:<modelType> through the runtime's adapter.
func (r *Registry) Invoke(ctx context.Context, rt core.Runtime, modelType core.ModelType, params core.ModelParams) (any, error) {
	handler, ok := r.Resolve(modelType)
	if !ok {
		return nil, &core.NotFoundError{Kind: "model handler", Key: string(modelType)}
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanModel,
		attribute.String(observability.AttrModelType, string(modelType)))
	defer span.End()

	start := time.Now()
	result, err := handler(ctx, rt, params)
	r.metrics.ObserveModelCall(string(modelType), time.Since(start), err)
	observability.MarkSpanResult(span, err)

	if err != nil {
		return nil, &core.HandlerError{Kind: "model", Name: string(modelType), Err: err}
	}

	if rt != nil && rt.Adapter() != nil {
		entry := core.LogEntry{
			EntityID: rt.AgentID(),
			Type:     fmt.Sprintf("useModel:%s", modelType),
			Body: map[string]any{
				"modelType": string(modelType),
				"params":    ParamKeys(params),
				"response":  AuditResponse(result),
			},
		}
		if err := rt.Adapter().Log(ctx, entry); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// ParamKeys returns the sorted parameter names.
func ParamKeys(params core.ModelParams) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// AuditResponse returns the value recorded in the audit log for a model
// response. Homogeneous numeric arrays such as embeddings are replaced with
// ArrayPlaceholder.
func AuditResponse(result any) any {
	if isNumericArray(result) {
		return ArrayPlaceholder
	}

	return result
}

func isNumericArray(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false
	}

	if isNumericKind(rv.Type().Elem().Kind()) {
		return true
	}

	if rv.Type().Elem().Kind() != reflect.Interface || rv.Len() == 0 {
		return false
	}

	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i).Elem()
		if !e.IsValid() || !isNumericKind(e.Kind()) {
			return false
		}
	}

	return true
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// AsEmbedding converts an embedding model result to []float32.
func AsEmbedding(result any) ([]float32, error) {
	switch v := result.(type) {
	case []float32:
		return v, nil
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}

		return out, nil
	case []any:
		out := make([]float32, len(v))
		for i, e := range v {
			f, ok := e.(float64)
			if !ok {
				return nil, fmt.Errorf("unexpected embedding element type %T", e)
			}

			out[i] = float32(f)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unexpected embedding type %T", result)
	}
}
