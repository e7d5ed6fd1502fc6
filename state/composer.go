package state

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/observability"
)

// ProvidersKey is the Values and Data key holding provider output.
const ProvidersKey = "providers"

// Options configures a Composer.
type Options struct {
	CacheSize int
	Logger    logging.Logger
	Metrics   *observability.Metrics
}

// Composer builds State snapshots. Safe for concurrent use.
type Composer struct {
	cache   *Cache
	logger  logging.Logger
	metrics *observability.Metrics
}

// NewComposer creates a composer with its own snapshot cache.
func NewComposer(optFns ...func(o *Options)) (*Composer, error) {
	opts := Options{CacheSize: DefaultCacheSize, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	cache, err := NewCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Composer{cache: cache, logger: opts.Logger, metrics: opts.Metrics}, nil
}

// Cache exposes the snapshot cache.
func (c *Composer) Cache() *Cache { return c.cache }

// Compose returns the state for message. With an empty filter every public,
// non-dynamic provider that is not cached yet runs; a non-empty filter runs
// exactly the named providers. Names in include are always added.
func (c *Composer) Compose(ctx context.Context, rt core.Runtime, message *core.Memory, filter, include []string) (*core.State, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanComposeState,
		attribute.String(observability.AttrAgentID, rt.AgentID()),
		attribute.String(observability.AttrMessageID, message.ID))
	defer span.End()

	cached, hit := c.lookup(message.ID)
	c.metrics.IncStateCompose(hit)

	selected := Select(rt.Providers(), cached.Providers(), filter, include)

	results, err := c.fetch(ctx, rt, message, cached, selected)
	if err != nil {
		observability.MarkSpanResult(span, err)
		return nil, err
	}

	next := Merge(cached, selected, results)

	if message.ID != "" {
		c.cache.Put(message.ID, next)
	}

	observability.MarkSpanResult(span, nil)

	return next.Clone(), nil
}

func (c *Composer) lookup(messageID string) (*core.State, bool) {
	if messageID == "" {
		return core.NewState(), false
	}

	s, ok := c.cache.Get(messageID)
	if !ok {
		return core.NewState(), false
	}

	return s, true
}

func (c *Composer) fetch(ctx context.Context, rt core.Runtime, message *core.Memory, cached *core.State, providers []core.Provider) ([]core.ProviderResult, error) {
	results := make([]core.ProviderResult, len(providers))
	g, gctx := errgroup.WithContext(ctx)

	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			pctx, span := observability.StartSpan(gctx, observability.SpanProvider,
				attribute.String(observability.AttrName, p.Name()))
			defer span.End()

			start := time.Now()
			r, err := p.Get(pctx, rt, message, cached)
			c.metrics.ObserveProvider(p.Name(), time.Since(start), err)
			observability.MarkSpanResult(span, err)

			if err != nil {
				c.logger.Error("provider failed", "provider", p.Name(), "message_id", message.ID, "error", err)
				return &core.HandlerError{Kind: "provider", Name: p.Name(), Err: err}
			}

			results[i] = r

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Select resolves the providers to run: the filter names when non-empty,
// otherwise every provider that is neither private, dynamic nor cached, in
// both cases extended by include. Each name resolves to its first registered
// provider; the result is stably sorted by position.
func Select(registered []core.Provider, cached core.ProviderOutputs, filter, include []string) []core.Provider {
	wanted := make(map[string]struct{})

	if len(filter) > 0 {
		for _, n := range filter {
			wanted[n] = struct{}{}
		}
	} else {
		isCached := make(map[string]struct{}, len(cached))
		for _, n := range cached.Names() {
			isCached[n] = struct{}{}
		}

		for _, p := range registered {
			if p.Private() || p.Dynamic() {
				continue
			}

			if _, ok := isCached[p.Name()]; ok {
				continue
			}

			wanted[p.Name()] = struct{}{}
		}
	}

	for _, n := range include {
		wanted[n] = struct{}{}
	}

	seen := make(map[string]struct{}, len(wanted))
	out := make([]core.Provider, 0, len(wanted))

	for _, p := range registered {
		if _, ok := wanted[p.Name()]; !ok {
			continue
		}

		if _, dup := seen[p.Name()]; dup {
			continue
		}

		seen[p.Name()] = struct{}{}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Position() < out[j].Position() })

	return out
}

// Merge folds freshly fetched results into the cached snapshot and returns
// the new snapshot. The cached snapshot is not modified.
func Merge(cached *core.State, providers []core.Provider, results []core.ProviderResult) *core.State {
	outputs := cached.Providers()

	texts := make([]string, 0, len(results)+1)
	if cached.Text != "" {
		texts = append(texts, cached.Text)
	}

	for i, p := range providers {
		outputs = outputs.Set(p.Name(), results[i])

		if results[i].Text != "" {
			texts = append(texts, results[i].Text)
		}
	}

	next := cached.Clone()
	next.Text = strings.Join(texts, "\n")

	for _, o := range outputs {
		for k, v := range o.Result.Values {
			next.Values[k] = v
		}
	}

	next.Values[ProvidersKey] = next.Text
	next.Data[ProvidersKey] = outputs

	return next
}
