package observability

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plugmesh"

// Metrics exposes Prometheus collectors that report runtime activity.
type Metrics struct {
	modelCalls       *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	providerDuration *prometheus.HistogramVec
	stateCompose     *prometheus.CounterVec
	actions          *prometheus.CounterVec
	evaluators       *prometheus.CounterVec
	events           *prometheus.CounterVec
	eventFailures    *prometheus.CounterVec
	turnsActive      prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the metrics instance registered with the global
// Prometheus registry. Collectors are created once so several runtimes in the
// same process share them.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})

	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Collectors already registered under the same name are reused; any other
// registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		modelCalls: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "model", Name: "calls_total",
			Help: "Model handler invocations by model type and status.",
		}, []string{"model_type", "status"})),
		modelDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "model", Name: "call_duration_seconds",
			Help: "Latency of model handler invocations.", Buckets: prometheus.DefBuckets,
		}, []string{"model_type"})),
		providerDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "state", Name: "provider_duration_seconds",
			Help: "Latency of provider fetches during state composition.", Buckets: prometheus.DefBuckets,
		}, []string{"provider", "status"})),
		stateCompose: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "state", Name: "compositions_total",
			Help: "State compositions by cache outcome.",
		}, []string{"cache"})),
		actions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "action", Name: "executions_total",
			Help: "Action dispatch outcomes.",
		}, []string{"action", "status"})),
		evaluators: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "evaluator", Name: "executions_total",
			Help: "Evaluator handler outcomes.",
		}, []string{"evaluator", "status"})),
		events: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "event", Name: "emitted_total",
			Help: "Events emitted on the event bus.",
		}, []string{"event"})),
		eventFailures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "event", Name: "handler_failures_total",
			Help: "Event handlers that returned an error or panicked.",
		}, []string{"event"})),
		turnsActive: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "runner", Name: "turns_active",
			Help: "Number of message turns currently in flight.",
		})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}

		panic(err)
	}

	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

// ObserveModelCall records a model handler invocation.
func (m *Metrics) ObserveModelCall(modelType string, d time.Duration, err error) {
	if m == nil {
		return
	}

	m.modelCalls.WithLabelValues(modelType, status(err)).Inc()
	m.modelDuration.WithLabelValues(modelType).Observe(d.Seconds())
}

// ObserveProvider records a provider fetch.
func (m *Metrics) ObserveProvider(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}

	m.providerDuration.WithLabelValues(provider, status(err)).Observe(d.Seconds())
}

// IncStateCompose counts a state composition; hit reports whether a cached
// snapshot existed for the message.
func (m *Metrics) IncStateCompose(hit bool) {
	if m == nil {
		return
	}

	label := "miss"
	if hit {
		label = "hit"
	}

	m.stateCompose.WithLabelValues(label).Inc()
}

// IncAction counts an action dispatch outcome: success, error, unresolved or
// no_handler.
func (m *Metrics) IncAction(action, outcome string) {
	if m == nil {
		return
	}

	m.actions.WithLabelValues(action, outcome).Inc()
}

// IncEvaluator counts an evaluator handler outcome.
func (m *Metrics) IncEvaluator(evaluator string, err error) {
	if m == nil {
		return
	}

	m.evaluators.WithLabelValues(evaluator, status(err)).Inc()
}

// IncEvent counts an emitted event.
func (m *Metrics) IncEvent(event string) {
	if m == nil {
		return
	}

	m.events.WithLabelValues(event).Inc()
}

// IncEventFailure counts a failed event handler.
func (m *Metrics) IncEventFailure(event string) {
	if m == nil {
		return
	}

	m.eventFailures.WithLabelValues(event).Inc()
}

// TurnStarted marks a turn as in flight and returns the matching completion func.
func (m *Metrics) TurnStarted() func() {
	if m == nil {
		return func() {}
	}

	m.turnsActive.Inc()

	return m.turnsActive.Dec
}
