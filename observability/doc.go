// Package observability exposes Prometheus collectors and OpenTelemetry span
// helpers shared by the runtime components. Every Metrics method is safe to
// call on a nil receiver so components can run without instrumentation.
package observability
