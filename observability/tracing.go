package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const traceScope = "plugmesh"

// Span names.
const (
	SpanComposeState = "plugmesh.state.compose"
	SpanProvider     = "plugmesh.state.provider"
	SpanAction       = "plugmesh.action.execute"
	SpanEvaluate     = "plugmesh.evaluator.run"
	SpanModel        = "plugmesh.model.invoke"
	SpanTurn         = "plugmesh.runner.turn"
	SpanKnowledge    = "plugmesh.knowledge.ingest"
)

// Span attribute keys.
const (
	AttrAgentID   = "plugmesh.agent_id"
	AttrMessageID = "plugmesh.message_id"
	AttrName      = "plugmesh.name"
	AttrModelType = "plugmesh.model_type"
	AttrStatus    = "plugmesh.status"
)

// StartSpan starts a span under the plugmesh tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, name, trace.WithAttributes(attrs...))
}

// MarkSpanResult records err on span and sets the status attribute.
func MarkSpanResult(span trace.Span, err error) {
	if span == nil {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrStatus, "error"))

		return
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(AttrStatus, "success"))
}
