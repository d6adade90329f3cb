package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("flowlive")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartValidateSpan starts a span around one validation pass.
	StartValidateSpan(ctx context.Context, nodes, edges int, structural bool) (context.Context, trace.Span)

	// StartConnectSpan starts a span around a connection attempt.
	StartConnectSpan(ctx context.Context, url string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span in ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager backed by the global tracer provider.
func NewSpanManager() SpanManager {
	return otelSpanManager{}
}

func (otelSpanManager) StartValidateSpan(ctx context.Context, nodes, edges int, structural bool) (context.Context, trace.Span) {
	return StartValidateSpan(ctx, nodes, edges, structural)
}

func (otelSpanManager) StartConnectSpan(ctx context.Context, url string) (context.Context, trace.Span) {
	return StartConnectSpan(ctx, url)
}

func (otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartValidateSpan starts a "flowlive.validate" span on the global tracer.
func StartValidateSpan(ctx context.Context, nodes, edges int, structural bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowlive.validate",
		trace.WithAttributes(
			attribute.Int("graph.nodes", nodes),
			attribute.Int("graph.edges", edges),
			attribute.Bool("validate.structural", structural),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartConnectSpan starts a "flowlive.connect" span on the global tracer.
func StartConnectSpan(ctx context.Context, url string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowlive.connect",
		trace.WithAttributes(attribute.String("server.url", url)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
