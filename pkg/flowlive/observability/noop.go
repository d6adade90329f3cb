package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordValidation(context.Context, int, bool, time.Duration) {}
func (NoopMetrics) RecordEventReceived(context.Context, string)                {}
func (NoopMetrics) RecordEventDropped(context.Context, string)                 {}
func (NoopMetrics) RecordConnectionTransition(context.Context, string, string) {}
func (NoopMetrics) RecordSendFailure(context.Context, string)                  {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartValidateSpan returns ctx unchanged and a no-op span.
func (NoopSpanManager) StartValidateSpan(ctx context.Context, _, _ int, _ bool) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartConnectSpan returns ctx unchanged and a no-op span.
func (NoopSpanManager) StartConnectSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
