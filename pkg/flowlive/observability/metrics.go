package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records flowlive metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordValidation records one validation pass.
	RecordValidation(ctx context.Context, issues int, structural bool, duration time.Duration)

	// RecordEventReceived records an inbound event by category.
	RecordEventReceived(ctx context.Context, category string)

	// RecordEventDropped records an inbound event that was not applied.
	RecordEventDropped(ctx context.Context, reason string)

	// RecordConnectionTransition records a connection state change.
	RecordConnectionTransition(ctx context.Context, from, to string)

	// RecordSendFailure records an outbound command that failed.
	RecordSendFailure(ctx context.Context, action string)
}

type otelMetrics struct {
	validationRuns    metric.Int64Counter
	validationIssues  metric.Int64Counter
	validationLatency metric.Float64Histogram
	eventsReceived    metric.Int64Counter
	eventsDropped     metric.Int64Counter
	transitions       metric.Int64Counter
	sendFailures      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("flowlive")
	m := &otelMetrics{}
	var err error

	if m.validationRuns, err = meter.Int64Counter("flowlive.validation.runs",
		metric.WithDescription("Number of validation passes"),
	); err != nil {
		return nil, err
	}
	if m.validationIssues, err = meter.Int64Counter("flowlive.validation.issues",
		metric.WithDescription("Number of issues reported by validation"),
	); err != nil {
		return nil, err
	}
	if m.validationLatency, err = meter.Float64Histogram("flowlive.validation.latency_ms",
		metric.WithDescription("Validation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.eventsReceived, err = meter.Int64Counter("flowlive.events.received",
		metric.WithDescription("Inbound events received"),
	); err != nil {
		return nil, err
	}
	if m.eventsDropped, err = meter.Int64Counter("flowlive.events.dropped",
		metric.WithDescription("Inbound events dropped without changing the transcript"),
	); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("flowlive.connection.transitions",
		metric.WithDescription("Connection state transitions"),
	); err != nil {
		return nil, err
	}
	if m.sendFailures, err = meter.Int64Counter("flowlive.send.failures",
		metric.WithDescription("Outbound commands that could not be sent"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider, or a no-op recorder if instrument creation fails.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordValidation(ctx context.Context, issues int, structural bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Bool("structural", structural),
		attribute.Bool("ok", issues == 0),
	)
	m.validationRuns.Add(ctx, 1, attrs)
	m.validationIssues.Add(ctx, int64(issues), attrs)
	m.validationLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *otelMetrics) RecordEventReceived(ctx context.Context, category string) {
	m.eventsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

func (m *otelMetrics) RecordEventDropped(ctx context.Context, reason string) {
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *otelMetrics) RecordConnectionTransition(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *otelMetrics) RecordSendFailure(ctx context.Context, action string) {
	m.sendFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
