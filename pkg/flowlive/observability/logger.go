// Package observability provides the logging, metrics and tracing hooks used
// across flowlive: slog helpers with consistent field names, OpenTelemetry
// counters and histograms, and OpenTelemetry spans.
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger returns logger with chat_id and flow_id attached. Empty
// values are omitted.
//
//	log := EnrichLogger(logger, "chat-1", "flow-9")
//	log.Info("switching chat") // includes chat_id and flow_id
func EnrichLogger(logger *slog.Logger, chatID, flowID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	var attrs []any
	if chatID != "" {
		attrs = append(attrs, slog.String("chat_id", chatID))
	}
	if flowID != "" {
		attrs = append(attrs, slog.String("flow_id", flowID))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}

// LogValidation logs the outcome of one validation pass.
func LogValidation(logger *slog.Logger, nodes, issues int, structural bool, durationMs float64) {
	if logger == nil {
		return
	}
	level := slog.LevelDebug
	if issues > 0 {
		level = slog.LevelInfo
	}
	logger.Log(context.Background(), level, "flow validated",
		slog.Int("nodes", nodes),
		slog.Int("issues", issues),
		slog.Bool("structural", structural),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFormValidatorFailed logs a form validator that errored or panicked.
// The validator's result is ignored.
func LogFormValidatorFailed(logger *slog.Logger, nodeID, nodeType string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("form validator failed, ignoring its result",
		slog.String("node_id", nodeID),
		slog.String("node_type", nodeType),
		slog.String("error", err.Error()),
	)
}

// LogConnectionOpened logs a successful connect.
func LogConnectionOpened(logger *slog.Logger, url, sessionID string) {
	if logger == nil {
		return
	}
	logger.Info("connection opened",
		slog.String("url", url),
		slog.String("session_id", sessionID),
	)
}

// LogConnectionClosed logs a connection teardown.
func LogConnectionClosed(logger *slog.Logger, sessionID string, code int, reason string, lock bool) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if lock {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "connection closed",
		slog.String("session_id", sessionID),
		slog.Int("code", code),
		slog.String("reason", reason),
		slog.Bool("lock_input", lock),
	)
}

// LogEventDropped logs an inbound event that was not applied.
func LogEventDropped(logger *slog.Logger, reason, category, messageID string) {
	if logger == nil {
		return
	}
	logger.Debug("event dropped",
		slog.String("reason", reason),
		slog.String("category", category),
		slog.String("message_id", messageID),
	)
}

// LogSendFailed logs an outbound command that could not be written.
func LogSendFailed(logger *slog.Logger, action string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("send failed",
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a function reporting the milliseconds elapsed since
// TimedOperation was called.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
