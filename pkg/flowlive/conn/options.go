package conn

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

// Handler receives decoded inbound events in arrival order.
type Handler func(ev protocol.Event)

// ErrorHandler receives failures that happen off the caller's goroutine,
// such as a panicking Handler.
type ErrorHandler func(err error)

// CloseHandler is called once when the server closes the connection or
// the read fails. It is not called for a local Close.
type CloseHandler func(info protocol.CloseInfo)

// Option configures a Manager.
type Option func(*Manager)

// Defaults for transport limits.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 4 << 20
)

// WithDialer replaces the WebSocket dialer. WithHandshakeTimeout is ignored
// when a dialer is supplied.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithHandler sets the inbound event handler.
func WithHandler(h Handler) Option {
	return func(m *Manager) { m.handler = h }
}

// WithErrorHandler sets the handler for asynchronous failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *Manager) { m.onError = h }
}

// WithCloseHandler sets the handler for remote closes.
func WithCloseHandler(h CloseHandler) Option {
	return func(m *Manager) { m.onClose = h }
}

// WithClosePolicy sets the close codes that forbid automatic reconnects.
func WithClosePolicy(p protocol.ClosePolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r observability.MetricsRecorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithSpanManager sets the tracer used around dials.
func WithSpanManager(s observability.SpanManager) Option {
	return func(m *Manager) {
		if s != nil {
			m.spans = s
		}
	}
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.writeTimeout = d
		}
	}
}

// WithHandshakeTimeout bounds the opening handshake of the default dialer.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.handshakeTimeout = d
		}
	}
}

// WithReadLimit caps the size of one inbound frame. Zero means no limit.
func WithReadLimit(n int64) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.readLimit = n
		}
	}
}
