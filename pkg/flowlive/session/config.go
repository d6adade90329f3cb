package session

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/randalmurphal/flowlive/pkg/flowlive"
	"github.com/randalmurphal/flowlive/pkg/flowlive/config"
	"github.com/randalmurphal/flowlive/pkg/flowlive/conn"
	flerrors "github.com/randalmurphal/flowlive/pkg/flowlive/errors"
	"github.com/randalmurphal/flowlive/pkg/flowlive/event"
	"github.com/randalmurphal/flowlive/pkg/flowlive/history"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

// Config holds the per-session settings.
type Config struct {
	// URL is the run server endpoint. The chat id is added as the chat_id
	// query parameter.
	URL    string
	FlowID string

	// MaxTranscript evicts the oldest entries past this size. Zero keeps
	// everything.
	MaxTranscript int
	// PageSize is the default LoadOlder page size.
	PageSize int

	Reconnect   flerrors.RetryConfig
	ClosePolicy protocol.ClosePolicy

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

// ConfigFrom maps validated settings onto a session Config.
func ConfigFrom(s config.Settings) Config {
	return Config{
		URL:              s.ServerURL,
		FlowID:           s.FlowID,
		MaxTranscript:    s.MaxTranscript,
		PageSize:         s.HistoryPageSize,
		Reconnect:        s.Reconnect,
		ClosePolicy:      s.ClosePolicy(),
		HandshakeTimeout: s.HandshakeTimeout,
		WriteTimeout:     s.WriteTimeout,
		ReadLimit:        s.ReadLimit,
	}
}

// chatURL returns base with the chat_id query parameter set.
func chatURL(base, chatID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("chat_id", chatID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Option configures a Session.
type Option func(*Session)

// WithBus publishes transcript, input and node status changes on bus.
func WithBus(bus event.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithHistory stores terminal messages and serves LoadOlder.
func WithHistory(store history.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder shared with the connection and the
// reconciler.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithGraph drops events for nodes that g does not contain.
func WithGraph(g *flowlive.Graph) Option {
	return func(s *Session) {
		if g != nil {
			s.knows = g.HasNode
		}
	}
}

// WithConnOptions passes extra options to the connection manager, after
// the ones derived from Config.
func WithConnOptions(opts ...conn.Option) Option {
	return func(s *Session) { s.connOpts = append(s.connOpts, opts...) }
}
