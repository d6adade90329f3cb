package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	flerrors "github.com/randalmurphal/flowlive/pkg/flowlive/errors"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

// Sentinel errors.
var (
	// ErrNotConnected is returned by Send when no connection is open.
	// Commands are never queued.
	ErrNotConnected = errors.New("conn: not connected")

	// ErrClosedWhileDialing is returned by Open when Close ran during the dial.
	ErrClosedWhileDialing = errors.New("conn: closed while dialing")
)

// Session identifies one live connection.
type Session struct {
	ID       string
	URL      string
	OpenedAt time.Time

	ws       *websocket.Conn
	writeMu  sync.Mutex
	stopped  atomic.Bool
	handling atomic.Bool
	done     chan struct{}
}

// Done is closed when the session's read loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Manager owns at most one connection at a time. It is safe for concurrent
// use.
type Manager struct {
	dialer           *websocket.Dialer
	handler          Handler
	onError          ErrorHandler
	onClose          CloseHandler
	policy           protocol.ClosePolicy
	logger           *slog.Logger
	metrics          observability.MetricsRecorder
	spans            observability.SpanManager
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	readLimit        int64

	dials singleflight.Group

	mu      sync.Mutex
	state   State
	session *Session
}

// New creates an idle Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		policy:           protocol.DefaultClosePolicy(),
		metrics:          observability.NoopMetrics{},
		spans:            observability.NoopSpanManager{},
		writeTimeout:     DefaultWriteTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		readLimit:        DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = m.handshakeTimeout
		m.dialer = &d
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the open session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen {
		return nil
	}
	return m.session
}

// Open connects to rawURL, or returns the already open session. Concurrent
// calls while a dial is in flight share its outcome. http and https URLs
// are dialed as ws and wss.
//
// Cancelling ctx makes this call return ctx.Err() but does not abort a dial
// other callers are waiting on; the dial is bounded by the handshake
// timeout.
func (m *Manager) Open(ctx context.Context, rawURL string) (*Session, error) {
	if s := m.openSession(rawURL); s != nil {
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dialCtx := context.WithoutCancel(ctx)
	ch := m.dials.DoChan("open", func() (any, error) {
		return m.dial(dialCtx, rawURL)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

func (m *Manager) openSession(rawURL string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.session == nil {
		return nil
	}
	if m.session.URL != rawURL && m.logger != nil {
		m.logger.Warn("connection already open for a different url",
			slog.String("open_url", m.session.URL),
			slog.String("requested_url", rawURL),
		)
	}
	return m.session
}

func (m *Manager) dial(ctx context.Context, rawURL string) (*Session, error) {
	if s := m.openSession(rawURL); s != nil {
		return s, nil
	}

	target, err := wsURL(rawURL)
	if err != nil {
		return nil, &flerrors.TransportError{Op: "dial", Err: err}
	}

	m.mu.Lock()
	m.setState(StateConnecting)
	m.mu.Unlock()

	ctx, span := m.spans.StartConnectSpan(ctx, target)
	ws, _, err := m.dialer.DialContext(ctx, target, nil)
	if err != nil {
		m.mu.Lock()
		if m.state == StateConnecting {
			m.setState(StateIdle)
		}
		m.mu.Unlock()
		err = &flerrors.TransportError{Op: "dial", Err: err}
		m.spans.EndSpanWithError(span, err)
		return nil, err
	}
	if m.readLimit > 0 {
		ws.SetReadLimit(m.readLimit)
	}

	s := &Session{
		ID:       uuid.NewString(),
		URL:      rawURL,
		OpenedAt: time.Now(),
		ws:       ws,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		_ = ws.Close()
		m.spans.EndSpanWithError(span, ErrClosedWhileDialing)
		return nil, ErrClosedWhileDialing
	}
	m.session = s
	m.setState(StateOpen)
	m.mu.Unlock()

	m.spans.EndSpanWithError(span, nil)
	observability.LogConnectionOpened(m.logger, target, s.ID)

	go m.readLoop(s)
	return s, nil
}

// wsURL maps http(s) schemes onto ws(s).
func wsURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return u.String(), nil
}

// Send encodes cmd and writes it as one text frame.
func (m *Manager) Send(ctx context.Context, cmd protocol.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.Session()
	if s == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s command: %w", cmd.Action, err)
	}

	deadline := time.Now().Add(m.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.stopped.Load() {
		return ErrNotConnected
	}
	_ = s.ws.SetWriteDeadline(deadline)
	if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		m.metrics.RecordSendFailure(ctx, cmd.Action)
		observability.LogSendFailed(m.logger, cmd.Action, err)
		return &flerrors.TransportError{Op: "send", Err: err}
	}
	return nil
}

// Close shuts the connection down. It is safe in any state and may be
// called any number of times, including from the event handler. It returns
// once the read loop has exited, unless a handler is still running on it;
// no event is dispatched after Close begins either way.
func (m *Manager) Close() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	switch {
	case s != nil:
		m.setState(StateClosing)
	case m.state == StateConnecting:
		m.setState(StateClosed)
	}
	m.mu.Unlock()

	if s == nil || !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(m.writeTimeout)); err != nil && m.logger != nil {
		m.logger.Debug("close frame not sent", slog.String("error", err.Error()))
	}
	err := s.ws.Close()
	s.writeMu.Unlock()

	if !s.handling.Load() {
		<-s.done
	}

	m.mu.Lock()
	if m.state == StateClosing {
		m.setState(StateClosed)
	}
	m.mu.Unlock()

	observability.LogConnectionClosed(m.logger, s.ID, websocket.CloseNormalClosure, "", false)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return &flerrors.TransportError{Op: "close", Err: err}
	}
	return nil
}

func (m *Manager) readLoop(s *Session) {
	defer close(s.done)
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			m.readFailed(s, err)
			return
		}
		if s.stopped.Load() {
			return
		}

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			m.metrics.RecordEventDropped(context.Background(), "malformed")
			if m.logger != nil {
				m.logger.Debug("dropping malformed frame", slog.String("error", err.Error()))
			}
			continue
		}
		m.dispatch(s, ev)
	}
}

func (m *Manager) dispatch(s *Session, ev protocol.Event) {
	if m.handler == nil {
		return
	}
	s.handling.Store(true)
	defer s.handling.Store(false)
	if s.stopped.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("conn: handler panic on %s/%s: %v", ev.Type, ev.Category, r)
			if m.logger != nil {
				m.logger.Error("event handler panicked",
					slog.String("error", err.Error()),
					slog.String("stack", string(debug.Stack())),
				)
			}
			if m.onError != nil {
				m.onError(err)
			}
		}
	}()
	m.handler(ev)
}

// readFailed handles the end of a session that was not closed locally.
func (m *Manager) readFailed(s *Session, err error) {
	if s.stopped.Swap(true) {
		return
	}

	var info protocol.CloseInfo
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		info = m.policy.Classify(ce.Code, ce.Text)
	} else {
		info = m.policy.Classify(protocol.CloseAbnormal, err.Error())
	}

	m.mu.Lock()
	if m.session == s {
		m.session = nil
		m.setState(StateClosed)
	}
	m.mu.Unlock()

	s.writeMu.Lock()
	_ = s.ws.Close()
	s.writeMu.Unlock()

	observability.LogConnectionClosed(m.logger, s.ID, info.Code, info.Reason, info.Lock)
	if m.onClose != nil {
		m.onClose(info)
	}
}

// setState must be called with m.mu held.
func (m *Manager) setState(to State) {
	if m.state == to {
		return
	}
	m.metrics.RecordConnectionTransition(context.Background(), m.state.String(), to.String())
	m.state = to
}
