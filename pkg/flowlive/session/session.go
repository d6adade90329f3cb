package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/flowlive/pkg/flowlive/conn"
	flerrors "github.com/randalmurphal/flowlive/pkg/flowlive/errors"
	"github.com/randalmurphal/flowlive/pkg/flowlive/event"
	"github.com/randalmurphal/flowlive/pkg/flowlive/history"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

// eventSource names the session on the event bus.
const eventSource = "session"

// Sentinel errors.
var (
	ErrClosed      = errors.New("session closed")
	ErrNoChat      = errors.New("no active chat")
	ErrEmptyChatID = errors.New("chat id cannot be empty")
	ErrInputLocked = errors.New("input is locked")
	ErrNoHistory   = errors.New("no history store configured")
)

// InputState describes whether the user may answer and what the answer
// belongs to.
type InputState struct {
	Locked    bool
	NodeID    string
	MessageID protocol.ID
	Category  string
	Schema    json.RawMessage

	// Set after an abnormal close.
	CloseCode   int
	CloseReason string
	NoRetry     bool
}

func lockedInput() InputState { return InputState{Locked: true} }

// Session is one live chat view. It is safe for concurrent use.
type Session struct {
	cfg      Config
	conn     *conn.Manager
	rec      *transcript.Reconciler
	bus      event.Bus
	store    history.Store
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	knows    func(nodeID string) bool
	connOpts []conn.Option

	// ops serializes Switch, Reconnect and Close. It is never held by the
	// read goroutine.
	ops sync.Mutex

	mu         sync.Mutex
	closed     bool
	chatID     string
	transcript []transcript.Message
	input      InputState
	inputDirty bool
	finished   []protocol.NodeRun
	lastClose  *protocol.CloseInfo
}

// New creates a Session with no active chat.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		input:   lockedInput(),
	}
	for _, opt := range opts {
		opt(s)
	}

	recOpts := []transcript.Option{
		transcript.WithLogger(s.logger),
		transcript.WithMetrics(s.metrics),
		transcript.WithObserver(foldObserver{s}),
	}
	if s.knows != nil {
		recOpts = append(recOpts, transcript.WithNodeResolver(s.knows))
	}
	s.rec = transcript.NewReconciler(recOpts...)

	connOpts := []conn.Option{
		conn.WithHandler(s.handleEvent),
		conn.WithCloseHandler(s.handleClose),
		conn.WithErrorHandler(func(err error) {
			s.logger.Error("connection handler failed", slog.String("error", err.Error()))
		}),
		conn.WithLogger(s.logger),
		conn.WithMetrics(s.metrics),
		conn.WithWriteTimeout(cfg.WriteTimeout),
		conn.WithHandshakeTimeout(cfg.HandshakeTimeout),
		conn.WithReadLimit(cfg.ReadLimit),
	}
	if cfg.ClosePolicy != nil {
		connOpts = append(connOpts, conn.WithClosePolicy(cfg.ClosePolicy))
	}
	s.conn = conn.New(append(connOpts, s.connOpts...)...)
	return s
}

// ChatID returns the active chat id, or "".
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Transcript returns a copy of the current transcript.
func (s *Session) Transcript() []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transcript.Clone(s.transcript)
}

// InputState returns the current input state.
func (s *Session) InputState() InputState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// State returns the connection state.
func (s *Session) State() conn.State {
	return s.conn.State()
}

// Switch makes chatID the active chat. Switching to the chat that is
// already active and connected does nothing.
func (s *Session) Switch(ctx context.Context, chatID string) error {
	if chatID == "" {
		return ErrEmptyChatID
	}
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	same := s.chatID == chatID
	s.mu.Unlock()
	if same && s.conn.State() == conn.StateOpen {
		return nil
	}

	// Nothing from the old chat is read after this returns.
	_ = s.conn.Close()

	s.mu.Lock()
	s.chatID = chatID
	s.transcript = nil
	s.input = lockedInput()
	s.inputDirty = false
	s.finished = nil
	s.lastClose = nil
	s.mu.Unlock()

	observability.EnrichLogger(s.logger, chatID, s.cfg.FlowID).Info("switched chat")
	s.publish(ctx, chatID, func(ctx context.Context) error {
		return event.TranscriptTopic.Publish(ctx, s.bus, eventSource, chatID, event.TranscriptChanged{})
	})
	s.publishInput(ctx, chatID, lockedInput())

	return s.connect(ctx, chatID)
}

// connect opens the connection for chatID and starts the run.
func (s *Session) connect(ctx context.Context, chatID string) error {
	target, err := chatURL(s.cfg.URL, chatID)
	if err != nil {
		return flerrors.Permanent(err, "build chat url")
	}
	if _, err := s.conn.Open(ctx, target); err != nil {
		return err
	}
	return s.conn.Send(ctx, protocol.InitData(s.cfg.FlowID, chatID, nil))
}

// Reconnect reopens the active chat with the configured retry policy. It
// refuses when the last close was under the lock policy.
func (s *Session) Reconnect(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	closed, chatID, last := s.closed, s.chatID, s.lastClose
	s.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case chatID == "":
		return ErrNoChat
	case last != nil && last.NoRetry:
		return flerrors.Locked(last.Err(), "reconnect refused")
	}
	if s.conn.State() == conn.StateOpen {
		return nil
	}

	cfg := s.cfg.Reconnect
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
			s.logger.Warn("reconnect attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
	}
	res := flerrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.connect(ctx, chatID)
	})
	if res.Err != nil {
		return res.Err
	}

	s.mu.Lock()
	s.lastClose = nil
	s.mu.Unlock()
	return nil
}

// SubmitInput answers the pending input request with values.
func (s *Session) SubmitInput(ctx context.Context, values map[string]any) error {
	s.mu.Lock()
	in, chatID := s.input, s.chatID
	if in.Locked || in.NodeID == "" {
		s.mu.Unlock()
		return ErrInputLocked
	}
	// Lock before sending so a second submit cannot answer twice.
	s.input = lockedInput()
	s.mu.Unlock()

	cmd := protocol.Input(s.cfg.FlowID, chatID, in.NodeID, in.MessageID, values)
	if err := s.conn.Send(ctx, cmd); err != nil {
		s.mu.Lock()
		if s.chatID == chatID && s.input.Locked && s.input.NodeID == "" && s.lastClose == nil {
			s.input = in
		}
		s.mu.Unlock()
		return err
	}
	s.publishInput(ctx, chatID, lockedInput())
	return nil
}

// Stop asks the server to abort the run.
func (s *Session) Stop(ctx context.Context) error {
	return s.command(ctx, protocol.Stop)
}

// CheckStatus asks the server to report the run status.
func (s *Session) CheckStatus(ctx context.Context) error {
	return s.command(ctx, protocol.CheckStatus)
}

// RefreshFlow asks the server to reload the flow definition.
func (s *Session) RefreshFlow(ctx context.Context) error {
	return s.command(ctx, protocol.RefreshFlow)
}

func (s *Session) command(ctx context.Context, build func(flowID, chatID string) protocol.Command) error {
	chatID := s.ChatID()
	if chatID == "" {
		return ErrNoChat
	}
	return s.conn.Send(ctx, build(s.cfg.FlowID, chatID))
}

// LoadOlder prepends up to limit history entries older than the oldest
// entry in the transcript. It returns how many entries were added. A page
// that arrives after a chat switch is discarded.
func (s *Session) LoadOlder(ctx context.Context, limit int) (int, error) {
	if s.store == nil {
		return 0, ErrNoHistory
	}
	if limit <= 0 {
		limit = s.cfg.PageSize
	}

	s.mu.Lock()
	chatID := s.chatID
	oldest, _ := transcript.OldestID(s.transcript)
	s.mu.Unlock()
	if chatID == "" {
		return 0, ErrNoChat
	}

	page, err := s.store.Page(ctx, history.PageRequest{ChatID: chatID, BeforeID: oldest, Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	merged, ok := transcript.MergeHistory(s.transcript, page, s.chatID)
	if !ok {
		s.mu.Unlock()
		return 0, nil
	}
	added := len(merged) - len(s.transcript)
	s.transcript = merged
	changed := event.TranscriptChanged{Length: len(merged), Prepended: added}
	if n := len(merged); n > 0 {
		changed.LastMessageID = merged[n-1].ID.String()
	}
	s.mu.Unlock()

	if added > 0 {
		s.publish(ctx, chatID, func(ctx context.Context) error {
			return event.TranscriptTopic.Publish(ctx, s.bus, eventSource, chatID, changed)
		})
	}
	return added, nil
}

// Close ends the session. It does not close the history store.
func (s *Session) Close() error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.conn.Close()
}

func (s *Session) publishInput(ctx context.Context, chatID string, in InputState) {
	payload := event.InputState{
		Locked:    in.Locked,
		NodeID:    in.NodeID,
		MessageID: in.MessageID.String(),
		Schema:    in.Schema,
	}
	s.publish(ctx, chatID, func(ctx context.Context) error {
		return event.InputStateTopic.Publish(ctx, s.bus, eventSource, chatID, payload)
	})
}

func (s *Session) publish(ctx context.Context, chatID string, fn func(context.Context) error) {
	if s.bus == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.Warn("publish failed",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}
