package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

// Drop reasons reported to logs and metrics.
const (
	DropUnknownNode     = "unknown_node"
	DropUnknownCategory = "unknown_category"
	DropNoStreamKey     = "no_stream_key"
	DropNoRunID         = "no_run_id"
	DropNoInputNode     = "no_input_node"
	DropPanic           = "panic"
)

// messageCategories are folded as whole messages.
var messageCategories = map[string]bool{
	protocol.CategoryQuestion:            true,
	protocol.CategoryAnswer:              true,
	protocol.CategoryGuideWord:           true,
	protocol.CategoryGuideQuestion:       true,
	protocol.CategoryOutputMsg:           true,
	protocol.CategoryOutputWithInputMsg:  true,
	protocol.CategoryOutputWithChooseMsg: true,
	protocol.CategoryProcessing:          true,
	protocol.CategorySystem:              true,
}

// awaitingCategories are messages that also leave the run waiting for the
// user.
var awaitingCategories = map[string]bool{
	protocol.CategoryOutputWithInputMsg:  true,
	protocol.CategoryOutputWithChooseMsg: true,
}

// Reconciler folds inbound events into a transcript. It keeps no
// transcript state of its own; callers own the transcript and must not
// fold into it from two goroutines at once.
type Reconciler struct {
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	observer Observer
	knows    func(nodeID string) bool
	now      func() time.Time
	newID    func() string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithObserver receives node-run completions and input requests.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

// WithNodeResolver drops events whose node id fn does not know. Without a
// resolver every node id is accepted.
func WithNodeResolver(fn func(nodeID string) bool) Option {
	return func(r *Reconciler) { r.knows = fn }
}

// WithClock sets the source of CreatedAt. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithIDGenerator sets the generator for ids of entries the server sent
// without one. Default: random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(r *Reconciler) { r.newID = fn }
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		observer: ObserverFuncs{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.observer == nil {
		r.observer = ObserverFuncs{}
	}
	return r
}

// Fold applies ev to transcript and returns the next transcript. The input
// slice is never modified; when ev changes nothing it is returned as is.
// Fold does not panic: events it cannot apply are logged and dropped.
func (r *Reconciler) Fold(transcript []Message, ev protocol.Event) (next []Message) {
	defer func() {
		if p := recover(); p != nil {
			r.drop(ev, DropPanic)
			r.logger.Error("transcript fold panicked", slog.String("panic", fmt.Sprint(p)))
			next = transcript
		}
	}()

	r.metrics.RecordEventReceived(context.Background(), ev.Category)

	if r.knows != nil {
		if id := ev.NodeID(); id != "" && !r.knows(id) {
			r.drop(ev, DropUnknownNode)
			return transcript
		}
	}

	switch {
	case ev.Category == protocol.CategoryEndCover || ev.Type == protocol.TypeEndCover:
		return r.endCover(transcript, ev)
	case ev.Category == protocol.CategorySeparator || ev.Type == protocol.TypeClose:
		return r.separator(transcript, ev)
	case ev.Category == protocol.CategoryNodeRun:
		return r.nodeRun(transcript, ev)
	case ev.Category == protocol.CategoryStream:
		return r.stream(transcript, ev)
	case ev.Category == protocol.CategoryInput:
		if !r.requestInput(ev) {
			r.drop(ev, DropNoInputNode)
		}
		return transcript
	case messageCategories[ev.Category]:
		next = r.whole(transcript, ev)
		if awaitingCategories[ev.Category] {
			r.requestInput(ev)
		}
		return next
	default:
		r.drop(ev, DropUnknownCategory)
		return transcript
	}
}

// FoldAll folds events in order.
func (r *Reconciler) FoldAll(transcript []Message, events ...protocol.Event) []Message {
	for _, ev := range events {
		transcript = r.Fold(transcript, ev)
	}
	return transcript
}

func (r *Reconciler) drop(ev protocol.Event, reason string) {
	observability.LogEventDropped(r.logger, reason, ev.Category, ev.MessageID.String())
	r.metrics.RecordEventDropped(context.Background(), reason)
}

// build creates the entry for ev.
func (r *Reconciler) build(ev protocol.Event) Message {
	m := Message{
		ID:        ev.MessageID,
		ChatID:    ev.ChatID,
		Category:  ev.Category,
		Type:      ev.Type,
		Text:      ev.Text(),
		Payload:   ev.Payload(),
		Source:    ev.Source,
		Extra:     slices.Clone(ev.Extra),
		NodeID:    ev.NodeID(),
		CreatedAt: r.now(),
	}
	if m.ID.IsZero() {
		m.ID = protocol.ID(r.newID())
		m.Local = true
	}
	return m
}

// withoutHistoryCopy returns a copy of transcript without history-only
// entries carrying id.
func withoutHistoryCopy(transcript []Message, id protocol.ID) []Message {
	out := make([]Message, 0, len(transcript)+1)
	for _, m := range transcript {
		if !id.IsZero() && m.HistoryOnly && m.ID == id {
			continue
		}
		out = append(out, m.clone())
	}
	return out
}

// whole appends a complete message, replacing a history copy of it.
func (r *Reconciler) whole(transcript []Message, ev protocol.Event) []Message {
	m := r.build(ev)
	m.Terminal = ev.Type == protocol.TypeOver
	return append(withoutHistoryCopy(transcript, ev.MessageID), m)
}

// stream merges a delta into its in-flight entry, creating it on the
// first chunk. The end chunk carries the final text and id.
func (r *Reconciler) stream(transcript []Message, ev protocol.Event) []Message {
	chunk, ok := ev.StreamChunk()
	key := StreamKey{UniqueID: chunk.UniqueID, OutputKey: chunk.OutputKey}
	if !ok || key.IsZero() {
		r.drop(ev, DropNoStreamKey)
		return transcript
	}
	final := ev.Type == protocol.TypeEnd

	idx := slices.IndexFunc(transcript, func(m Message) bool {
		return !m.Terminal && m.Key == key
	})
	if idx < 0 {
		m := r.build(ev)
		m.Key = key
		m.Text = chunk.Msg
		m.Reasoning = chunk.ReasoningContent
		m.Terminal = final
		if chunk.NodeID != "" {
			m.NodeID = chunk.NodeID
		}
		return append(withoutHistoryCopy(transcript, ev.MessageID), m)
	}

	next := Clone(transcript)
	m := next[idx]
	if final {
		m.Text = chunk.Msg
		if chunk.ReasoningContent != "" {
			m.Reasoning = chunk.ReasoningContent
		}
		if !ev.MessageID.IsZero() {
			m.ID = ev.MessageID
			m.Local = false
		}
		m.Terminal = true
	} else {
		m.Text += chunk.Msg
		m.Reasoning += chunk.ReasoningContent
	}
	m.Type = ev.Type
	m.Payload = ev.Payload()
	next[idx] = m
	return next
}

// nodeRun keeps one progress entry per run id and removes it when the run
// ends.
func (r *Reconciler) nodeRun(transcript []Message, ev protocol.Event) []Message {
	run, ok := ev.NodeRun()
	if !ok || run.UniqueID == "" {
		r.drop(ev, DropNoRunID)
		return transcript
	}

	idx := slices.IndexFunc(transcript, func(m Message) bool {
		return m.Category == protocol.CategoryNodeRun && m.Key.UniqueID == run.UniqueID
	})

	if ev.Type == protocol.TypeEnd {
		next := transcript
		if idx >= 0 {
			next = slices.Delete(Clone(transcript), idx, idx+1)
		}
		r.observer.NodeRunFinished(run)
		return next
	}

	m := r.build(ev)
	m.Key = StreamKey{UniqueID: run.UniqueID}
	m.NodeID = run.NodeID
	m.Text = run.Name
	if idx < 0 {
		return append(Clone(transcript), m)
	}
	next := Clone(transcript)
	prev := next[idx]
	m.ID, m.Local, m.CreatedAt = prev.ID, prev.Local, prev.CreatedAt
	next[idx] = m
	return next
}

// separator appends a round boundary unless the last entry already is one.
func (r *Reconciler) separator(transcript []Message, ev protocol.Event) []Message {
	if n := len(transcript); n > 0 && transcript[n-1].Category == protocol.CategorySeparator {
		return transcript
	}
	m := r.build(ev)
	m.Category = protocol.CategorySeparator
	m.Terminal = true
	return append(Clone(transcript), m)
}

// endCover appends the override message and then purges every entry that
// is not terminal. The override is built terminal so it survives.
func (r *Reconciler) endCover(transcript []Message, ev protocol.Event) []Message {
	m := r.build(ev)
	m.Category = protocol.CategoryEndCover
	m.Terminal = true
	next := append(Clone(transcript), m)
	return slices.DeleteFunc(next, func(m Message) bool { return !m.Terminal })
}

func (r *Reconciler) requestInput(ev protocol.Event) bool {
	req, _ := ev.InputRequest()
	if req.NodeID == "" {
		return false
	}
	r.observer.InputRequested(InputRequest{
		ChatID:    ev.ChatID,
		NodeID:    req.NodeID,
		MessageID: ev.MessageID,
		Category:  ev.Category,
		Schema:    req.Schema,
	})
	return true
}
