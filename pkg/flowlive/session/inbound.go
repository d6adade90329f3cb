package session

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/flowlive/pkg/flowlive/event"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

// DropStaleChat is the drop reason for events addressed to another chat.
const DropStaleChat = "stale_chat"

// foldObserver collects reconciler signals. Its methods run inside Fold,
// which is only called with s.mu held.
type foldObserver struct{ s *Session }

func (o foldObserver) NodeRunFinished(run protocol.NodeRun) {
	o.s.finished = append(o.s.finished, run)
}

func (o foldObserver) InputRequested(req transcript.InputRequest) {
	o.s.input = InputState{
		NodeID:    req.NodeID,
		MessageID: req.MessageID,
		Category:  req.Category,
		Schema:    req.Schema,
	}
	o.s.inputDirty = true
}

// handleEvent runs on the connection's read goroutine.
func (s *Session) handleEvent(ev protocol.Event) {
	ctx := context.Background()

	s.mu.Lock()
	if s.closed || s.chatID == "" || (ev.ChatID != "" && ev.ChatID != s.chatID) {
		s.mu.Unlock()
		s.metrics.RecordEventDropped(ctx, DropStaleChat)
		observability.LogEventDropped(s.logger, DropStaleChat, ev.Category, ev.MessageID.String())
		return
	}

	prev := s.transcript
	next := s.rec.Fold(prev, ev)
	changed := !sameTranscript(prev, next)
	if changed {
		next = transcript.TrimOldest(next, s.cfg.MaxTranscript)
		s.transcript = next
	}

	chatID := s.chatID
	settled := newlySettled(prev, next)
	finished := s.finished
	s.finished = nil
	inputDirty, input := s.inputDirty, s.input
	s.inputDirty = false
	summary := event.TranscriptChanged{Length: len(next)}
	if n := len(next); n > 0 {
		summary.LastMessageID = next[n-1].ID.String()
	}
	s.mu.Unlock()

	if s.store != nil && len(settled) > 0 {
		if err := s.store.Append(ctx, chatID, settled); err != nil {
			s.logger.Warn("history append failed",
				slog.String("chat_id", chatID),
				slog.String("error", err.Error()),
			)
		}
	}
	if changed {
		s.publish(ctx, chatID, func(ctx context.Context) error {
			return event.TranscriptTopic.Publish(ctx, s.bus, eventSource, chatID, summary)
		})
	}
	for _, run := range finished {
		status := event.NodeStatus{
			NodeID:   run.NodeID,
			UniqueID: run.UniqueID,
			Name:     run.Name,
			Status:   run.Status,
			Reason:   run.Reason,
		}
		s.publish(ctx, chatID, func(ctx context.Context) error {
			return event.NodeStatusTopic.Publish(ctx, s.bus, eventSource, chatID, status)
		})
	}
	if inputDirty {
		s.publishInput(ctx, chatID, input)
	}
}

// handleClose runs when the server ends the connection.
func (s *Session) handleClose(info protocol.CloseInfo) {
	ctx := context.Background()

	s.mu.Lock()
	s.lastClose = &info
	chatID := s.chatID
	var in InputState
	if info.Lock {
		in = InputState{
			Locked:      true,
			CloseCode:   info.Code,
			CloseReason: info.Reason,
			NoRetry:     info.NoRetry,
		}
		s.input = in
	}
	s.mu.Unlock()

	if !info.Lock {
		return
	}
	s.publish(ctx, chatID, func(ctx context.Context) error {
		return event.InputLockTopic.Publish(ctx, s.bus, eventSource, chatID, event.InputLock{
			Locked:  true,
			Code:    info.Code,
			Reason:  info.Reason,
			NoRetry: info.NoRetry,
		})
	})
	s.publishInput(ctx, chatID, in)
}

// sameTranscript reports whether next is prev returned unchanged by Fold.
func sameTranscript(prev, next []transcript.Message) bool {
	if len(prev) != len(next) {
		return false
	}
	return len(prev) == 0 || &prev[0] == &next[0]
}

// newlySettled returns the server-identified entries of next that became
// terminal with this fold.
func newlySettled(prev, next []transcript.Message) []transcript.Message {
	done := make(map[protocol.ID]bool, len(prev))
	for _, m := range prev {
		if m.Terminal {
			done[m.ID] = true
		}
	}
	var out []transcript.Message
	for _, m := range next {
		if m.Terminal && !m.Local && !m.HistoryOnly && !m.ID.IsZero() && !done[m.ID] {
			out = append(out, m)
		}
	}
	return out
}
