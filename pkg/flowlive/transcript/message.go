package transcript

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

// StreamKey identifies an in-flight streamed message until the server
// assigns its final id. Two keys are equal when both parts are equal.
type StreamKey struct {
	UniqueID  string `json:"unique_id,omitempty"`
	OutputKey string `json:"output_key,omitempty"`
}

// IsZero reports whether the key is unset.
func (k StreamKey) IsZero() bool { return k.UniqueID == "" && k.OutputKey == "" }

// String returns a readable form for logs.
func (k StreamKey) String() string {
	if k.IsZero() {
		return ""
	}
	return k.UniqueID + "/" + k.OutputKey
}

// Message is one transcript entry.
type Message struct {
	ID       protocol.ID `json:"id"`
	ChatID   string      `json:"chat_id,omitempty"`
	Category string      `json:"category"`
	Type     string      `json:"type,omitempty"`

	// Text is the display text. Streamed entries accumulate it.
	Text string `json:"text,omitempty"`
	// Reasoning is auxiliary text streamed alongside Text.
	Reasoning string `json:"reasoning,omitempty"`
	// Payload is the decoded message field of the latest event.
	Payload any `json:"payload,omitempty"`

	Source    int             `json:"source,omitempty"`
	Extra     json.RawMessage `json:"extra,omitempty"`
	NodeID    string          `json:"node_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	// Terminal is set once no further deltas are expected.
	Terminal bool `json:"terminal"`
	// HistoryOnly marks entries loaded from history rather than seen live.
	HistoryOnly bool `json:"history_only,omitempty"`
	// Local marks an id generated on this side because the server sent none.
	Local bool `json:"local,omitempty"`

	Key StreamKey `json:"key,omitzero"`
}

func (m Message) clone() Message {
	m.Extra = bytes.Clone(m.Extra)
	return m
}

// Clone returns a copy of transcript that shares no slices with it.
func Clone(transcript []Message) []Message {
	if transcript == nil {
		return nil
	}
	out := make([]Message, len(transcript))
	for i, m := range transcript {
		out[i] = m.clone()
	}
	return out
}

// Find returns the index of the entry with id.
func Find(transcript []Message, id protocol.ID) (int, bool) {
	if id.IsZero() {
		return -1, false
	}
	for i, m := range transcript {
		if m.ID == id {
			return i, true
		}
	}
	return -1, false
}

// OldestID returns the id of the oldest settled entry carrying a server id:
// one that is terminal or came from history. It is the exclusive upper bound
// for the next history page. Entries still in flight are skipped since no
// history store has seen them yet.
func OldestID(transcript []Message) (protocol.ID, bool) {
	for _, m := range transcript {
		if m.Local || m.ID.IsZero() {
			continue
		}
		if m.Terminal || m.HistoryOnly {
			return m.ID, true
		}
	}
	return "", false
}

// TrimOldest evicts the oldest entries so that at most max remain. A max
// of zero or less keeps everything.
func TrimOldest(transcript []Message, max int) []Message {
	if max <= 0 || len(transcript) <= max {
		return transcript
	}
	return Clone(transcript[len(transcript)-max:])
}
