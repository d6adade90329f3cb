package event

import "context"

// Topic binds an event type name to its payload type.
type Topic[T any] struct {
	Name string
}

// NewTopic declares a topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{Name: name}
}

// Publish wraps payload in an event and publishes it. A nil bus is a no-op.
func (t Topic[T]) Publish(ctx context.Context, bus Bus, source, chatID string, payload T) error {
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, New(t.Name, source, chatID, payload))
}

// Subscribe registers fn for this topic.
func (t Topic[T]) Subscribe(bus Bus, fn func(ctx context.Context, payload T, meta Metadata) error) Subscription {
	return bus.Subscribe([]string{t.Name}, TypedHandler(fn))
}

// NodeHighlight is the full set of node ids that should carry an error
// border. An empty set clears all borders.
type NodeHighlight struct {
	NodeIDs []string `json:"node_ids"`
}

// NodeStatus reports the final status of one node run.
type NodeStatus struct {
	NodeID   string `json:"node_id"`
	UniqueID string `json:"unique_id"`
	Name     string `json:"name,omitempty"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// InputState describes whether user input is accepted and, when it is,
// which pending request an answer belongs to.
type InputState struct {
	Locked    bool   `json:"locked"`
	NodeID    string `json:"node_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Schema    []byte `json:"schema,omitempty"`
}

// InputLock is published when the connection closes abnormally.
type InputLock struct {
	Locked  bool   `json:"locked"`
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
	NoRetry bool   `json:"no_retry"`
}

// TranscriptChanged is published after a fold or history merge changed the
// transcript of a chat.
type TranscriptChanged struct {
	Length        int    `json:"length"`
	LastMessageID string `json:"last_message_id,omitempty"`
	Prepended     int    `json:"prepended,omitempty"`
}

// Topics published by the validator and chat sessions.
var (
	NodeHighlightTopic = NewTopic[NodeHighlight]("flow.node_highlight")
	NodeStatusTopic    = NewTopic[NodeStatus]("flow.node_status")
	InputStateTopic    = NewTopic[InputState]("chat.input_state")
	InputLockTopic     = NewTopic[InputLock]("chat.input_lock")
	TranscriptTopic    = NewTopic[TranscriptChanged]("chat.transcript")
)
