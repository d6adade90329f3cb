package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the interface every bus event satisfies. Events are immutable
// once published.
type Event interface {
	ID() string
	Type() string
	Source() string
	ChatID() string
	Timestamp() time.Time
	Data() any
}

// Metadata holds the envelope fields of an event.
type Metadata struct {
	EventID     string    `json:"id"`
	EventType   string    `json:"type"`
	EventSource string    `json:"source"`
	ChatID      string    `json:"chat_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// MetadataOf extracts the envelope fields of any event.
func MetadataOf(evt Event) Metadata {
	return Metadata{
		EventID:     evt.ID(),
		EventType:   evt.Type(),
		EventSource: evt.Source(),
		ChatID:      evt.ChatID(),
		Timestamp:   evt.Timestamp(),
	}
}

// BaseEvent is the generic Event implementation. T is the payload type.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`
}

// ID returns the unique event identifier.
func (e *BaseEvent[T]) ID() string { return e.Meta.EventID }

// Type returns the event type.
func (e *BaseEvent[T]) Type() string { return e.Meta.EventType }

// Source returns the component that produced the event.
func (e *BaseEvent[T]) Source() string { return e.Meta.EventSource }

// ChatID returns the chat the event belongs to.
func (e *BaseEvent[T]) ChatID() string { return e.Meta.ChatID }

// Timestamp returns when the event was created.
func (e *BaseEvent[T]) Timestamp() time.Time { return e.Meta.Timestamp }

// Data returns the payload.
func (e *BaseEvent[T]) Data() any { return e.Payload }

// TypedData returns the payload without a type assertion.
func (e *BaseEvent[T]) TypedData() T { return e.Payload }

// EventOption configures event creation.
type EventOption func(*Metadata)

// WithEventID sets a specific event ID (default: random UUID).
func WithEventID(id string) EventOption {
	return func(m *Metadata) { m.EventID = id }
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EventOption {
	return func(m *Metadata) { m.Timestamp = t }
}

// New creates an event with the given type, source, chat and payload.
func New[T any](eventType, source, chatID string, payload T, opts ...EventOption) *BaseEvent[T] {
	meta := Metadata{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		EventSource: source,
		ChatID:      chatID,
		Timestamp:   time.Now(),
	}
	for _, opt := range opts {
		opt(&meta)
	}
	return &BaseEvent[T]{Meta: meta, Payload: payload}
}

// Handler consumes events delivered by a bus.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// TypedHandler adapts a function over payload type T. Payloads that arrive
// as generic JSON maps (for example after a round trip through a remote
// bus) are re-decoded into T.
func TypedHandler[T any](fn func(ctx context.Context, payload T, meta Metadata) error) Handler {
	return HandlerFunc(func(ctx context.Context, evt Event) error {
		var payload T
		switch d := evt.Data().(type) {
		case T:
			payload = d
		case map[string]any:
			raw, err := json.Marshal(d)
			if err != nil {
				return &EventError{Event: evt, Message: "failed to marshal event data", Err: err}
			}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return &EventError{Event: evt, Message: "failed to unmarshal event data to expected type", Err: err}
			}
		default:
			return &EventError{Event: evt, Message: fmt.Sprintf("unexpected payload type %T", d)}
		}
		return fn(ctx, payload, MetadataOf(evt))
	})
}
