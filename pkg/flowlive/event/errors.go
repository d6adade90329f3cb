package event

import (
	"errors"
	"fmt"
)

// ErrBusClosed is returned when publishing to a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// EventError describes a failure while delivering or handling an event.
type EventError struct {
	Event   Event
	Message string
	Err     error
}

// Error implements the error interface.
func (e *EventError) Error() string {
	id := ""
	if e.Event != nil {
		id = e.Event.ID()
	}
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", id, e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", id, e.Message)
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}

// HandlerPanicError wraps a value recovered from a panicking handler.
type HandlerPanicError struct {
	Value any
}

// Error implements the error interface.
func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}
