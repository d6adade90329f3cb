package errors

import "fmt"

// TransportError describes a failure of the duplex connection.
type TransportError struct {
	// Op is the operation that failed ("dial", "send", "read", "close").
	Op string
	// Code is the WebSocket close code, or 0 when no close frame was seen.
	Code int
	// Reason is the close reason text sent by the server, if any.
	Reason string
	// NoRetry marks closes under a policy code: input locks, no retry.
	NoRetry bool
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.Code != 0 && e.Reason != "":
		return fmt.Sprintf("transport %s: closed with code %d: %s", e.Op, e.Code, e.Reason)
	case e.Code != 0:
		return fmt.Sprintf("transport %s: closed with code %d", e.Op, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport %s failed", e.Op)
	}
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates an inbound frame that could not be decoded or
// matched against current state. These are expected under network jitter
// and are logged, never shown to users.
type ProtocolError struct {
	Reason string
	Raw    []byte
	Err    error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
