package flowlive

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction.
var (
	// ErrEmptyNodeID indicates a node without an id.
	ErrEmptyNodeID = errors.New("node id cannot be empty")

	// ErrDuplicateNode indicates two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrNodeNotFound indicates a reference to a node that does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidDocument indicates a flow document that cannot be decoded.
	ErrInvalidDocument = errors.New("invalid flow document")

	// ErrTooManyPaths indicates branch traversal exceeded its path bound.
	ErrTooManyPaths = errors.New("too many branch paths")
)

// EdgeError describes an edge that references a missing node.
type EdgeError struct {
	// Index is the position of the edge in the input slice.
	Index int
	// EdgeID is the edge id, possibly empty.
	EdgeID string
	// NodeID is the missing endpoint.
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *EdgeError) Error() string {
	if e.EdgeID != "" {
		return fmt.Sprintf("edge %s: %v: %s", e.EdgeID, e.Err, e.NodeID)
	}
	return fmt.Sprintf("edge #%d: %v: %s", e.Index, e.Err, e.NodeID)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EdgeError) Unwrap() error {
	return e.Err
}

// FormPanicError captures a panic raised by a form validator.
type FormPanicError struct {
	NodeID string
	Value  any
	Stack  string
}

// Error implements the error interface.
func (e *FormPanicError) Error() string {
	return fmt.Sprintf("form validator for node %s panicked: %v", e.NodeID, e.Value)
}
