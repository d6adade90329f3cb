// Package errors classifies the failures flowlive surfaces to callers and
// provides the retry helper used by caller-side reconnect policies.
//
// Structural and form problems in a flow graph are never Go errors: they are
// returned as data by the validator. This package covers what is left:
//   - Transport failures: dial errors, abnormal closes, sends on a closed connection
//   - Protocol failures: frames that cannot be decoded or matched
//   - Lock conditions: closes after which input stays locked and no retry is made
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how a caller should react to an error.
type Category int

const (
	// CategoryTransient indicates a retry (reconnect, resend) will likely help.
	// Examples: dial failures, unexpected remote closes, send while reconnecting.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: cancelled contexts, malformed frames, invalid configuration.
	CategoryPermanent

	// CategoryLocked indicates the server closed the session under a policy
	// code. Input stays locked and the caller must not retry automatically.
	CategoryLocked
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Locked creates a locked error.
func Locked(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryLocked, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.NoRetry {
			return CategoryLocked
		}
		return CategoryTransient
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return CategoryPermanent
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsLocked reports whether the error requires input to stay locked.
func IsLocked(err error) bool {
	return Categorize(err) == CategoryLocked
}
