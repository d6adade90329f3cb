package protocol

import (
	"slices"

	flerrors "github.com/randalmurphal/flowlive/pkg/flowlive/errors"
)

// Close codes defined by RFC 6455 that matter here.
const (
	CloseNormal         = 1000
	CloseGoingAway      = 1001
	CloseNoStatus       = 1005
	CloseAbnormal       = 1006
	ClosePolicyViolated = 1008
	CloseTooBig         = 1009
)

// LockCloseCodes is the default set of close codes after which the client
// locks input and does not reconnect on its own. This list is policy and
// may be overridden through configuration.
var LockCloseCodes = []int{CloseNoStatus, ClosePolicyViolated, CloseTooBig}

// CloseInfo is the interpretation of a close frame.
type CloseInfo struct {
	Code   int
	Reason string
	// Lock is set for every abnormal close: user input must be locked.
	Lock bool
	// NoRetry is set when the code is in the policy set.
	NoRetry bool
}

// Err converts an abnormal close into a transport error; it returns nil for
// a normal close.
func (c CloseInfo) Err() error {
	if !c.Lock {
		return nil
	}
	return &flerrors.TransportError{Op: "read", Code: c.Code, Reason: c.Reason, NoRetry: c.NoRetry}
}

// ClosePolicy lists the close codes that forbid automatic reconnects.
type ClosePolicy []int

// DefaultClosePolicy uses LockCloseCodes.
func DefaultClosePolicy() ClosePolicy {
	return slices.Clone(ClosePolicy(LockCloseCodes))
}

// Classify interprets a close code and reason.
func (p ClosePolicy) Classify(code int, reason string) CloseInfo {
	info := CloseInfo{Code: code, Reason: reason}
	if code == CloseNormal {
		return info
	}
	info.Lock = true
	info.NoRetry = slices.Contains(p, code)
	return info
}

// ClassifyClose interprets a close code with the default policy.
func ClassifyClose(code int, reason string) CloseInfo {
	return ClosePolicy(LockCloseCodes).Classify(code, reason)
}
