package noteservice

import (
	"errors"
	"fmt"
)

// Status tells an expected success apart from an expected refusal.
// The zero value is StatusUnknown, so a zero Outcome is never OK.
type Status int

const (
	StatusUnknown Status = iota
	StatusSuccess
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusSuccess:
		return "success"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of a vault operation that ran to completion.
// Hard failures (security violations, I/O faults) are returned as errors
// alongside a zero Outcome instead.
type Outcome struct {
	Status  Status
	Message string
	// Reason is apperr.ErrNotFound or apperr.ErrAlreadyExists for a
	// rejected outcome, nil on success.
	Reason error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Is reports whether the outcome was rejected for the given reason.
func (o Outcome) Is(reason error) bool {
	return o.Reason != nil && errors.Is(o.Reason, reason)
}

func succeeded(format string, args ...any) Outcome {
	return Outcome{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

func rejected(reason error, format string, args ...any) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason, Message: fmt.Sprintf(format, args...)}
}
