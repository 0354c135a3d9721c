// Package errs defines the engine's domain error taxonomy. Every operation
// returns one of the five kinds below as a structured result, so external
// layers can map them to transport codes without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	// KindValidation covers illegal state transitions and malformed input.
	KindValidation Kind = "validation"
	// KindNotFound covers unknown associations, members, payouts and
	// obligations.
	KindNotFound Kind = "not_found"
	// KindConflict covers duplicate period payments, a member who already
	// has a payout, and repeated redistribution.
	KindConflict Kind = "conflict"
	// KindInsufficientFunds covers allocations exceeding the available
	// balance.
	KindInsufficientFunds Kind = "insufficient_funds"
	// KindConsistency covers unrecoverable source-data corruption detected
	// during reconciliation.
	KindConsistency Kind = "consistency"
)

// Error is a kind-tagged domain error.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional underlying cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so callers can write
// errors.Is(err, errs.ErrConflict).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is matching.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrConsistency       = &Error{Kind: KindConsistency}
)

// Validationf builds a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// InsufficientFundsf builds an insufficient-funds error.
func InsufficientFundsf(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientFunds, Message: fmt.Sprintf(format, args...)}
}

// Consistencyf builds a consistency error.
func Consistencyf(format string, args ...any) *Error {
	return &Error{Kind: KindConsistency, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a domain error, preserving the kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind of a domain error, or "" for non-domain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
