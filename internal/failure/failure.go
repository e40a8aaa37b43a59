// Package failure classifies the errors produced by the entitlement and
// payment flows so callers can decide how to surface them without string
// matching.
package failure

import (
	"errors"
)

// Kind groups errors by how the caller is expected to react.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuthRejected Kind = "auth_rejected"
	KindTransport    Kind = "transport"
	KindProvider     Kind = "provider"
	KindAuthExpired  Kind = "auth_expired"
)

// Sentinels, one per kind. Any *Error of that kind matches via errors.Is.
var (
	// ErrValidation is malformed local input, caught before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrAuthRejected means the backend refused an OTP or login attempt.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrTransport covers network failures and timeouts.
	ErrTransport = errors.New("transport failure")
	// ErrProvider covers payment provider failures (script, order, verification).
	ErrProvider = errors.New("payment provider failure")
	// ErrAuthExpired means an authenticated call came back 401.
	ErrAuthExpired = errors.New("authentication expired")
)

var sentinels = map[Kind]error{
	KindValidation:   ErrValidation,
	KindAuthRejected: ErrAuthRejected,
	KindTransport:    ErrTransport,
	KindProvider:     ErrProvider,
	KindAuthExpired:  ErrAuthExpired,
}

// Error is a classified error carrying a user-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// New builds a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind with a user-safe message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation is shorthand for New(KindValidation, message).
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}

// Message returns the most specific user-safe message found in err's chain,
// or fallback when there is none.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var m interface{ UserMessage() string }
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return fallback
}
