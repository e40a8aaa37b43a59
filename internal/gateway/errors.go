package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coursecompass/storefront/internal/failure"
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status  int
	Message string
	Body    []byte

	expired bool
}

func newStatusError(status int, body []byte) *StatusError {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &envelope) == nil {
		msg = envelope.Message
		if msg == "" {
			msg = envelope.Error
		}
	}
	return &StatusError{Status: status, Message: msg, Body: body}
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream responded %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream responded %d %s", e.Status, http.StatusText(e.Status))
}

// UserMessage is the backend's own message, if it sent one.
func (e *StatusError) UserMessage() string { return e.Message }

// Is matches failure.ErrAuthExpired for a 401 on an authenticated call.
func (e *StatusError) Is(target error) bool {
	return e.expired && target == failure.ErrAuthExpired
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
