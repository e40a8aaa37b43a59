// Package notification delivers user-facing toasts to visitors.
package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindSuccess confirms a completed action.
	KindSuccess = "success"
	// KindInfo is informational, for example a cancelled payment.
	KindInfo = "info"
	// KindError reports a failed action.
	KindError = "error"
)

// Message describes a toast. Destination is the visitor session id.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"-"`
	Body        string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "session_id", message.Destination, "body", message.Body)
	return nil
}

const inboxLimit = 20

// Inbox queues toasts per visitor until the UI drains them. Only the newest
// inboxLimit toasts are kept.
type Inbox struct {
	mu      sync.Mutex
	pending map[string][]Message
}

// NewInbox builds an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{pending: make(map[string][]Message)}
}

// Send queues message for its destination.
func (i *Inbox) Send(_ context.Context, message Message) error {
	if message.Destination == "" {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	q := append(i.pending[message.Destination], message)
	if len(q) > inboxLimit {
		q = q[len(q)-inboxLimit:]
	}
	i.pending[message.Destination] = q
	return nil
}

// Drain returns and forgets the queued toasts of session, oldest first.
func (i *Inbox) Drain(session string) []Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	q := i.pending[session]
	delete(i.pending, session)
	if q == nil {
		return []Message{}
	}
	return q
}

// Fanout sends every message to each notifier and returns the first error.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range f {
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Toast is shorthand for sending a message of kind to session.
func Toast(ctx context.Context, n Notifier, session, kind, body string) {
	if n == nil {
		return
	}
	_ = n.Send(ctx, Message{Kind: kind, Destination: session, Body: body})
}
