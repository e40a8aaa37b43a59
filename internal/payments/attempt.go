package payments

import (
	"context"
	"sync"
	"time"
)

// Status is a terminal outcome of an attempt.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusRedirected Status = "REDIRECTED"
)

// Proof is the popup widget's success callback payload.
type Proof struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Outcome is the single resolution of an attempt.
type Outcome struct {
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Proof   *Proof        `json:"proof,omitempty"`
	Form    *RedirectForm `json:"-"`
	Err     error         `json:"-"`
}

// Attempt is a purchase in flight. It resolves exactly once; later
// resolutions are ignored.
type Attempt struct {
	Intent  Intent
	Session string
	// Widget holds the popup options of a pending popup attempt.
	Widget any

	once      sync.Once
	done      chan struct{}
	outcome   Outcome
	onResolve func(*Attempt, Outcome)
	createdAt time.Time
}

func newAttempt(intent Intent, session string, onResolve func(*Attempt, Outcome)) *Attempt {
	return &Attempt{
		Intent:    intent,
		Session:   session,
		done:      make(chan struct{}),
		onResolve: onResolve,
		createdAt: time.Now(),
	}
}

// resolve settles the attempt and reports whether this call did it.
func (a *Attempt) resolve(o Outcome) bool {
	won := false
	a.once.Do(func() {
		a.outcome = o
		close(a.done)
		won = true
	})
	if won && a.onResolve != nil {
		a.onResolve(a, o)
	}
	return won
}

// Done is closed once the attempt resolves.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Outcome returns the resolution, if any.
func (a *Attempt) Outcome() (Outcome, bool) {
	select {
	case <-a.done:
		return a.outcome, true
	default:
		return Outcome{Status: StatusPending}, false
	}
}

// Wait blocks until the attempt resolves or ctx ends. A ctx that ends first
// leaves the attempt pending.
func (a *Attempt) Wait(ctx context.Context) (Outcome, bool) {
	select {
	case <-a.done:
		return a.outcome, true
	case <-ctx.Done():
		return Outcome{Status: StatusPending}, false
	}
}
