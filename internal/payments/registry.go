package payments

import (
	"sync"
	"time"
)

// Attempts tracks popup attempts until they resolve, plus a short linger so
// late pollers still read the outcome.
type Attempts struct {
	mu     sync.Mutex
	live   map[string]*Attempt
	timers map[string]*time.Timer
	linger time.Duration
}

// NewAttempts builds an empty registry.
func NewAttempts(linger time.Duration) *Attempts {
	if linger <= 0 {
		linger = 2 * time.Minute
	}
	return &Attempts{live: make(map[string]*Attempt), timers: make(map[string]*time.Timer), linger: linger}
}

// add registers a, resolving it Cancelled when timeout passes first.
func (r *Attempts) add(a *Attempt, timeout time.Duration) {
	id := a.Intent.OrderID
	r.mu.Lock()
	r.live[id] = a
	if timeout > 0 {
		r.timers[id] = time.AfterFunc(timeout, func() {
			a.resolve(Outcome{Status: StatusCancelled, Message: "Payment window expired"})
		})
	}
	r.mu.Unlock()

	go func() {
		<-a.Done()
		r.mu.Lock()
		if t, ok := r.timers[id]; ok {
			t.Stop()
			delete(r.timers, id)
		}
		r.mu.Unlock()
		time.AfterFunc(r.linger, func() { r.remove(id) })
	}()
}

// disarm stops the expiry timer of orderID. It reports false when the timer
// already fired.
func (r *Attempts) disarm(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[orderID]
	if !ok {
		return true
	}
	delete(r.timers, orderID)
	return t.Stop()
}

// Get returns the attempt orderID if it belongs to session.
func (r *Attempts) Get(orderID, session string) (*Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.live[orderID]
	if !ok || a.Session != session {
		return nil, false
	}
	return a, true
}

// Len is the number of tracked attempts.
func (r *Attempts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *Attempts) remove(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, orderID)
}
