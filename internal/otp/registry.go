package otp

import "sync"

// Dialogs tracks the open dialog of each visitor session.
type Dialogs struct {
	mu   sync.Mutex
	open map[string]*Dialog
}

// NewDialogs builds an empty registry.
func NewDialogs() *Dialogs {
	return &Dialogs{open: make(map[string]*Dialog)}
}

// Open installs d for session, closing any dialog it replaces.
func (r *Dialogs) Open(session string, d *Dialog) {
	r.mu.Lock()
	prev := r.open[session]
	r.open[session] = d
	r.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Get returns the open dialog of session.
func (r *Dialogs) Get(session string) (*Dialog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.open[session]
	return d, ok
}

// Close closes and forgets the dialog of session. Only d is removed, so a
// dialog opened in the meantime survives.
func (r *Dialogs) Close(session string, d *Dialog) {
	r.mu.Lock()
	if cur, ok := r.open[session]; ok && (d == nil || cur == d) {
		delete(r.open, session)
		d = cur
	}
	r.mu.Unlock()
	if d != nil {
		d.Close()
	}
}
