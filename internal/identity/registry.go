package identity

import (
	"sync"

	"github.com/coursecompass/storefront/internal/storage"
)

// Registry hands out one TokenStore per visitor session so that the
// most-recent-write rule holds across requests of the same visitor.
type Registry struct {
	state storage.Store

	// TODO: evict stores of idle sessions; entries live for the process lifetime.
	mu     sync.Mutex
	stores map[string]*TokenStore
}

// NewRegistry builds a registry over the given client-state store.
func NewRegistry(state storage.Store) *Registry {
	return &Registry{state: state, stores: make(map[string]*TokenStore)}
}

// For returns the token store of session, creating it on first use.
func (r *Registry) For(session string) *TokenStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[session]
	if !ok {
		s = newTokenStore(session, r.state)
		r.stores[session] = s
	}
	return s
}

// Forget drops the in-process state of session. Persisted identities stay;
// the next For behaves like a cold start.
func (r *Registry) Forget(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, session)
}
