package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coursecompass/storefront/internal/storage"
)

// TokenStore is the single source of truth for who acts for one visitor
// session. Each transition is one storage write, so a concurrent reader sees
// either the old identity or the new one.
type TokenStore struct {
	session string
	state   storage.Store

	mu     sync.Mutex
	active Kind // last kind written by this process; empty after a cold start
}

func newTokenStore(session string, state storage.Store) *TokenStore {
	return &TokenStore{session: session, state: state}
}

// Session returns the visitor session id this store belongs to.
func (s *TokenStore) Session() string { return s.session }

// SetAdmin persists the administrator identity and makes it active.
func (s *TokenStore) SetAdmin(ctx context.Context, admin Admin) error {
	if admin.BearerToken == "" {
		return errors.New("admin token is required")
	}
	return s.write(ctx, storage.KeyAdminIdentity, KindAdmin, admin)
}

// SetBuyer persists the OTP-derived identity and makes it active.
func (s *TokenStore) SetBuyer(ctx context.Context, token, mobileDigits string) error {
	if token == "" {
		return errors.New("buyer token is required")
	}
	return s.write(ctx, storage.KeyBuyerIdentity, KindBuyer, Buyer{OTPToken: token, MobileDigits: mobileDigits})
}

func (s *TokenStore) write(ctx context.Context, key string, kind Kind, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s identity: %w", kind, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Set(ctx, s.session, key, payload); err != nil {
		return fmt.Errorf("persist %s identity: %w", kind, err)
	}
	s.active = kind
	return nil
}

// Clear removes both identities.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Delete(ctx, s.session, storage.KeyAdminIdentity, storage.KeyBuyerIdentity); err != nil {
		return fmt.Errorf("clear identities: %w", err)
	}
	s.active = ""
	return nil
}

// Current returns the active identity, or nil when nobody is signed in.
// The most recent write in this process wins; after a cold start an admin
// identity is preferred over a buyer one.
func (s *TokenStore) Current(ctx context.Context) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, hasAdmin, err := s.loadAdmin(ctx)
	if err != nil {
		return nil, err
	}
	buyer, hasBuyer, err := s.loadBuyer(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case s.active == KindBuyer && hasBuyer:
		return buyer, nil
	case hasAdmin:
		return admin, nil
	case hasBuyer:
		return buyer, nil
	default:
		return nil, nil
	}
}

// Status reports the UI status of the active identity.
func (s *TokenStore) Status(ctx context.Context) (Status, error) {
	id, err := s.Current(ctx)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(id), nil
}

func (s *TokenStore) loadAdmin(ctx context.Context) (Admin, bool, error) {
	var a Admin
	ok, err := s.load(ctx, storage.KeyAdminIdentity, &a)
	if ok && a.BearerToken == "" {
		ok = false
	}
	return a, ok, err
}

func (s *TokenStore) loadBuyer(ctx context.Context) (Buyer, bool, error) {
	var b Buyer
	ok, err := s.load(ctx, storage.KeyBuyerIdentity, &b)
	if ok && b.OTPToken == "" {
		ok = false
	}
	return b, ok, err
}

func (s *TokenStore) load(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.state.Get(ctx, s.session, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
