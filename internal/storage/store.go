// Package storage persists per-visitor client state: the credentials and
// correlation ids a browser would otherwise keep in local storage.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("state not found")

// Persisted client state keys.
const (
	// KeyAdminIdentity holds the administrator bearer token and user profile.
	KeyAdminIdentity = "admin_identity"
	// KeyBuyerIdentity holds the OTP-derived buyer token and mobile digits.
	KeyBuyerIdentity = "buyer_identity"
	// KeyLastTransaction holds the last redirect-provider transaction id and item.
	KeyLastTransaction = "last_transaction"
)

// Store is a namespaced key/value store. A namespace is one visitor session.
// Set and Delete are single atomic writes: readers never observe half of one.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace string, keys ...string) error
}
