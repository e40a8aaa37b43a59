package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/logging"
	"github.com/coursecompass/storefront/internal/storage"
)

func loginBackend(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	_ = json.NewDecoder(r.Body).Decode(&req)
	if r.Header.Get("Authorization") != "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch {
	case req["emailOrPhone"] == "admin@example.com" && req["password"] == "secret":
		w.Write([]byte(`{"message":"ok","token":"adm-token","user":{"id":"1","email":"admin@example.com","role":"admin"}}`))
	case req["emailOrPhone"] == "user@example.com" && req["password"] == "secret":
		w.Write([]byte(`{"message":"ok","token":"usr-token","user":{"id":"2","email":"user@example.com","role":"user"}}`))
	default:
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid email or password"}`))
	}
}

func newService(t *testing.T) (*Service, *identity.TokenStore) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(loginBackend))
	t.Cleanup(srv.Close)
	tokens := identity.NewRegistry(storage.NewMemoryStore()).For("v1")
	return NewService(gateway.New(srv.URL, time.Second, logging.Discard()).For(tokens), tokens), tokens
}

func TestAdminLogin(t *testing.T) {
	svc, tokens := newService(t)
	ctx := context.Background()

	admin, err := svc.Login(ctx, "admin@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if admin.BearerToken != "adm-token" || admin.UserID != "1" || !admin.HasSubscription {
		t.Fatalf("unexpected admin %+v", admin)
	}
	st, _ := tokens.Status(ctx)
	if !st.Admin || !st.Authenticated {
		t.Fatalf("expected admin status, got %+v", st)
	}
}

func TestNonAdminIsAccessDenied(t *testing.T) {
	svc, tokens := newService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "user@example.com", "secret")
	if !errors.Is(err, ErrAccessDenied) || !errors.Is(err, failure.ErrAuthRejected) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if got := failure.Message(err, ""); got != "Access denied. Admin privileges required." {
		t.Fatalf("unexpected message %q", got)
	}
	if id, _ := tokens.Current(ctx); id != nil {
		t.Fatalf("denied login must not store an identity")
	}
}

func TestBadCredentials(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Login(context.Background(), "admin@example.com", "wrong")
	if errors.Is(err, ErrAccessDenied) || !errors.Is(err, failure.ErrAuthRejected) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	if _, err := svc.Login(context.Background(), " ", "x"); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
