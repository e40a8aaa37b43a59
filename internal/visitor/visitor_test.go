package visitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/logging"
	"github.com/coursecompass/storefront/internal/middleware"
	"github.com/coursecompass/storefront/internal/storage"
)

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", failure.Validation("OTP must be 6 digits"), http.StatusBadRequest, "OTP must be 6 digits"},
		{"rejected", failure.New(failure.KindAuthRejected, "Invalid OTP"), http.StatusUnauthorized, "Invalid OTP"},
		{"expired", fmt.Errorf("list: %w", failure.ErrAuthExpired), http.StatusUnauthorized, "Session expired, please sign in again"},
		{"transport", failure.Wrap(failure.KindTransport, "Network error", errors.New("dial")), http.StatusBadGateway, "Network error"},
		{"provider", failure.New(failure.KindProvider, "Failed to load payment gateway"), http.StatusBadGateway, "Failed to load payment gateway"},
		{"fiber", fiber.NewError(http.StatusConflict, "busy"), http.StatusConflict, "busy"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "fallback"},
	}
	for _, tc := range cases {
		var fe *fiber.Error
		if !errors.As(HTTPError(tc.err, "fallback"), &fe) {
			t.Fatalf("%s: expected fiber error", tc.name)
		}
		if fe.Code != tc.code || fe.Message != tc.msg {
			t.Fatalf("%s: got %d %q", tc.name, fe.Code, fe.Message)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	secret := []byte("test-secret")
	ids := identity.NewRegistry(storage.NewMemoryStore())
	resolver := NewResolver(ids, gateway.New("http://backend.invalid", time.Second, logging.Discard()))

	app := fiber.New()
	app.Use(middleware.Session(secret, time.Hour, false, logging.Discard()))
	app.Get("/admin", resolver.RequireAdmin, func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	call := func(session string) int {
		t.Helper()
		token, err := middleware.SignSession(session, secret, time.Hour, time.Now())
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	if code := call("anon"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", code)
	}

	ctx := context.Background()
	_ = ids.For("buyer").SetBuyer(ctx, "otp-token", "9876543210")
	if code := call("buyer"); code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer, got %d", code)
	}

	_ = ids.For("admin").SetAdmin(ctx, identity.Admin{BearerToken: "jwt", Role: "admin"})
	if code := call("admin"); code != http.StatusNoContent {
		t.Fatalf("expected admin through, got %d", code)
	}
}
