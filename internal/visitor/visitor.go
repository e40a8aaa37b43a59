// Package visitor resolves the per-visitor collaborators of a request: its
// session id, Token Store and gateway caller.
package visitor

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/middleware"
)

// Resolver maps a request to its visitor.
type Resolver struct {
	ids *identity.Registry
	gw  *gateway.Client
}

// NewResolver builds a resolver.
func NewResolver(ids *identity.Registry, gw *gateway.Client) *Resolver {
	return &Resolver{ids: ids, gw: gw}
}

// Session returns the visitor session id.
func (r *Resolver) Session(c *fiber.Ctx) string {
	return middleware.SessionID(c)
}

// Tokens returns the visitor's Token Store.
func (r *Resolver) Tokens(c *fiber.Ctx) *identity.TokenStore {
	return r.ids.For(middleware.SessionID(c))
}

// API returns the gateway bound to the visitor's credentials.
func (r *Resolver) API(c *fiber.Ctx) gateway.API {
	return r.gw.For(r.Tokens(c))
}

// RequireAdmin rejects requests whose active identity is not an
// administrator.
func (r *Resolver) RequireAdmin(c *fiber.Ctx) error {
	id, err := r.Tokens(c).Current(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "failed to resolve identity")
	}
	if id == nil {
		return fiber.NewError(http.StatusUnauthorized, "Please sign in")
	}
	if id.Kind() != identity.KindAdmin {
		return fiber.NewError(http.StatusForbidden, "Access denied. Admin privileges required.")
	}
	return c.Next()
}

// HTTPError maps a classified error to a fiber error. fallback is used when
// err carries no user-safe message.
func HTTPError(err error, fallback string) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	msg := failure.Message(err, fallback)
	switch {
	case errors.Is(err, failure.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, msg)
	case errors.Is(err, failure.ErrAuthExpired):
		return fiber.NewError(http.StatusUnauthorized, "Session expired, please sign in again")
	case errors.Is(err, failure.ErrAuthRejected):
		return fiber.NewError(http.StatusUnauthorized, msg)
	}
	if status := gateway.StatusOf(err); status >= 400 && status < 500 {
		return fiber.NewError(status, msg)
	}
	if errors.Is(err, failure.ErrTransport) || errors.Is(err, failure.ErrProvider) || gateway.StatusOf(err) != 0 {
		return fiber.NewError(http.StatusBadGateway, msg)
	}
	return fiber.NewError(http.StatusInternalServerError, fallback)
}
