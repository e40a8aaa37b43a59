package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/auth"
)

// RegisterSessionRoutes wires identity status, logout, toasts and admin login.
func RegisterSessionRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/session")
	group.Get("", h.Status)
	group.Post("/logout", h.Logout)
	group.Get("/toasts", h.Toasts)
	if rateLimiter != nil {
		group.Post("/admin/login", rateLimiter, h.AdminLogin)
	} else {
		group.Post("/admin/login", h.AdminLogin)
	}
}
