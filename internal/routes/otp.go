package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/otp"
)

// RegisterOTPRoutes wires the mobile login dialog.
func RegisterOTPRoutes(r fiber.Router, h *otp.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/otp")
	group.Post("", h.Open)
	group.Get("", h.State)
	group.Delete("", h.Close)
	group.Post("/send", rateLimiter, h.Send)
	group.Post("/verify", h.Verify)
	group.Post("/resend", rateLimiter, h.Resend)
}
