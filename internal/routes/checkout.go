package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/payments"
	"github.com/coursecompass/storefront/internal/payments/payu"
)

// RegisterCheckoutRoutes wires purchase creation and popup attempt endpoints.
func RegisterCheckoutRoutes(r fiber.Router, h *payments.Handler, idempotency fiber.Handler) {
	group := r.Group("/checkout")
	if idempotency != nil {
		group.Post("/:courseId", idempotency, h.Checkout)
	} else {
		group.Post("/:courseId", h.Checkout)
	}
	group.Get("/attempts/:orderId", h.Wait)
	group.Post("/attempts/:orderId/confirm", h.Confirm)
	group.Post("/attempts/:orderId/dismiss", h.Dismiss)
}

// RegisterPaymentReturnRoutes wires the redirect provider's return routes.
// The provider posts cross-site, where the lax session cookie is withheld,
// so the POST only re-issues the return as a GET that carries the session.
func RegisterPaymentReturnRoutes(app *fiber.App, h *payu.Handler, session fiber.Handler) {
	app.Post("/payment/:kind", h.Redirect)
	app.Get("/payment/:kind", session, h.Return)
}
