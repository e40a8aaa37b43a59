package entitlement

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/visitor"
)

// Handler exposes purchase and download endpoints.
type Handler struct {
	visitors *visitor.Resolver
	logger   *slog.Logger
}

// NewHandler builds an entitlement handler.
func NewHandler(visitors *visitor.Resolver, logger *slog.Logger) *Handler {
	return &Handler{visitors: visitors, logger: logger}
}

func (h *Handler) gate(c *fiber.Ctx) *Gate {
	return NewGate(h.visitors.API(c), h.logger)
}

// MyCourses lists the visitor's purchases.
func (h *Handler) MyCourses(c *fiber.Ctx) error {
	purchases, err := h.gate(c).Purchases(c.UserContext())
	if err != nil {
		return visitor.HTTPError(err, "Failed to load your courses")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": purchases})
}

// Access reports ownership and what the UI may offer for an item.
func (h *Handler) Access(c *fiber.Ctx) error {
	st, err := h.visitors.Tokens(c).Status(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "failed to resolve identity")
	}
	access := Access{ShowPurchasePrompt: !st.Admin}
	if st.Authenticated {
		access = h.gate(c).Access(c.UserContext(), c.Params("id"), st.Admin)
	}
	return c.Status(http.StatusOK).JSON(access)
}

// Download streams an owned item.
func (h *Handler) Download(c *fiber.Ctx) error {
	d, err := h.gate(c).Download(c.UserContext(), c.Params("id"))
	if errors.Is(err, ErrNotOwned) {
		return fiber.NewError(http.StatusForbidden, "purchase required")
	}
	if err != nil {
		return visitor.HTTPError(err, "Download failed")
	}
	c.Set(fiber.HeaderContentType, d.ContentType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	return c.Status(http.StatusOK).SendStream(d.Body, int(d.Length))
}
