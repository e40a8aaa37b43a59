package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/notification"
	"github.com/coursecompass/storefront/internal/visitor"
)

// Handler exposes the visitor session endpoints.
type Handler struct {
	visitors *visitor.Resolver
	inbox    *notification.Inbox
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewHandler builds the session handler.
func NewHandler(visitors *visitor.Resolver, inbox *notification.Inbox, notifier notification.Notifier, logger *slog.Logger) *Handler {
	return &Handler{visitors: visitors, inbox: inbox, notifier: notifier, logger: logger}
}

// Status reports who is signed in.
func (h *Handler) Status(c *fiber.Ctx) error {
	st, err := h.visitors.Tokens(c).Status(c.UserContext())
	if err != nil {
		h.logger.Error("resolve identity", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "failed to resolve identity")
	}
	return c.Status(http.StatusOK).JSON(st)
}

// Logout clears both identities.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.visitors.Tokens(c).Clear(c.UserContext()); err != nil {
		h.logger.Error("logout", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "logout failed")
	}
	notification.Toast(c.UserContext(), h.notifier, h.visitors.Session(c), notification.KindInfo, "Logged out")
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// Toasts drains pending notifications.
func (h *Handler) Toasts(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": h.inbox.Drain(h.visitors.Session(c))})
}

type loginRequest struct {
	EmailOrPhone string `json:"emailOrPhone"`
	Password     string `json:"password"`
}

// AdminLogin signs an administrator in.
func (h *Handler) AdminLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tokens := h.visitors.Tokens(c)
	admin, err := NewService(h.visitors.API(c), tokens).Login(c.UserContext(), req.EmailOrPhone, req.Password)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return fiber.NewError(http.StatusForbidden, failure.Message(err, "Access denied"))
		}
		return visitor.HTTPError(err, "Invalid credentials")
	}
	notification.Toast(c.UserContext(), h.notifier, h.visitors.Session(c), notification.KindSuccess, "Admin login successful!")
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id": admin.UserID,
		"email":   admin.Email,
		"role":    admin.Role,
		"status":  identity.StatusOf(admin),
	})
}
