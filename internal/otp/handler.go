package otp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/notification"
	"github.com/coursecompass/storefront/internal/visitor"
)

// Handler exposes the OTP dialog over HTTP.
type Handler struct {
	visitors *visitor.Resolver
	dialogs  *Dialogs
	opts     Options
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewHandler builds an OTP handler.
func NewHandler(visitors *visitor.Resolver, dialogs *Dialogs, opts Options, notifier notification.Notifier, logger *slog.Logger) *Handler {
	return &Handler{visitors: visitors, dialogs: dialogs, opts: opts, notifier: notifier, logger: logger}
}

// Open starts a new dialog, discarding any previous one.
func (h *Handler) Open(c *fiber.Ctx) error {
	tokens := h.visitors.Tokens(c)
	d := NewDialog(h.visitors.API(c), tokens, h.opts, h.logger)
	h.dialogs.Open(h.visitors.Session(c), d)
	return c.Status(http.StatusCreated).JSON(d.State())
}

// State renders the open dialog.
func (h *Handler) State(c *fiber.Ctx) error {
	d, err := h.dialog(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(d.State())
}

type sendRequest struct {
	Mobile string `json:"mobile"`
}

// Send requests a code for the submitted mobile.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	d, err := h.dialog(c)
	if err != nil {
		return err
	}
	if err := d.RequestCode(c.UserContext(), req.Mobile); err != nil {
		return h.fail(err, "Failed to send OTP")
	}
	notification.Toast(c.UserContext(), h.notifier, h.visitors.Session(c), notification.KindSuccess, "OTP sent successfully!")
	return c.Status(http.StatusOK).JSON(d.State())
}

type verifyRequest struct {
	Code string `json:"code"`
}

// Verify checks the code and signs the buyer in. The dialog closes on success.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	d, err := h.dialog(c)
	if err != nil {
		return err
	}
	buyer, err := d.VerifyCode(c.UserContext(), req.Code)
	if err != nil {
		return h.fail(err, "Invalid OTP")
	}
	h.dialogs.Close(h.visitors.Session(c), d)
	notification.Toast(c.UserContext(), h.notifier, h.visitors.Session(c), notification.KindSuccess, "Login successful!")
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"mobile": buyer.MobileDigits,
		"status": identity.StatusOf(buyer),
	})
}

// Resend requests a new code once the countdown allows it.
func (h *Handler) Resend(c *fiber.Ctx) error {
	d, err := h.dialog(c)
	if err != nil {
		return err
	}
	if err := d.Resend(c.UserContext()); err != nil {
		return h.fail(err, "Failed to send OTP")
	}
	notification.Toast(c.UserContext(), h.notifier, h.visitors.Session(c), notification.KindSuccess, "OTP sent successfully!")
	return c.Status(http.StatusOK).JSON(d.State())
}

// Close cancels the dialog without touching the Token Store.
func (h *Handler) Close(c *fiber.Ctx) error {
	h.dialogs.Close(h.visitors.Session(c), nil)
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) dialog(c *fiber.Ctx) (*Dialog, error) {
	d, ok := h.dialogs.Get(h.visitors.Session(c))
	if !ok {
		return nil, fiber.NewError(http.StatusNotFound, "no OTP dialog open")
	}
	return d, nil
}

func (h *Handler) fail(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrBusy):
		return fiber.NewError(http.StatusConflict, "A request is already in progress")
	case errors.Is(err, ErrClosed):
		return fiber.NewError(http.StatusConflict, "The OTP dialog was closed")
	}
	return visitor.HTTPError(err, fallback)
}
