package payments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/catalog"
	"github.com/coursecompass/storefront/internal/entitlement"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/visitor"
)

const maxWait = 30 * time.Second

// Handler exposes checkout and popup attempt endpoints.
type Handler struct {
	visitors  *visitor.Resolver
	svc       *Service
	currency  string
	scriptURL string
	logger    *slog.Logger
}

// NewHandler builds a checkout handler. scriptURL is where the page loads
// the popup widget script from.
func NewHandler(visitors *visitor.Resolver, svc *Service, currency, scriptURL string, logger *slog.Logger) *Handler {
	return &Handler{visitors: visitors, svc: svc, currency: currency, scriptURL: scriptURL, logger: logger}
}

type checkoutRequest struct {
	Provider string   `json:"provider"`
	Customer Customer `json:"customer"`
}

type attemptView struct {
	OrderID     string        `json:"orderId"`
	ItemID      string        `json:"itemId"`
	Provider    ProviderName  `json:"provider"`
	ProviderRef string        `json:"providerRef,omitempty"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	Checkout    any           `json:"checkout,omitempty"`
	ScriptURL   string        `json:"scriptUrl,omitempty"`
	Form        *RedirectForm `json:"form,omitempty"`
	Owned       *bool         `json:"owned,omitempty"`
}

func (h *Handler) view(a *Attempt) attemptView {
	o, _ := a.Outcome()
	v := attemptView{
		OrderID:     a.Intent.OrderID,
		ItemID:      a.Intent.ItemID,
		Provider:    a.Intent.Provider,
		ProviderRef: a.Intent.ProviderRef,
		Amount:      a.Intent.Amount,
		Currency:    a.Intent.Currency,
		Status:      o.Status,
		Message:     o.Message,
		Form:        o.Form,
	}
	if o.Status == StatusPending {
		v.Checkout = a.Widget
		v.ScriptURL = h.scriptURL
	}
	return v
}

// Checkout begins a purchase of the course in the path. A redirect provider
// answers with an auto-submitting HTML form unless the client asked for JSON.
func (h *Handler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	provider, err := ParseProvider(req.Provider)
	if err != nil {
		return visitor.HTTPError(err, "Unknown payment provider")
	}
	if !h.svc.Enabled(provider) {
		return fiber.NewError(http.StatusBadRequest, "Payment provider is not available")
	}

	ctx := c.UserContext()
	id, err := h.visitors.Tokens(c).Current(ctx)
	if err != nil {
		h.logger.Error("resolve identity", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "failed to resolve identity")
	}
	if id == nil {
		return fiber.NewError(http.StatusUnauthorized, "Please sign in to purchase")
	}

	api := h.visitors.API(c)
	course, err := catalog.NewService(api, h.currency).Course(ctx, c.Params("courseId"))
	if errors.Is(err, catalog.ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, "Course not found")
	}
	if err != nil {
		return visitor.HTTPError(err, "Failed to load course")
	}
	if entitlement.NewGate(api, h.logger).IsOwned(ctx, course.ID) {
		return fiber.NewError(http.StatusConflict, "You already own this course")
	}

	attempt, err := h.svc.Initiate(ctx, api, provider, Checkout{
		Session:  h.visitors.Session(c),
		Item:     Item{ID: course.ID, Title: course.Name, Price: course.FinalAmount(), Currency: course.Currency},
		Customer: prefill(req.Customer, id),
	})
	if err != nil {
		return visitor.HTTPError(err, genericFailure)
	}

	o, _ := attempt.Outcome()
	if o.Status == StatusRedirected && wantsHTML(c) {
		c.Type("html", "utf-8")
		return RenderRedirect(c, o.Form)
	}
	status := http.StatusOK
	if o.Status == StatusPending {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(h.view(attempt))
}

// Wait reports the outcome of a popup attempt, long-polling up to ?wait
// seconds. A still pending attempt answers 202.
func (h *Handler) Wait(c *fiber.Ctx) error {
	a, err := h.attempt(c)
	if err != nil {
		return err
	}
	wait := time.Duration(c.QueryInt("wait", 0)) * time.Second
	if wait > maxWait {
		wait = maxWait
	}
	if wait > 0 {
		ctx, cancel := context.WithTimeout(c.UserContext(), wait)
		defer cancel()
		a.Wait(ctx)
	}
	status := http.StatusOK
	if _, done := a.Outcome(); !done {
		status = http.StatusAccepted
		c.Set(fiber.HeaderRetryAfter, "2")
	}
	return c.Status(status).JSON(h.view(a))
}

// Confirm verifies the widget success callback and re-checks ownership
// once the payment is verified.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var proof Proof
	if err := c.BodyParser(&proof); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	a, err := h.attempt(c)
	if err != nil {
		return err
	}
	api := h.visitors.API(c)
	o := h.svc.Confirm(c.UserContext(), api, a, proof)
	v := h.view(a)
	if o.Status == StatusSucceeded {
		owned := entitlement.NewGate(api, h.logger).IsOwned(c.UserContext(), a.Intent.ItemID)
		v.Owned = &owned
	}
	return c.Status(http.StatusOK).JSON(v)
}

// Dismiss records that the widget was closed without paying.
func (h *Handler) Dismiss(c *fiber.Ctx) error {
	a, err := h.attempt(c)
	if err != nil {
		return err
	}
	h.svc.Dismiss(a)
	return c.Status(http.StatusOK).JSON(h.view(a))
}

func (h *Handler) attempt(c *fiber.Ctx) (*Attempt, error) {
	a, err := h.svc.Attempt(c.Params("orderId"), h.visitors.Session(c))
	if err != nil {
		return nil, fiber.NewError(http.StatusNotFound, "Payment not found")
	}
	return a, nil
}

// prefill completes the customer block from the signed-in identity.
func prefill(cust Customer, id identity.Identity) Customer {
	switch v := id.(type) {
	case identity.Buyer:
		if strings.TrimSpace(cust.Mobile) == "" {
			cust.Mobile = v.MobileDigits
		}
	case identity.Admin:
		if strings.TrimSpace(cust.Email) == "" {
			cust.Email = v.Email
		}
	}
	return cust
}

func wantsHTML(c *fiber.Ctx) bool {
	if c.Query("format") == "json" {
		return false
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) != fiber.MIMEApplicationJSON
}
