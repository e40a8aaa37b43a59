package payu

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/entitlement"
	"github.com/coursecompass/storefront/internal/notification"
	"github.com/coursecompass/storefront/internal/payments"
	"github.com/coursecompass/storefront/internal/visitor"
)

// returnParams are the provider fields carried from a POST return to the
// GET route that renders it.
var returnParams = []string{"txnid", "amount", "status", "error", "error_Message", "mihpayid", "payuMoneyId", "productinfo"}

var returnPage = template.Must(template.New("payu-return").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{- if .TxnID}}
<dl>
<dt>Transaction</dt><dd>{{.TxnID}}</dd>
{{- if .Amount}}<dt>Amount</dt><dd>{{.Amount}}</dd>{{end}}
{{- if .PaymentID}}<dt>Payment reference</dt><dd>{{.PaymentID}}</dd>{{end}}
</dl>
{{- end}}
{{- if .Pending}}
<p>Your purchase will appear in My Courses once it is confirmed.</p>
{{- end}}
<nav>
{{- if .Owned}}<a href="/api/courses/{{.ItemID}}/download">Download</a>{{end}}
{{- if .Retry}}<a href="/courses/{{.ItemID}}">Try again</a>{{end}}
<a href="/courses/my">My Courses</a>
<a href="/">Home</a>
</nav>
</body>
</html>
`))

type returnView struct {
	Kind      ReturnKind      `json:"kind"`
	Outcome   payments.Status `json:"status"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	TxnID     string          `json:"txnid,omitempty"`
	Amount    string          `json:"amount,omitempty"`
	PaymentID string          `json:"paymentId,omitempty"`
	ItemID    string          `json:"itemId,omitempty"`
	Owned     bool            `json:"owned"`
	Pending   bool            `json:"pending"`
	Retry     bool            `json:"retry"`
}

// Handler serves the provider's return routes.
type Handler struct {
	visitors *visitor.Resolver
	provider *Provider
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewHandler builds the return handler.
func NewHandler(visitors *visitor.Resolver, provider *Provider, notifier notification.Notifier, logger *slog.Logger) *Handler {
	return &Handler{visitors: visitors, provider: provider, notifier: notifier, logger: logger}
}

// Redirect turns a cross-site POST return into a same-site GET so the
// visitor cookie is present when the return is resumed.
func (h *Handler) Redirect(c *fiber.Ctx) error {
	kind, ok := ParseReturnKind(c.Params("kind"))
	if !ok {
		return fiber.ErrNotFound
	}
	q := url.Values{}
	for _, name := range returnParams {
		if v := c.FormValue(name); v != "" {
			q.Set(name, v)
		} else if v := c.Query(name); v != "" {
			q.Set(name, v)
		}
	}
	target := "/payment/" + string(kind)
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return c.Redirect(target, http.StatusSeeOther)
}

// Return resumes the transaction and renders its outcome. A success return
// is only reported as complete once the item shows up as owned.
func (h *Handler) Return(c *fiber.Ctx) error {
	kind, ok := ParseReturnKind(c.Params("kind"))
	if !ok {
		return fiber.ErrNotFound
	}
	params := url.Values{}
	for k, v := range c.Queries() {
		params.Set(k, v)
	}

	ctx := c.UserContext()
	session := h.visitors.Session(c)
	r, err := h.provider.Resume(ctx, session, kind, params)
	if err != nil {
		h.logger.Error("resume payu return", "kind", kind, "txnid", r.TxnID, "error", err)
		return fiber.NewError(http.StatusInternalServerError, "Failed to read payment result")
	}

	view := returnView{
		Kind:      kind,
		Outcome:   r.Outcome,
		Title:     title(r),
		Message:   r.Message,
		TxnID:     r.TxnID,
		PaymentID: r.PaymentID,
		ItemID:    r.ItemID(),
	}
	if r.HasAmount {
		view.Amount = r.Amount.StringFixed(2)
	}

	toast := notification.KindError
	switch {
	case r.Provisional:
		view.Owned = view.ItemID != "" && entitlement.NewGate(h.visitors.API(c), h.logger).IsOwned(ctx, view.ItemID)
		if view.Owned {
			toast = notification.KindSuccess
			if err := h.provider.Forget(ctx, *r.Transaction); err != nil {
				h.logger.Warn("forget payu transaction", "txnid", r.TxnID, "error", err)
			}
		} else {
			view.Pending = true
			toast = notification.KindInfo
		}
	case r.Outcome == payments.StatusCancelled:
		toast = notification.KindInfo
		view.Retry = view.ItemID != ""
	default:
		view.Retry = view.ItemID != ""
	}
	if r.Valid && !r.Provisional && r.Transaction != nil {
		if err := h.provider.Release(ctx, r.Transaction.TxnID); err != nil {
			h.logger.Warn("release payu transaction", "txnid", r.TxnID, "error", err)
		}
	}
	notification.Toast(ctx, h.notifier, session, toast, r.Message)
	h.logger.Info("payu return", "kind", kind, "txnid", r.TxnID, "status", r.Outcome,
		"owned", view.Owned, "session_id", session)

	if c.Query("format") == "json" {
		return c.Status(http.StatusOK).JSON(view)
	}
	c.Type("html", "utf-8")
	return returnPage.Execute(c, view)
}

func title(r Return) string {
	switch {
	case !r.Valid:
		return "Payment error"
	case r.Outcome == payments.StatusSucceeded:
		return "Payment successful"
	case r.Outcome == payments.StatusCancelled:
		return "Payment cancelled"
	default:
		return "Payment failed"
	}
}
