// Package payments orchestrates one purchase attempt through a popup or a
// redirect payment provider and reports a single terminal outcome.
package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
)

// ProviderName identifies a payment provider.
type ProviderName string

const (
	// Razorpay confirms in an in-page popup.
	Razorpay ProviderName = "RAZORPAY"
	// PayU confirms through a full-page redirect.
	PayU ProviderName = "PAYU"
)

// ParseProvider accepts any case.
func ParseProvider(s string) (ProviderName, error) {
	switch ProviderName(strings.ToUpper(strings.TrimSpace(s))) {
	case Razorpay:
		return Razorpay, nil
	case PayU:
		return PayU, nil
	}
	return "", failure.Validation("Unknown payment provider")
}

// ErrUnknownAttempt means no live attempt matches the order id for this visitor.
var ErrUnknownAttempt = errors.New("payment attempt not found")

// Item is what is being bought. Price is in major units.
type Item struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	Currency string
}

// Customer prefills provider forms.
type Customer struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

// Intent lives for the duration of one checkout.
type Intent struct {
	ItemID   string       `json:"itemId"`
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
	OrderID  string       `json:"orderId"`
	Provider ProviderName `json:"provider"`
	// ProviderRef is the provider order id or transaction id.
	ProviderRef string `json:"providerRef,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// MinorUnits converts a major-unit amount to minor units, rounding half away
// from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// NewIntent starts an intent for item.
func NewIntent(item Item, provider ProviderName) (Intent, error) {
	if strings.TrimSpace(item.ID) == "" {
		return Intent{}, failure.Validation("Item is required")
	}
	amount := MinorUnits(item.Price)
	if amount <= 0 {
		return Intent{}, failure.Validation("Item has no payable amount")
	}
	currency := item.Currency
	if currency == "" {
		currency = "INR"
	}
	return Intent{
		ItemID:   item.ID,
		Amount:   amount,
		Currency: currency,
		OrderID:  "order_" + uuid.NewString(),
		Provider: provider,
	}, nil
}

// Checkout is the input of one purchase attempt.
type Checkout struct {
	Session  string
	Item     Item
	Customer Customer
}

// RedirectForm is a same-window form post to the provider.
type RedirectForm struct {
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}

// Started is what a provider hands back once its order or transaction exists.
type Started struct {
	ProviderRef string
	// Widget holds popup options; the attempt stays pending until confirmed.
	Widget any
	// Form resolves the attempt as Redirected.
	Form *RedirectForm
}

// Provider is one payment integration.
type Provider interface {
	Name() ProviderName
	Start(ctx context.Context, api gateway.API, intent Intent, checkout Checkout) (Started, error)
}

// Confirmer is implemented by popup providers whose client-side success must
// be verified server-side.
type Confirmer interface {
	Confirm(ctx context.Context, api gateway.API, intent Intent, proof Proof) error
}
