// Package razorpay is the popup payment provider: order creation, widget
// options and server-side verification of the widget's success callback.
package razorpay

import (
	"context"
	"errors"
	"net/http"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/payments"
)

// ScriptPath is where the storefront serves the cached widget script.
const ScriptPath = "/assets/razorpay/checkout.js"

// Config holds the public widget settings.
type Config struct {
	KeyID        string
	MerchantName string
	ThemeColor   string
}

// Options are handed to the in-page widget.
type Options struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

// Prefill is the buyer contact shown in the widget.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Theme is the widget colour scheme.
type Theme struct {
	Color string `json:"color"`
}

// Provider implements payments.Provider and payments.Confirmer.
type Provider struct {
	cfg    Config
	script *ScriptLoader
}

// New builds the provider.
func New(cfg Config, script *ScriptLoader) *Provider {
	return &Provider{cfg: cfg, script: script}
}

// Name implements payments.Provider.
func (p *Provider) Name() payments.ProviderName { return payments.Razorpay }

type createOrderRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Receipt       string `json:"receipt"`
	CourseID      string `json:"courseId"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerPhone string `json:"customerMobile,omitempty"`
}

type orderResponse struct {
	ID   string `json:"id"`
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (o orderResponse) orderID() string {
	if o.ID != "" {
		return o.ID
	}
	if o.Data != nil {
		return o.Data.ID
	}
	return ""
}

// Start loads the widget script, then creates the server-side order. Both
// must succeed before widget options are produced.
func (p *Provider) Start(ctx context.Context, api gateway.API, intent payments.Intent, checkout payments.Checkout) (payments.Started, error) {
	if err := p.script.Ensure(ctx); err != nil {
		return payments.Started{}, failure.Wrap(failure.KindProvider, "Failed to load payment gateway", err)
	}

	resp, err := api.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/payment/create-order",
		JSON: createOrderRequest{
			Amount:        intent.Amount,
			Currency:      intent.Currency,
			Receipt:       intent.OrderID,
			CourseID:      intent.ItemID,
			CustomerName:  checkout.Customer.Name,
			CustomerEmail: checkout.Customer.Email,
			CustomerPhone: checkout.Customer.Mobile,
		},
	})
	if err != nil {
		return payments.Started{}, err
	}
	var order orderResponse
	if err := resp.Decode(&order); err != nil || order.orderID() == "" {
		return payments.Started{}, failure.New(failure.KindProvider, "Failed to create payment order")
	}

	return payments.Started{
		ProviderRef: order.orderID(),
		Widget: Options{
			Key:         p.cfg.KeyID,
			Amount:      intent.Amount,
			Currency:    intent.Currency,
			Name:        p.cfg.MerchantName,
			Description: "Purchase: " + checkout.Item.Title,
			OrderID:     order.orderID(),
			Prefill: Prefill{
				Name:    checkout.Customer.Name,
				Email:   checkout.Customer.Email,
				Contact: checkout.Customer.Mobile,
			},
			Theme: Theme{Color: p.cfg.ThemeColor},
		},
	}, nil
}

var errOrderMismatch = errors.New("callback order does not match attempt")

// Confirm posts the widget's callback to the verification endpoint. Only a
// 2xx response with success=true counts.
func (p *Provider) Confirm(ctx context.Context, api gateway.API, intent payments.Intent, proof payments.Proof) error {
	if proof.PaymentID == "" || proof.Signature == "" {
		return failure.New(failure.KindProvider, "Incomplete payment confirmation")
	}
	if proof.OrderID != intent.ProviderRef {
		return failure.Wrap(failure.KindProvider, "Payment verification failed", errOrderMismatch)
	}
	resp, err := api.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/payment/verify",
		JSON:   proof,
	})
	if err != nil {
		return err
	}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := resp.Decode(&body); err != nil || !body.Success {
		return failure.New(failure.KindProvider, "Payment verification failed")
	}
	return nil
}
