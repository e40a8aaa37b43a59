// Package payu is the redirect payment provider. Phase one initiates a
// transaction and renders an auto-submitting form; phase two resumes from
// the provider's return routes, correlated only through the persisted
// transaction id.
package payu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/logging"
	"github.com/coursecompass/storefront/internal/payments"
	"github.com/coursecompass/storefront/internal/storage"
)

// RequiredParams must be present in the form. Missing ones are logged only.
var RequiredParams = []string{"txnid", "amount", "productinfo", "firstname", "email", "phone", "surl", "furl", "hash"}

// Each transaction record lives in its own namespace so its expiry is its
// own. Lookup is independent of the visitor cookie.
const (
	transactionPrefix = "payu:txn:"
	transactionKey    = "record"
)

func transactionNamespace(txnID string) string { return transactionPrefix + txnID }

// returnPaths are the routes each return url must reach.
var returnPaths = map[string]string{
	"surl": "/payment/" + string(ReturnSuccess),
	"furl": "/payment/" + string(ReturnFailure),
	"curl": "/payment/" + string(ReturnCancel),
}

// Transaction is the persisted correlation record.
type Transaction struct {
	TxnID     string    `json:"txnid"`
	ItemID    string    `json:"itemId"`
	Session   string    `json:"session"`
	OrderID   string    `json:"orderId"`
	Amount    string    `json:"amount,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Provider implements payments.Provider.
type Provider struct {
	state     storage.Store
	publicURL string
	logger    *slog.Logger
}

// New builds the provider over the client-state store. publicURL is the
// absolute base the return urls are expected to point at; empty skips the
// check.
func New(state storage.Store, publicURL string, logger *slog.Logger) *Provider {
	return &Provider{state: state, publicURL: strings.TrimRight(publicURL, "/"), logger: logger}
}

// Name implements payments.Provider.
func (p *Provider) Name() payments.ProviderName { return payments.PayU }

type initiateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		TransactionID string                     `json:"transactionId"`
		PaymentURL    string                     `json:"paymentUrl"`
		PaymentParams map[string]json.RawMessage `json:"paymentParams"`
		MerchantKey   string                     `json:"merchantKey"`
	} `json:"data"`
}

// Start asks the backend for a transaction, checks the parameter set,
// persists the transaction id and returns the redirect form.
func (p *Provider) Start(ctx context.Context, api gateway.API, intent payments.Intent, checkout payments.Checkout) (payments.Started, error) {
	resp, err := api.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/courses/payment/initiate",
		JSON:   map[string]string{"courseId": intent.ItemID},
	})
	if err != nil {
		return payments.Started{}, err
	}
	var body initiateResponse
	if err := resp.Decode(&body); err != nil {
		return payments.Started{}, failure.Wrap(failure.KindProvider, "Failed to initiate payment", err)
	}
	if !body.Success || body.Data.PaymentURL == "" {
		msg := body.Message
		if msg == "" {
			msg = "Failed to initiate payment"
		}
		return payments.Started{}, failure.New(failure.KindProvider, msg)
	}

	fields := stringify(body.Data.PaymentParams)
	p.warnMissing(ctx, intent, fields)
	p.checkReturnURLs(ctx, intent, fields)
	if body.Data.MerchantKey != "" {
		fields["key"] = body.Data.MerchantKey
	}

	txnID := body.Data.TransactionID
	if txnID == "" {
		txnID = fields["txnid"]
	}
	if txnID != "" {
		if err := p.persist(ctx, Transaction{
			TxnID:     txnID,
			ItemID:    intent.ItemID,
			Session:   checkout.Session,
			OrderID:   intent.OrderID,
			Amount:    fields["amount"],
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return payments.Started{}, err
		}
	} else {
		p.logger.Warn("payu transaction has no id, return cannot be correlated", "order_id", intent.OrderID)
	}

	return payments.Started{
		ProviderRef: txnID,
		Form:        &payments.RedirectForm{Action: body.Data.PaymentURL, Fields: fields},
	}, nil
}

func (p *Provider) warnMissing(ctx context.Context, intent payments.Intent, fields map[string]string) {
	for _, name := range RequiredParams {
		if fields[name] == "" {
			p.logger.Warn("payu parameter missing", "param", name, "order_id", intent.OrderID,
				"request_id", logging.RequestID(ctx))
		}
	}
}

// checkReturnURLs warns when a return url does not lead back to this
// service. The urls are covered by the backend's hash and cannot be
// rewritten here.
func (p *Provider) checkReturnURLs(ctx context.Context, intent payments.Intent, fields map[string]string) {
	if p.publicURL == "" {
		return
	}
	for _, name := range []string{"surl", "furl", "curl"} {
		got := fields[name]
		if got == "" {
			continue
		}
		if want := p.publicURL + returnPaths[name]; got != want {
			p.logger.Warn("payu return url does not reach this service", "param", name, "url", got,
				"expected", want, "order_id", intent.OrderID, "request_id", logging.RequestID(ctx))
		}
	}
}

func (p *Provider) persist(ctx context.Context, txn Transaction) error {
	payload, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	if err := p.state.Set(ctx, transactionNamespace(txn.TxnID), transactionKey, payload); err != nil {
		return fmt.Errorf("persist transaction: %w", err)
	}
	if txn.Session != "" {
		if err := p.state.Set(ctx, txn.Session, storage.KeyLastTransaction, payload); err != nil {
			return fmt.Errorf("persist last transaction: %w", err)
		}
	}
	return nil
}

// Lookup returns the persisted record of txnID.
func (p *Provider) Lookup(ctx context.Context, txnID string) (Transaction, bool, error) {
	raw, err := p.state.Get(ctx, transactionNamespace(txnID), transactionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	var txn Transaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		return Transaction{}, false, fmt.Errorf("decode transaction: %w", err)
	}
	return txn, true, nil
}

// LastTransaction returns the last transaction session initiated.
func (p *Provider) LastTransaction(ctx context.Context, session string) (Transaction, bool, error) {
	raw, err := p.state.Get(ctx, session, storage.KeyLastTransaction)
	if errors.Is(err, storage.ErrNotFound) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	var txn Transaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		return Transaction{}, false, fmt.Errorf("decode transaction: %w", err)
	}
	return txn, true, nil
}

// Release drops the transaction record of txnID but keeps the visitor's
// last transaction, which still names the item to retry.
func (p *Provider) Release(ctx context.Context, txnID string) error {
	return p.state.Delete(ctx, transactionNamespace(txnID), transactionKey)
}

// Forget drops the correlation records of txn.
func (p *Provider) Forget(ctx context.Context, txn Transaction) error {
	if err := p.Release(ctx, txn.TxnID); err != nil {
		return err
	}
	if txn.Session == "" {
		return nil
	}
	last, ok, err := p.LastTransaction(ctx, txn.Session)
	if err != nil || !ok || last.TxnID != txn.TxnID {
		return err
	}
	return p.state.Delete(ctx, txn.Session, storage.KeyLastTransaction)
}

// stringify flattens opaque form parameters. Non-string values keep their
// JSON text so amounts such as 399.00 reach the provider unchanged.
func stringify(params map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, raw := range params {
		var s string
		switch {
		case len(raw) == 0 || string(raw) == "null":
		case json.Unmarshal(raw, &s) == nil:
			out[k] = s
		default:
			out[k] = string(raw)
		}
	}
	return out
}
