package payu

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coursecompass/storefront/internal/payments"
)

// ReturnKind names the return route the provider redirected to.
type ReturnKind string

const (
	ReturnSuccess ReturnKind = "success"
	ReturnFailure ReturnKind = "failure"
	ReturnCancel  ReturnKind = "cancel"
)

// ParseReturnKind validates a route segment.
func ParseReturnKind(s string) (ReturnKind, bool) {
	switch k := ReturnKind(strings.ToLower(s)); k {
	case ReturnSuccess, ReturnFailure, ReturnCancel:
		return k, true
	}
	return "", false
}

// Return is the state re-derived from a provider return.
type Return struct {
	Kind        ReturnKind
	Valid       bool
	Outcome     payments.Status
	Message     string
	TxnID       string
	Status      string
	PaymentID   string
	ProductInfo string
	Amount      decimal.Decimal
	HasAmount   bool
	// Provisional is set on a success return until the entitlement is confirmed.
	Provisional bool
	// Transaction is the persisted record, when the return could be correlated.
	Transaction *Transaction
}

// ItemID is the correlated item, if known.
func (r Return) ItemID() string {
	if r.Transaction == nil {
		return ""
	}
	return r.Transaction.ItemID
}

// Resume re-derives the outcome of a redirect transaction from the return
// parameters. A success return stays provisional. Correlation uses the
// returned transaction id; failure and cancel returns without one fall back
// to the visitor's last transaction so the item can be retried.
func (p *Provider) Resume(ctx context.Context, session string, kind ReturnKind, params url.Values) (Return, error) {
	r := Return{
		Kind:        kind,
		TxnID:       strings.TrimSpace(params.Get("txnid")),
		Status:      strings.ToLower(strings.TrimSpace(params.Get("status"))),
		PaymentID:   firstNonEmpty(params.Get("mihpayid"), params.Get("payuMoneyId")),
		ProductInfo: params.Get("productinfo"),
	}
	if amt, err := decimal.NewFromString(strings.TrimSpace(params.Get("amount"))); err == nil {
		r.Amount, r.HasAmount = amt, true
	}

	switch kind {
	case ReturnSuccess:
		if r.TxnID == "" || r.Status == "" {
			r.Outcome = payments.StatusFailed
			r.Message = "Invalid payment response. Please contact support."
			return r, nil
		}
		r.Valid = true
		if r.Status == "success" {
			r.Outcome = payments.StatusSucceeded
			r.Message = "Payment completed successfully!"
			r.Provisional = true
		} else {
			r.Outcome = payments.StatusFailed
			r.Message = "Payment was not successful. Please try again."
		}
	case ReturnFailure:
		r.Valid = true
		r.Outcome = payments.StatusFailed
		r.Message = firstNonEmpty(params.Get("error_Message"), params.Get("error"), "Payment failed")
	case ReturnCancel:
		r.Valid = true
		r.Outcome = payments.StatusCancelled
		r.Message = "Payment was cancelled"
	}

	var (
		txn   Transaction
		found bool
		err   error
	)
	if r.TxnID != "" {
		txn, found, err = p.Lookup(ctx, r.TxnID)
	} else if session != "" {
		txn, found, err = p.LastTransaction(ctx, session)
	}
	if err != nil {
		return r, err
	}
	if found {
		r.Transaction = &txn
		if r.TxnID == "" {
			r.TxnID = txn.TxnID
		}
	} else if r.TxnID != "" {
		p.logger.Warn("payu return for unknown transaction", "txnid", r.TxnID, "kind", kind)
	}
	return r, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
