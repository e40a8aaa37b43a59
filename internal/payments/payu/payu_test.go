package payu

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/logging"
	"github.com/coursecompass/storefront/internal/payments"
	"github.com/coursecompass/storefront/internal/storage"
)

const completeParams = `{"txnid":"TXN123","amount":399.00,"productinfo":"Polity","firstname":"Asha","email":"asha@example.com","phone":"9876543210","surl":"https://shop/payment/success","furl":"https://shop/payment/failure","curl":"https://shop/payment/cancel","hash":"abc"}`

func initiateServer(t *testing.T, params string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/courses/payment/initiate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"success":true,"message":"ok","data":{"transactionId":"TXN123","paymentUrl":"https://secure.payu.in/_payment","merchantKey":"mk_1","paymentParams":` + params + `}}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func startCheckout(t *testing.T, baseURL string, logger *slog.Logger) (*Provider, payments.Started, payments.Intent, storage.Store) {
	t.Helper()
	state := storage.NewMemoryStore()
	tokens := identity.NewRegistry(state).For("visitor-1")
	_ = tokens.SetBuyer(context.Background(), "abc", "9876543210")
	api := gateway.New(baseURL, time.Second, logging.Discard()).For(tokens)

	p := New(state, "https://shop", logger)
	item := payments.Item{ID: "c1", Title: "Polity", Price: decimal.RequireFromString("399"), Currency: "INR"}
	intent, err := payments.NewIntent(item, payments.PayU)
	if err != nil {
		t.Fatalf("intent: %v", err)
	}
	started, err := p.Start(context.Background(), api, intent, payments.Checkout{Session: "visitor-1", Item: item})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return p, started, intent, state
}

func TestStartBuildsFormAndPersistsTransaction(t *testing.T) {
	p, started, _, _ := startCheckout(t, initiateServer(t, completeParams), logging.Discard())

	if started.Form == nil || started.Form.Action != "https://secure.payu.in/_payment" {
		t.Fatalf("unexpected form %+v", started.Form)
	}
	if started.Form.Fields["key"] != "mk_1" || started.Form.Fields["amount"] != "399.00" || started.Form.Fields["txnid"] != "TXN123" {
		t.Fatalf("unexpected fields %+v", started.Form.Fields)
	}
	if started.ProviderRef != "TXN123" {
		t.Fatalf("unexpected provider ref %s", started.ProviderRef)
	}

	txn, ok, err := p.Lookup(context.Background(), "TXN123")
	if err != nil || !ok || txn.ItemID != "c1" || txn.Session != "visitor-1" {
		t.Fatalf("transaction not persisted: %+v %v %v", txn, ok, err)
	}
	last, ok, _ := p.LastTransaction(context.Background(), "visitor-1")
	if !ok || last.TxnID != "TXN123" {
		t.Fatalf("last transaction not persisted: %+v", last)
	}
}

func TestIncompleteParamsStillProduceForm(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	_, started, _, _ := startCheckout(t, initiateServer(t, `{"txnid":"TXN123","amount":"399.00"}`), logger)
	if started.Form == nil {
		t.Fatalf("missing params must not block the form")
	}
	for _, name := range []string{"productinfo", "firstname", "email", "phone", "surl", "furl", "hash"} {
		if !strings.Contains(logs.String(), "param="+name) {
			t.Fatalf("expected warning for %s, logs: %s", name, logs.String())
		}
	}
	if strings.Contains(logs.String(), "param=txnid") {
		t.Fatalf("present params must not be reported")
	}
}

func TestStartFailureUsesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Course is inactive"}`))
	}))
	defer srv.Close()

	state := storage.NewMemoryStore()
	tokens := identity.NewRegistry(state).For("v")
	api := gateway.New(srv.URL, time.Second, logging.Discard()).For(tokens)
	intent, _ := payments.NewIntent(payments.Item{ID: "c1", Price: decimal.NewFromInt(10)}, payments.PayU)

	_, err := New(state, "", logging.Discard()).Start(context.Background(), api, intent, payments.Checkout{Session: "v"})
	if err == nil || !strings.Contains(err.Error(), "Course is inactive") {
		t.Fatalf("expected backend message, got %v", err)
	}
}

func TestResumeSuccessIsProvisionalAndCorrelated(t *testing.T) {
	p, _, _, _ := startCheckout(t, initiateServer(t, completeParams), logging.Discard())

	r, err := p.Resume(context.Background(), "", ReturnSuccess, url.Values{
		"txnid": {"TXN123"}, "status": {"success"}, "amount": {"399.00"}, "mihpayid": {"pm_1"},
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if r.Outcome != payments.StatusSucceeded || !r.Provisional || r.ItemID() != "c1" {
		t.Fatalf("unexpected return %+v", r)
	}
	if !r.HasAmount || r.Amount.String() != "399" || r.PaymentID != "pm_1" {
		t.Fatalf("unexpected amount or payment id %+v", r)
	}
}

func TestResumeFailureAndCancel(t *testing.T) {
	p, _, _, _ := startCheckout(t, initiateServer(t, completeParams), logging.Discard())
	ctx := context.Background()

	r, _ := p.Resume(ctx, "visitor-1", ReturnFailure, url.Values{"txnid": {"TXN123"}, "status": {"failure"}, "error_Message": {"Bank declined"}})
	if r.Outcome != payments.StatusFailed || r.Message != "Bank declined" || r.Provisional {
		t.Fatalf("unexpected failure return %+v", r)
	}

	// cancel without txnid falls back to the visitor's last transaction
	r, _ = p.Resume(ctx, "visitor-1", ReturnCancel, url.Values{})
	if r.Outcome != payments.StatusCancelled || r.ItemID() != "c1" || r.TxnID != "TXN123" {
		t.Fatalf("unexpected cancel return %+v", r)
	}

	r, _ = p.Resume(ctx, "visitor-1", ReturnSuccess, url.Values{"status": {"success"}})
	if r.Valid || r.Message != "Invalid payment response. Please contact support." {
		t.Fatalf("success without txnid must be invalid, got %+v", r)
	}

	r, _ = p.Resume(ctx, "visitor-1", ReturnSuccess, url.Values{"txnid": {"TXN123"}, "status": {"pending"}})
	if r.Outcome != payments.StatusFailed || r.Provisional {
		t.Fatalf("non-success status must not be treated as success, got %+v", r)
	}
}

func TestForgetDropsCorrelation(t *testing.T) {
	p, _, _, _ := startCheckout(t, initiateServer(t, completeParams), logging.Discard())
	ctx := context.Background()
	txn, _, _ := p.Lookup(ctx, "TXN123")

	if err := p.Forget(ctx, txn); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok, _ := p.Lookup(ctx, "TXN123"); ok {
		t.Fatalf("expected transaction forgotten")
	}
	if _, ok, _ := p.LastTransaction(ctx, "visitor-1"); ok {
		t.Fatalf("expected last transaction forgotten")
	}
}

func TestTransactionsHaveTheirOwnNamespace(t *testing.T) {
	p, _, _, state := startCheckout(t, initiateServer(t, completeParams), logging.Discard())
	ctx := context.Background()

	if _, err := state.Get(ctx, "payu:txn:TXN123", "record"); err != nil {
		t.Fatalf("expected record under its own namespace: %v", err)
	}

	if err := p.Release(ctx, "TXN123"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := p.Lookup(ctx, "TXN123"); ok {
		t.Fatalf("expected transaction released")
	}
	last, ok, _ := p.LastTransaction(ctx, "visitor-1")
	if !ok || last.ItemID != "c1" {
		t.Fatalf("release must keep the retry item, got %+v %v", last, ok)
	}
}

func TestReturnURLsOutsideServiceAreReported(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	startCheckout(t, initiateServer(t, completeParams), logger)
	if strings.Contains(logs.String(), "does not reach this service") {
		t.Fatalf("matching return urls must not be reported: %s", logs.String())
	}

	logs.Reset()
	foreign := strings.Replace(completeParams, "https://shop/payment/failure", "https://elsewhere/failed", 1)
	startCheckout(t, initiateServer(t, foreign), logger)
	if !strings.Contains(logs.String(), "param=furl") || strings.Contains(logs.String(), "param=surl") {
		t.Fatalf("expected furl reported alone, logs: %s", logs.String())
	}
}
