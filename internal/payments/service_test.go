package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/logging"
	"github.com/coursecompass/storefront/internal/notification"
)

type fakeProvider struct {
	name     ProviderName
	startErr error
	started  Started
	verify   error
	delay    time.Duration
}

func (f *fakeProvider) Name() ProviderName { return f.name }

func (f *fakeProvider) Start(context.Context, gateway.API, Intent, Checkout) (Started, error) {
	return f.started, f.startErr
}

func (f *fakeProvider) Confirm(context.Context, gateway.API, Intent, Proof) error {
	time.Sleep(f.delay)
	return f.verify
}

func newTestService(timeout time.Duration, providers ...Provider) (*Service, *notification.Inbox) {
	inbox := notification.NewInbox()
	return NewService(NewAttempts(time.Minute), timeout, inbox, logging.Discard(), providers...), inbox
}

func sampleCheckout() Checkout {
	return Checkout{
		Session: "visitor-1",
		Item:    Item{ID: "c1", Title: "Polity", Price: decimal.RequireFromString("399")},
	}
}

func popup() *fakeProvider {
	return &fakeProvider{name: Razorpay, started: Started{ProviderRef: "order_rzp_1", Widget: map[string]string{"key": "k"}}}
}

func TestMinorUnits(t *testing.T) {
	cases := map[string]int64{"399": 39900, "399.5": 39950, "0.005": 1, "12.344": 1234}
	for in, want := range cases {
		if got := MinorUnits(decimal.RequireFromString(in)); got != want {
			t.Fatalf("MinorUnits(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestNewIntentRejectsFreeItem(t *testing.T) {
	_, err := NewIntent(Item{ID: "c1", Price: decimal.Zero}, Razorpay)
	if !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	intent, err := NewIntent(Item{ID: "c1", Price: decimal.NewFromInt(10)}, Razorpay)
	if err != nil || intent.Currency != "INR" || intent.OrderID == "" {
		t.Fatalf("unexpected intent %+v %v", intent, err)
	}
}

func TestPopupConfirmSucceeds(t *testing.T) {
	svc, inbox := newTestService(time.Minute, popup())

	a, err := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, done := a.Outcome(); done {
		t.Fatalf("popup attempt must stay pending")
	}
	if a.Intent.ProviderRef != "order_rzp_1" || a.Widget == nil {
		t.Fatalf("unexpected attempt %+v", a)
	}
	if got, err := svc.Attempt(a.Intent.OrderID, "visitor-1"); err != nil || got != a {
		t.Fatalf("attempt not registered: %v", err)
	}

	o := svc.Confirm(context.Background(), nil, a, Proof{OrderID: "order_rzp_1", PaymentID: "pay_1", Signature: "s"})
	if o.Status != StatusSucceeded || o.Message != "Payment successful!" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	toasts := inbox.Drain("visitor-1")
	if len(toasts) != 1 || toasts[0].Kind != notification.KindSuccess {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestConfirmFailureResolvesFailed(t *testing.T) {
	p := popup()
	p.verify = failure.New(failure.KindProvider, "Payment verification failed")
	svc, inbox := newTestService(time.Minute, p)

	a, _ := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	o := svc.Confirm(context.Background(), nil, a, Proof{})
	if o.Status != StatusFailed {
		t.Fatalf("expected failed, got %+v", o)
	}
	if toasts := inbox.Drain("visitor-1"); len(toasts) != 1 || toasts[0].Kind != notification.KindError {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestDismissIsCancelledWithInfoToast(t *testing.T) {
	svc, inbox := newTestService(time.Minute, popup())

	a, _ := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	o := svc.Dismiss(a)
	if o.Status != StatusCancelled || o.Message != "Payment cancelled" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	toasts := inbox.Drain("visitor-1")
	if len(toasts) != 1 || toasts[0].Kind != notification.KindInfo {
		t.Fatalf("cancellation must be informational, got %+v", toasts)
	}
}

func TestAttemptResolvesOnce(t *testing.T) {
	svc, inbox := newTestService(time.Minute, popup())

	a, _ := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	svc.Dismiss(a)
	o := svc.Confirm(context.Background(), nil, a, Proof{OrderID: "order_rzp_1", PaymentID: "p", Signature: "s"})
	if o.Status != StatusCancelled {
		t.Fatalf("late confirm must not change the outcome, got %+v", o)
	}
	if toasts := inbox.Drain("visitor-1"); len(toasts) != 1 {
		t.Fatalf("expected a single toast, got %d", len(toasts))
	}
}

func TestStartFailureUsesBackendMessage(t *testing.T) {
	p := &fakeProvider{name: Razorpay, startErr: failure.New(failure.KindProvider, "Course is inactive")}
	svc, inbox := newTestService(time.Minute, p)

	a, err := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	if err != nil {
		t.Fatalf("provider failures resolve the attempt, got error %v", err)
	}
	o, done := a.Outcome()
	if !done || o.Status != StatusFailed || o.Message != "Course is inactive" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, err := svc.Attempt(a.Intent.OrderID, "visitor-1"); !errors.Is(err, ErrUnknownAttempt) {
		t.Fatalf("failed attempts are not registered")
	}
	if toasts := inbox.Drain("visitor-1"); len(toasts) != 1 || toasts[0].Body != "Course is inactive" {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestRedirectResolvesImmediately(t *testing.T) {
	p := &fakeProvider{name: PayU, started: Started{ProviderRef: "TXN1", Form: &RedirectForm{Action: "https://pay"}}}
	svc, inbox := newTestService(time.Minute, p)

	a, _ := svc.Initiate(context.Background(), nil, PayU, sampleCheckout())
	o, done := a.Outcome()
	if !done || o.Status != StatusRedirected || o.Form == nil {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if toasts := inbox.Drain("visitor-1"); len(toasts) != 0 {
		t.Fatalf("a redirect is not announced, got %+v", toasts)
	}
}

func TestTimeoutCancelsPendingAttempt(t *testing.T) {
	svc, _ := newTestService(20*time.Millisecond, popup())

	a, _ := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	o, done := a.Wait(ctx)
	if !done || o.Status != StatusCancelled || o.Message != "Payment window expired" {
		t.Fatalf("expected expiry, got %+v", o)
	}
}

func TestSlowVerificationOutlivesExpiry(t *testing.T) {
	p := popup()
	p.delay = 80 * time.Millisecond
	svc, inbox := newTestService(30*time.Millisecond, p)

	a, _ := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	o := svc.Confirm(context.Background(), nil, a, Proof{OrderID: "order_rzp_1", PaymentID: "pay_1"})
	if o.Status != StatusSucceeded {
		t.Fatalf("verified payment must succeed, got %+v", o)
	}
	toasts := inbox.Drain("visitor-1")
	if len(toasts) != 1 || toasts[0].Kind != notification.KindSuccess {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestConfirmAfterExpiryKeepsCancelled(t *testing.T) {
	svc, _ := newTestService(10*time.Millisecond, popup())

	a, _ := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	<-a.Done()
	o := svc.Confirm(context.Background(), nil, a, Proof{})
	if o.Status != StatusCancelled || o.Message != "Payment window expired" {
		t.Fatalf("unexpected outcome %+v", o)
	}
}

func TestAttemptsAreScopedToSession(t *testing.T) {
	svc, _ := newTestService(time.Minute, popup())

	a, _ := svc.Initiate(context.Background(), nil, Razorpay, sampleCheckout())
	if _, err := svc.Attempt(a.Intent.OrderID, "visitor-2"); !errors.Is(err, ErrUnknownAttempt) {
		t.Fatalf("another visitor must not see the attempt")
	}
}

func TestUnknownProviderIsValidationError(t *testing.T) {
	svc, _ := newTestService(time.Minute)
	if svc.Enabled(PayU) {
		t.Fatalf("no providers configured")
	}
	if _, err := svc.Initiate(context.Background(), nil, PayU, sampleCheckout()); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseProvider("stripe"); err == nil {
		t.Fatalf("expected unknown provider")
	}
	if p, _ := ParseProvider("payu"); p != PayU {
		t.Fatalf("expected case-insensitive parse")
	}
}
