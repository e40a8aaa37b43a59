package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/logging"
	"github.com/coursecompass/storefront/internal/notification"
)

const genericFailure = "Failed to process payment"

// Service is the payment orchestrator.
type Service struct {
	providers map[ProviderName]Provider
	attempts  *Attempts
	timeout   time.Duration
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService builds an orchestrator. timeout bounds how long a popup attempt
// may stay pending before it resolves Cancelled.
func NewService(attempts *Attempts, timeout time.Duration, notifier notification.Notifier, logger *slog.Logger, providers ...Provider) *Service {
	s := &Service{
		providers: make(map[ProviderName]Provider, len(providers)),
		attempts:  attempts,
		timeout:   timeout,
		notifier:  notifier,
		logger:    logger,
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// Enabled reports whether provider is configured.
func (s *Service) Enabled(provider ProviderName) bool {
	_, ok := s.providers[provider]
	return ok
}

// Initiate starts a purchase. Order or transaction creation completes before
// the widget options or redirect form are handed out. Provider failures come
// back as a Failed attempt, not as an error; the error return is for input
// that never reached a provider.
func (s *Service) Initiate(ctx context.Context, api gateway.API, provider ProviderName, checkout Checkout) (*Attempt, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, failure.Validation("Payment provider is not available")
	}
	intent, err := NewIntent(checkout.Item, provider)
	if err != nil {
		return nil, err
	}

	attempt := newAttempt(intent, checkout.Session, s.announce)
	log := s.logger.With("order_id", intent.OrderID, "provider", provider, "item_id", intent.ItemID,
		"request_id", logging.RequestID(ctx))

	started, err := p.Start(ctx, api, intent, checkout)
	if err != nil {
		log.Warn("payment start failed", "error", err)
		attempt.resolve(Outcome{Status: StatusFailed, Message: failure.Message(err, genericFailure), Err: err})
		return attempt, nil
	}
	attempt.Intent.ProviderRef = started.ProviderRef

	switch {
	case started.Form != nil:
		log.Info("payment redirect prepared", "provider_ref", started.ProviderRef)
		attempt.resolve(Outcome{Status: StatusRedirected, Form: started.Form})
	default:
		attempt.Widget = started.Widget
		s.attempts.add(attempt, s.timeout)
		log.Info("payment popup opened", "provider_ref", started.ProviderRef)
	}
	return attempt, nil
}

// Attempt looks up a live popup attempt of session.
func (s *Service) Attempt(orderID, session string) (*Attempt, error) {
	a, ok := s.attempts.Get(orderID, session)
	if !ok {
		return nil, ErrUnknownAttempt
	}
	return a, nil
}

// Confirm verifies the widget's success callback server-side. Only a
// verified payment resolves Succeeded; anything else resolves Failed.
// A callback for an already resolved attempt returns the existing outcome.
// The expiry timer is disarmed before verification starts, so a payment
// verified after the window closed still resolves Succeeded.
func (s *Service) Confirm(ctx context.Context, api gateway.API, a *Attempt, proof Proof) Outcome {
	if !s.attempts.disarm(a.Intent.OrderID) {
		<-a.Done()
	}
	if o, done := a.Outcome(); done {
		return o
	}
	c, ok := s.providers[a.Intent.Provider].(Confirmer)
	if !ok {
		a.resolve(Outcome{Status: StatusFailed, Message: "Payment verification failed",
			Err: fmt.Errorf("provider %s cannot confirm", a.Intent.Provider)})
		o, _ := a.Outcome()
		return o
	}

	if err := c.Confirm(ctx, api, a.Intent, proof); err != nil {
		s.logger.Warn("payment verification failed", "order_id", a.Intent.OrderID, "error", err,
			"request_id", logging.RequestID(ctx))
		a.resolve(Outcome{Status: StatusFailed, Message: "Payment verification failed", Err: err})
	} else {
		p := proof
		a.resolve(Outcome{Status: StatusSucceeded, Message: "Payment successful!", Proof: &p})
	}
	o, _ := a.Outcome()
	return o
}

// Dismiss records that the buyer closed the widget.
func (s *Service) Dismiss(a *Attempt) Outcome {
	a.resolve(Outcome{Status: StatusCancelled, Message: "Payment cancelled"})
	o, _ := a.Outcome()
	return o
}

// announce turns a terminal outcome into a toast. Cancellation is
// informational, never an error.
func (s *Service) announce(a *Attempt, o Outcome) {
	ctx := context.Background()
	switch o.Status {
	case StatusSucceeded:
		notification.Toast(ctx, s.notifier, a.Session, notification.KindSuccess, o.Message)
	case StatusFailed:
		notification.Toast(ctx, s.notifier, a.Session, notification.KindError, o.Message)
	case StatusCancelled:
		notification.Toast(ctx, s.notifier, a.Session, notification.KindInfo, o.Message)
	}
	if o.Err != nil && !errors.Is(o.Err, failure.ErrValidation) {
		s.logger.Info("payment attempt resolved", "order_id", a.Intent.OrderID, "status", o.Status, "error", o.Err)
		return
	}
	s.logger.Info("payment attempt resolved", "order_id", a.Intent.OrderID, "status", o.Status)
}
