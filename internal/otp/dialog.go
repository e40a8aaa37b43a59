// Package otp drives the two-step mobile verification dialog and mints a
// buyer identity on success.
package otp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/identity"
)

// Step is a dialog state.
type Step string

const (
	StepEnterMobile Step = "ENTER_MOBILE"
	StepEnterCode   Step = "ENTER_CODE"
	StepTerminal    Step = "TERMINAL"
)

var (
	// ErrBusy is returned while another send or verify is in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrClosed is returned when the dialog closed before a result arrived.
	// The late result is discarded.
	ErrClosed = errors.New("otp dialog closed")
	// ErrNoToken is a 200 verify response without a token. It is distinct
	// from a rejected code.
	ErrNoToken = errors.New("no token received")
)

// BuyerWriter is the Token Store write the dialog needs.
type BuyerWriter interface {
	SetBuyer(ctx context.Context, token, mobileDigits string) error
}

// Options configures a dialog.
type Options struct {
	CountryCode    string
	ResendCooldown time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// State is a snapshot of the dialog for rendering.
type State struct {
	Step      Step   `json:"step"`
	Mobile    string `json:"mobile,omitempty"`
	Countdown int    `json:"resendCountdownSeconds"`
	CanResend bool   `json:"canResend"`
	Busy      bool   `json:"busy"`
	Error     string `json:"error,omitempty"`
}

// Dialog is one OTP session. It is not persisted.
type Dialog struct {
	api    gateway.API
	tokens BuyerWriter
	opts   Options
	logger *slog.Logger

	// held for the duration of a network call
	inflight sync.Mutex

	mu       sync.Mutex
	step     Step
	mobile   string
	code     string
	resendAt time.Time
	errMsg   string
	busy     bool
	closed   bool
}

// NewDialog opens a dialog in ENTER_MOBILE.
func NewDialog(api gateway.API, tokens BuyerWriter, opts Options, logger *slog.Logger) *Dialog {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CountryCode == "" {
		opts.CountryCode = "91"
	}
	if opts.ResendCooldown <= 0 {
		opts.ResendCooldown = 60 * time.Second
	}
	return &Dialog{api: api, tokens: tokens, opts: opts, logger: logger, step: StepEnterMobile}
}

type otpResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// RequestCode validates and normalizes mobile, asks the backend to send a
// code and moves to ENTER_CODE with a fresh resend countdown. It is only
// accepted in ENTER_MOBILE; later codes go through Resend.
func (d *Dialog) RequestCode(ctx context.Context, mobile string) error {
	digits, err := NormalizeMobile(mobile, d.opts.CountryCode)
	if err != nil {
		d.fail(err)
		return err
	}
	if err := d.begin(); err != nil {
		return err
	}
	defer d.end()

	d.mu.Lock()
	step := d.step
	d.mu.Unlock()
	if step != StepEnterMobile {
		err := failure.Validation("Use resend to request a new OTP")
		d.fail(err)
		return err
	}
	return d.send(ctx, digits)
}

// send runs with the in-flight lock held.
func (d *Dialog) send(ctx context.Context, digits string) error {
	resp, err := d.api.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/send-otp",
		JSON:   map[string]string{"mobile": International(digits, d.opts.CountryCode)},
		Public: true,
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err != nil {
		err = classify(err, "Failed to send OTP", "An error occurred while sending OTP")
		d.errMsg = failure.Message(err, "Failed to send OTP")
		return err
	}
	if resp.Status != http.StatusOK {
		var body otpResponse
		_ = resp.Decode(&body)
		err := failure.New(failure.KindAuthRejected, nonEmpty(body.Message, "Failed to send OTP"))
		d.errMsg = err.Message
		return err
	}

	d.step = StepEnterCode
	d.mobile = digits
	d.code = ""
	d.errMsg = ""
	d.resendAt = d.opts.Now().Add(d.opts.ResendCooldown)
	d.logger.Info("otp sent", "mobile_suffix", digits[len(digits)-4:])
	return nil
}

// VerifyCode checks code against the requested mobile. On success the buyer
// identity is written to the Token Store in one step and the dialog ends.
func (d *Dialog) VerifyCode(ctx context.Context, code string) (identity.Buyer, error) {
	code = strings.TrimSpace(code)
	d.mu.Lock()
	step, digits := d.step, d.mobile
	d.mu.Unlock()

	switch {
	case step != StepEnterCode:
		err := failure.Validation("Request an OTP first")
		d.fail(err)
		return identity.Buyer{}, err
	case code == "":
		err := failure.Validation("Please enter the OTP")
		d.fail(err)
		return identity.Buyer{}, err
	case !validCode(code):
		err := failure.Validation("OTP must be 6 digits")
		d.fail(err)
		return identity.Buyer{}, err
	}

	if err := d.begin(); err != nil {
		return identity.Buyer{}, err
	}
	defer d.end()

	d.mu.Lock()
	d.code = code
	d.mu.Unlock()

	resp, err := d.api.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/verify-otp",
		JSON:   map[string]string{"mobile": International(digits, d.opts.CountryCode), "code": code},
		Public: true,
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return identity.Buyer{}, ErrClosed
	}
	if err != nil {
		err = classify(err, "Invalid OTP", "An error occurred while verifying OTP")
		d.errMsg = failure.Message(err, "Invalid OTP")
		return identity.Buyer{}, err
	}

	var body otpResponse
	decodeErr := resp.Decode(&body)
	if resp.Status != http.StatusOK {
		err := failure.New(failure.KindAuthRejected, nonEmpty(body.Message, "Invalid OTP"))
		d.errMsg = err.Message
		return identity.Buyer{}, err
	}
	if decodeErr != nil || body.Token == "" {
		err := failure.Wrap(failure.KindAuthRejected, "No token received from server", ErrNoToken)
		d.errMsg = err.Message
		return identity.Buyer{}, err
	}

	if err := d.tokens.SetBuyer(ctx, body.Token, digits); err != nil {
		d.errMsg = "An error occurred while verifying OTP"
		return identity.Buyer{}, err
	}
	d.step = StepTerminal
	d.errMsg = ""
	d.logger.Info("otp verified", "mobile_suffix", digits[len(digits)-4:])
	return identity.Buyer{OTPToken: body.Token, MobileDigits: digits}, nil
}

// Resend requests a new code for the same mobile. It is only allowed once
// the countdown has reached zero and resets the entered code and error.
func (d *Dialog) Resend(ctx context.Context) error {
	d.mu.Lock()
	if d.step != StepEnterCode {
		d.mu.Unlock()
		return failure.Validation("Request an OTP first")
	}
	if left := d.countdownLocked(); left > 0 {
		d.mu.Unlock()
		return failure.Validation("Please wait before requesting a new OTP")
	}
	digits := d.mobile
	d.code = ""
	d.errMsg = ""
	d.mu.Unlock()

	if err := d.begin(); err != nil {
		return err
	}
	defer d.end()
	return d.send(ctx, digits)
}

// Close discards the session. Results of calls still in flight are dropped.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.code = ""
	d.errMsg = ""
}

// State returns a snapshot for rendering.
func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	left := d.countdownLocked()
	return State{
		Step:      d.step,
		Mobile:    d.mobile,
		Countdown: left,
		CanResend: d.step == StepEnterCode && left == 0 && !d.busy,
		Busy:      d.busy,
		Error:     d.errMsg,
	}
}

func (d *Dialog) countdownLocked() int {
	if d.resendAt.IsZero() {
		return 0
	}
	left := d.resendAt.Sub(d.opts.Now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (d *Dialog) begin() error {
	if !d.inflight.TryLock() {
		return ErrBusy
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.inflight.Unlock()
		return ErrClosed
	}
	d.busy = true
	return nil
}

func (d *Dialog) end() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
	d.inflight.Unlock()
}

func (d *Dialog) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errMsg = failure.Message(err, err.Error())
}

// classify keeps the backend's message for rejections and uses transportMsg
// for network failures.
func classify(err error, rejectedMsg, transportMsg string) error {
	if errors.Is(err, failure.ErrTransport) {
		return failure.Wrap(failure.KindTransport, transportMsg, err)
	}
	return failure.Wrap(failure.KindAuthRejected, rejectedMsg, err)
}

func nonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
