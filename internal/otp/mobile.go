package otp

import (
	"strings"

	"github.com/coursecompass/storefront/internal/failure"
)

// NormalizeMobile reduces raw input to the 10 national digits. Stray
// separators, a leading "+<countryCode>" and a trunk "0" are accepted.
func NormalizeMobile(raw, countryCode string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", failure.Validation("Please enter your mobile number")
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10+len(countryCode) && strings.HasPrefix(digits, countryCode):
		digits = digits[len(countryCode):]
	case len(digits) == 11 && digits[0] == '0':
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", failure.Validation("Please enter a valid mobile number")
	}
	return digits, nil
}

// MobileKey returns a rate-limit key function that maps every spelling of a
// mobile to its national digits, or "" when raw is not a valid mobile.
func MobileKey(countryCode string) func(string) string {
	return func(raw string) string {
		digits, err := NormalizeMobile(raw, countryCode)
		if err != nil {
			return ""
		}
		return digits
	}
}

// International is the canonical form sent to the OTP backend.
func International(digits, countryCode string) string {
	return "+" + countryCode + digits
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
