package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookie carries the signed visitor session id.
const SessionCookie = "sf_session"

const (
	sessionLocal  = "session_id"
	sessionIssuer = "storefront"
)

// SignSession issues an HS256 token whose subject is the session id.
func SignSession(id string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseSession verifies token and returns its session id and expiry.
func ParseSession(token string, secret []byte) (string, time.Time, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return "", time.Time{}, err
	}
	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", time.Time{}, errors.New("invalid session token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", time.Time{}, errors.New("invalid session id")
	}
	return claims.Subject, claims.ExpiresAt.Time, nil
}

// Session resolves the visitor session from the signed cookie. A missing or
// invalid cookie starts a new session. Cookies past half their lifetime are
// reissued.
func Session(secret []byte, ttl time.Duration, secure bool, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := time.Now()
		id, expires, err := ParseSession(c.Cookies(SessionCookie), secret)
		reissue := false
		switch {
		case err != nil:
			if c.Cookies(SessionCookie) != "" {
				logger.Debug("discarding invalid session cookie", "error", err)
			}
			id = uuid.NewString()
			reissue = true
		case expires.Sub(now) < ttl/2:
			reissue = true
		}

		if reissue {
			token, err := SignSession(id, secret, ttl, now)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "session signing failed")
			}
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    token,
				Path:     "/",
				Expires:  now.Add(ttl),
				HTTPOnly: true,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals(sessionLocal, id)
		return c.Next()
	}
}

// SessionID returns the visitor session id resolved by Session.
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(sessionLocal).(string)
	return id
}
