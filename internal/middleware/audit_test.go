package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAuditOmitsClientErrorMessages(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	app := fiber.New()
	app.Use(RequestID())
	app.Use(Audit(logger))
	app.Post("/otp", func(c *fiber.Ctx) error {
		return fiber.NewError(http.StatusBadRequest, "OTP must be 6 digits")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(http.StatusBadGateway, "Network error")
	})

	if _, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/otp", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if strings.Contains(logs.String(), "OTP must be 6 digits") {
		t.Fatalf("validation message must not be logged: %s", logs.String())
	}
	if !strings.Contains(logs.String(), `"status":400`) {
		t.Fatalf("expected status 400 in audit log: %s", logs.String())
	}

	logs.Reset()
	if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if !strings.Contains(logs.String(), `"level":"ERROR"`) || !strings.Contains(logs.String(), "Network error") {
		t.Fatalf("server errors must be logged with their cause: %s", logs.String())
	}
}
