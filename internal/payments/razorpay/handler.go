package razorpay

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler serves the cached widget script.
type Handler struct {
	script *ScriptLoader
	logger *slog.Logger
}

// NewHandler builds a script handler.
func NewHandler(script *ScriptLoader, logger *slog.Logger) *Handler {
	return &Handler{script: script, logger: logger}
}

// Script serves the widget script, loading it on first use.
func (h *Handler) Script(c *fiber.Ctx) error {
	if err := h.script.Ensure(c.UserContext()); err != nil {
		h.logger.Warn("load checkout script", "error", err)
		return fiber.NewError(http.StatusBadGateway, "Failed to load payment gateway")
	}
	body, _ := h.script.Script()
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	c.Type("js", "utf-8")
	return c.Status(http.StatusOK).Send(body)
}
