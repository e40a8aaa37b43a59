package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/coursecompass/storefront/internal/auth"
	"github.com/coursecompass/storefront/internal/catalog"
	"github.com/coursecompass/storefront/internal/config"
	"github.com/coursecompass/storefront/internal/entitlement"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/middleware"
	"github.com/coursecompass/storefront/internal/notification"
	"github.com/coursecompass/storefront/internal/otp"
	"github.com/coursecompass/storefront/internal/payments"
	"github.com/coursecompass/storefront/internal/payments/payu"
	"github.com/coursecompass/storefront/internal/payments/razorpay"
	"github.com/coursecompass/storefront/internal/storage"
	"github.com/coursecompass/storefront/internal/visitor"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	State  storage.Store
	Logger *slog.Logger
	// HTTPClient fetches the widget script; http.DefaultClient when nil.
	HTTPClient *http.Client
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.State == nil {
		return fmt.Errorf("client state store is required")
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Shared collaborators
	gw := gateway.New(d.Cfg.API.BaseURL, d.Cfg.API.Timeout, d.Logger)
	visitors := visitor.NewResolver(identity.NewRegistry(d.State), gw)
	inbox := notification.NewInbox()
	notifier := notification.Fanout{inbox, notification.NewLoggerNotifier(d.Logger)}
	session := middleware.Session([]byte(d.Cfg.SessionSecret), d.Cfg.SessionTTL, !d.Cfg.IsDev(), d.Logger)

	scriptClient := d.HTTPClient
	if scriptClient == nil {
		scriptClient = &http.Client{Timeout: d.Cfg.API.Timeout}
	}
	script := razorpay.NewScriptLoader(d.Cfg.Razorpay.ScriptURL, scriptClient)
	payuProvider := payu.New(d.State, d.Cfg.PublicURL, d.Logger)

	var providers []payments.Provider
	if d.Cfg.Razorpay.Enabled() {
		providers = append(providers, razorpay.New(razorpay.Config{
			KeyID:        d.Cfg.Razorpay.KeyID,
			MerchantName: d.Cfg.Razorpay.MerchantName,
			ThemeColor:   d.Cfg.Razorpay.ThemeColor,
		}, script))
	}
	if d.Cfg.PayU.Enabled {
		providers = append(providers, payuProvider)
	}
	paymentSvc := payments.NewService(payments.NewAttempts(0), d.Cfg.Razorpay.CheckoutTimeout, notifier, d.Logger, providers...)

	// Provider-facing routes, outside the /api group
	if d.Cfg.Razorpay.Enabled() {
		app.Get(razorpay.ScriptPath, razorpay.NewHandler(script, d.Logger).Script)
	}
	RegisterPaymentReturnRoutes(app, payu.NewHandler(visitors, payuProvider, notifier, d.Logger), session)

	// API routes
	api := app.Group("/api", session)
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	limit := d.Cfg.OTP.RateLimitPerMinute
	RegisterSessionRoutes(api, auth.NewHandler(visitors, inbox, notifier, d.Logger),
		middleware.RateLimit(d.Cache, "admin_login", "emailOrPhone", limit, nil))
	RegisterOTPRoutes(api, otp.NewHandler(visitors, otp.NewDialogs(), otp.Options{
		CountryCode:    d.Cfg.OTP.CountryCode,
		ResendCooldown: d.Cfg.OTP.ResendCooldown,
	}, notifier, d.Logger), middleware.RateLimit(d.Cache, "otp_send", "mobile", limit, otp.MobileKey(d.Cfg.OTP.CountryCode)))
	RegisterCourseRoutes(api, entitlement.NewHandler(visitors, d.Logger))

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterCheckoutRoutes(api, payments.NewHandler(visitors, paymentSvc, "", razorpay.ScriptPath, d.Logger), idempotency)
	RegisterAdminRoutes(api, visitors, catalog.NewHandler(visitors))

	return nil
}
