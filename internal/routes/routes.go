package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/loandesk/loandesk/internal/admin"
	"github.com/loandesk/loandesk/internal/app"
	"github.com/loandesk/loandesk/internal/auth"
	"github.com/loandesk/loandesk/internal/checkout"
	"github.com/loandesk/loandesk/internal/forms"
	"github.com/loandesk/loandesk/internal/middleware"
	"github.com/loandesk/loandesk/internal/support"
	"github.com/loandesk/loandesk/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Core *app.App
}

// Setup configures middlewares and all application routes.
func Setup(fapp *fiber.App, d Deps) error {
	if d.Core == nil {
		return fmt.Errorf("routes: application core is required")
	}
	cfg := d.Core.Cfg
	// Idempotent payment confirmation needs Redis outside of dev.
	if !cfg.IsDev() && d.Core.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", cfg.AppEnv)
	}

	fapp.Use(recover.New())
	fapp.Use(middleware.RequestID())
	fapp.Use(middleware.Audit(d.Core.Logger))

	RegisterHealthRoutes(fapp, d)

	authHandler := auth.NewHandler(d.Core.Auth, d.Core.Sessions)
	walletHandler := wallet.NewHandler(d.Core.Wallet)
	checkoutHandler := checkout.NewHandler(d.Core.Checkout)
	formsHandler := forms.NewHandler(d.Core.Forms)
	supportHandler := support.NewHandler(d.Core.Support)
	adminHandler := admin.NewHandler(d.Core.Admin)

	api := fapp.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	requireSession := middleware.RequireSession(d.Core.Sessions)
	rateLimiter := middleware.LoginRateLimit(d.Core.Cache, 5)
	RegisterSessionRoutes(api, authHandler, rateLimiter, requireSession)

	// Protected routes
	protected := api.Group("", requireSession)
	idempotency := middleware.Idempotency(d.Core.Cache, cfg.IdempotencyTTL, d.Core.Logger)
	RegisterWalletRoutes(protected, walletHandler, checkoutHandler, formsHandler, idempotency)
	RegisterSubscriptionRoutes(protected, checkoutHandler, idempotency)
	RegisterSupportRoutes(protected, supportHandler)
	RegisterNotificationRoutes(protected, d.Core.Feed)
	RegisterAdminRoutes(protected, adminHandler, middleware.RequireAdmin(d.Core.Sessions))

	return nil
}
