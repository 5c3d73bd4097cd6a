package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/admin"
	"github.com/loandesk/loandesk/internal/notification"
	"github.com/loandesk/loandesk/internal/support"
)

// RegisterSupportRoutes wires ticket endpoints.
func RegisterSupportRoutes(r fiber.Router, h *support.Handler) {
	r.Get("/support/tickets", h.List)
	r.Post("/support/tickets", h.Create)
}

// RegisterAdminRoutes wires the back-office endpoints behind requireAdmin.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler, requireAdmin fiber.Handler) {
	group := r.Group("/admin", requireAdmin)
	group.Get("/stats", h.Stats)
	group.Get("/users", h.Users)
	group.Put("/users/:id/status", h.SetStatus)
	group.Post("/payments/manual", h.ManualPayment)
}

// RegisterNotificationRoutes exposes the toast feed. Reading drains it.
func RegisterNotificationRoutes(r fiber.Router, feed *notification.Feed) {
	r.Get("/notifications", func(c *fiber.Ctx) error {
		msgs := feed.Drain()
		if msgs == nil {
			msgs = []notification.Message{}
		}
		return c.JSON(fiber.Map{"notifications": msgs})
	})
}
