package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/auth"
)

// RegisterSessionRoutes wires login, registration and logout.
func RegisterSessionRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler, requireSession fiber.Handler) {
	group := r.Group("/session")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/register", h.Register)
	group.Get("", h.Current)
	group.Post("/logout", requireSession, h.Logout)
}
