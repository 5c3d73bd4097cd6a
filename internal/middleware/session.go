package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/session"
)

const (
	userIDLocal       = "user_id"
	reauthHeader      = "X-Reauth-Required"
	sessionModeHeader = "X-Session-Mode"
)

// RequireSession rejects requests while no session is active. A session
// flagged for re-authentication still passes; the header tells the console
// to prompt for a new login.
func RequireSession(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := store.Current()
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, session.ErrNotAuthenticated.Error())
		}
		c.Locals(userIDLocal, sess.UserID)
		c.Set(sessionModeHeader, string(sess.Mode))
		if sess.ReauthRequired {
			c.Set(reauthHeader, "true")
		}
		return c.Next()
	}
}

// RequireAdmin allows only sessions carrying the admin role.
func RequireAdmin(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := store.Current()
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, session.ErrNotAuthenticated.Error())
		}
		if !sess.IsAdmin() {
			return fiber.NewError(http.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}
