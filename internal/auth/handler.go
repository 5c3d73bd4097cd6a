package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/session"
)

// Handler exposes the console session endpoints.
type Handler struct {
	svc      *Service
	sessions *session.Store
}

func NewHandler(svc *Service, sessions *session.Store) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	State          session.State `json:"state"`
	UserID         string        `json:"user_id,omitempty"`
	Name           string        `json:"name,omitempty"`
	Email          string        `json:"email,omitempty"`
	Role           session.Role  `json:"role,omitempty"`
	Demo           bool          `json:"demo"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	ReauthRequired bool          `json:"reauth_required,omitempty"`
}

func toResponse(s session.Session) sessionResponse {
	return sessionResponse{
		State:          s.State(),
		UserID:         s.UserID,
		Name:           s.DisplayName,
		Email:          s.Email,
		Role:           s.Role,
		Demo:           s.IsDemo(),
		ExpiresAt:      s.ExpiresAt,
		ReauthRequired: s.ReauthRequired,
	}
}

// Login starts a session. The credential itself stays server side.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrInvalidCredentials):
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		default:
			return err
		}
	}
	return c.Status(http.StatusOK).JSON(toResponse(sess))
}

// Register creates an account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req Registration
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ack, err := h.svc.Register(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidMobile),
			errors.Is(err, ErrInvalidRole), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrPasswordMismatch):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return err
		}
	}
	return c.Status(http.StatusCreated).JSON(ack)
}

// Logout ends the session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.svc.Logout(c.UserContext()); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// Current reports the session state. Unauthenticated is a valid answer, not an
// error.
func (h *Handler) Current(c *fiber.Ctx) error {
	sess, ok := h.sessions.Current()
	if !ok {
		return c.JSON(sessionResponse{State: session.StateUnauthenticated})
	}
	return c.JSON(toResponse(sess))
}
