package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/ledger"
	"github.com/loandesk/loandesk/internal/policy"
	"github.com/loandesk/loandesk/internal/session"
)

// ErrorHandler renders domain errors that handlers returned unmapped.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := statusOf(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			logger.Error("unhandled error",
				slog.String("path", c.Path()),
				slog.String("request_id", RequestIDFrom(c)),
				slog.Any("error", err),
			)
			message = "internal server error"
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch {
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, gateway.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, policy.ErrUnknownFormClass):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrBackendUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, gateway.ErrServer):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
