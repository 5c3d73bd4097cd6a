package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get returns the wallet summary.
func (h *Handler) Get(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.service.Summary())
}

// Transactions returns the wallet history, newest first. ?limit= caps it.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return fiber.NewError(http.StatusBadRequest, "limit must not be negative")
	}
	txns := h.service.Transactions(limit)
	if txns == nil {
		txns = []ledger.Transaction{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txns})
}

// Resync reloads the wallet from the backend.
func (h *Handler) Resync(c *fiber.Ctx) error {
	summary, err := h.service.Resync(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(summary)
}
