package admin

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type statusRequest struct {
	Status        string `json:"status"`
	CurrentStatus string `json:"currentStatus"`
}

type manualPaymentRequest struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
	TxnRef string          `json:"txnRef"`
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *Handler) Users(c *fiber.Ctx) error {
	users, err := h.service.Users(c.UserContext())
	if err != nil {
		return err
	}
	if users == nil {
		users = []gateway.AdminUser{}
	}
	return c.JSON(fiber.Map{"users": users})
}

// SetStatus sets the status named in the body, or flips currentStatus when
// no target is given.
func (h *Handler) SetStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	status := req.Status
	if status == "" {
		status = NextStatus(req.CurrentStatus)
	}
	ack, err := h.service.SetStatus(c.UserContext(), c.Params("id"), status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"status": status, "success": ack.Success, "mock": ack.Mock})
}

func (h *Handler) ManualPayment(c *fiber.Ctx) error {
	var req manualPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ack, err := h.service.ManualPayment(c.UserContext(), req.UserID, req.Amount, req.TxnRef)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(ack)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrMissingUser), errors.Is(err, ErrIncompleteForm):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
