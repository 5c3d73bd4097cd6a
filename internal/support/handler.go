package support

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/gateway"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// List handles GET /support/tickets.
func (h *Handler) List(c *fiber.Ctx) error {
	tickets, mock, err := h.service.Tickets(c.UserContext())
	if err != nil {
		return err
	}
	if tickets == nil {
		tickets = []gateway.Ticket{}
	}
	return c.JSON(fiber.Map{"tickets": tickets, "mock": mock})
}

// Create handles POST /support/tickets.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ack, err := h.service.Create(c.UserContext(), req.Subject, req.Description, req.Priority)
	if err != nil {
		switch {
		case errors.Is(err, ErrSubjectRequired), errors.Is(err, ErrDescriptionRequired), errors.Is(err, ErrInvalidPriority):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return err
		}
	}
	return c.Status(http.StatusCreated).JSON(ack)
}
