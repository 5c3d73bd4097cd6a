package forms

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/policy"
)

// Handler exposes form submission and the access verdict.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Submit handles POST /forms/:class.
func (h *Handler) Submit(c *fiber.Ctx) error {
	class, err := policy.ParseFormClass(c.Params("class"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	var app Application
	if err := c.BodyParser(&app); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Submit(c.UserContext(), class, app)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "invalid application",
				"fields": verr.Fields,
			})
		case errors.Is(err, ErrWalletBlocked):
			return fiber.NewError(http.StatusForbidden, err.Error())
		default:
			return err
		}
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// Access handles GET /wallet/access.
func (h *Handler) Access(c *fiber.Ctx) error {
	return c.JSON(h.service.Verdict())
}
