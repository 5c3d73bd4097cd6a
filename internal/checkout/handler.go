package checkout

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/ledger"
)

// Handler exposes HTTP endpoints for recharge and subscription checkout.
type Handler struct {
	service *Service
}

// NewHandler constructs a checkout handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// StartRecharge opens a recharge order for the overlay.
func (h *Handler) StartRecharge(c *fiber.Ctx) error {
	var req RechargeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	co, err := h.service.StartRecharge(c.UserContext(), RechargeIntent{RequestedAmount: req.Amount})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(CheckoutResponse{Options: co.Options, Mock: co.Mock})
}

// ConfirmRecharge receives the overlay's success payload.
func (h *Handler) ConfirmRecharge(c *fiber.Ctx) error {
	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.ConfirmRecharge(c.UserContext(), proofOf(req))
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return c.Status(http.StatusOK).JSON(toReceipt(receipt))
		}
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toReceipt(receipt))
}

// Plans lists subscription plans.
func (h *Handler) Plans(c *fiber.Ctx) error {
	plans, err := h.service.Plans(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	if plans == nil {
		plans = []gateway.Plan{}
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// Subscriptions lists the user's subscriptions.
func (h *Handler) Subscriptions(c *fiber.Ctx) error {
	subs, err := h.service.Subscriptions(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	if subs == nil {
		subs = []gateway.Subscription{}
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

// StartSubscription opens a subscription order.
func (h *Handler) StartSubscription(c *fiber.Ctx) error {
	var req SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	co, err := h.service.StartSubscription(c.UserContext(), req.PlanName)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(CheckoutResponse{Options: co.Options, Mock: co.Mock})
}

// ConfirmSubscription activates a paid subscription.
func (h *Handler) ConfirmSubscription(c *fiber.Ctx) error {
	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	act, err := h.service.ConfirmSubscription(c.UserContext(), proofOf(req))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(SubscriptionResponse{
		PaymentID:  act.PaymentID,
		PlanName:   act.Plan.Name,
		Amount:     act.Plan.Amount,
		ValidUntil: act.ValidUntil,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUnknownOrder), errors.Is(err, ErrUnknownPlan):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPaymentVerification):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	default:
		return err
	}
}

func proofOf(req ConfirmRequest) gateway.PaymentProof {
	return gateway.PaymentProof{OrderID: req.OrderID, PaymentID: req.PaymentID, Signature: req.Signature}
}

func toReceipt(r Receipt) ReceiptResponse {
	return ReceiptResponse{
		TxnID:       r.TxnID,
		Amount:      r.Amount,
		PaymentMode: r.PaymentMode,
		Balance:     r.Balance,
		IssuedAt:    r.IssuedAt,
	}
}
