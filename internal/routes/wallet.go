package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/checkout"
	"github.com/loandesk/loandesk/internal/forms"
	"github.com/loandesk/loandesk/internal/wallet"
)

// RegisterWalletRoutes wires wallet reads, recharge checkout and form
// submission.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, co *checkout.Handler, fh *forms.Handler, idempotency fiber.Handler) {
	r.Get("/wallet", h.Get)
	r.Get("/wallet/transactions", h.Transactions)
	r.Get("/wallet/access", fh.Access)
	r.Post("/wallet/resync", h.Resync)
	r.Post("/wallet/recharge", co.StartRecharge)
	r.Post("/wallet/recharge/confirm", idempotency, co.ConfirmRecharge)
	r.Post("/forms/:class", fh.Submit)
}

// RegisterSubscriptionRoutes wires plans and subscription checkout.
func RegisterSubscriptionRoutes(r fiber.Router, co *checkout.Handler, idempotency fiber.Handler) {
	group := r.Group("/subscriptions")
	group.Get("/plans", co.Plans)
	group.Get("", co.Subscriptions)
	group.Post("", co.StartSubscription)
	group.Post("/confirm", idempotency, co.ConfirmSubscription)
}
