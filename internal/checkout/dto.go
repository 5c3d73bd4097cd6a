package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

// RechargeRequest captures the amount the user wants to add.
type RechargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ConfirmRequest carries the overlay's success payload.
type ConfirmRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// SubscribeRequest selects a plan by name.
type SubscribeRequest struct {
	PlanName string `json:"planName"`
}

// CheckoutResponse tells the view layer how to open the overlay.
type CheckoutResponse struct {
	Options
	Mock bool `json:"mock"`
}

// ReceiptResponse is shown after a confirmed recharge.
type ReceiptResponse struct {
	TxnID       string          `json:"txnId"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"paymentMode"`
	Balance     decimal.Decimal `json:"balance"`
	IssuedAt    time.Time       `json:"issuedAt"`
}

// SubscriptionResponse is returned after a confirmed subscription payment.
type SubscriptionResponse struct {
	PaymentID  string          `json:"paymentId"`
	PlanName   string          `json:"planName"`
	Amount     decimal.Decimal `json:"amount"`
	ValidUntil time.Time       `json:"validUntil"`
}
