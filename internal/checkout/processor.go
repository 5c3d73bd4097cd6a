package checkout

import (
	"context"

	"github.com/google/uuid"

	"github.com/loandesk/loandesk/internal/gateway"
)

// Processor represents the external payment overlay. Open presents the order
// to the payer and returns the proof handed back on success.
type Processor interface {
	Open(ctx context.Context, opts Options) (gateway.PaymentProof, error)
}

// Options is what the overlay needs to collect a payment. Amount is in minor
// currency units.
type Options struct {
	Key         string `json:"key"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	OrderID     string `json:"orderId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StaticProcessor approves every payment with a synthetic reference.
type StaticProcessor struct{}

// Open approves the order immediately.
func (StaticProcessor) Open(_ context.Context, opts Options) (gateway.PaymentProof, error) {
	return gateway.PaymentProof{
		OrderID:   opts.OrderID,
		PaymentID: "pay_" + uuid.NewString(),
		Signature: uuid.NewString(),
	}, nil
}
