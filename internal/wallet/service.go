// Package wallet is the console's read model of the prepaid wallet: balance,
// history and the access verdict derived from them.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/ledger"
	"github.com/loandesk/loandesk/internal/policy"
)

// Ledger is the subset of the ledger store the wallet view reads.
type Ledger interface {
	State() ledger.State
	Transactions() []ledger.Transaction
	Resync(ctx context.Context) error
}

// Summary is the wallet as shown on the dashboard.
type Summary struct {
	Balance    decimal.Decimal   `json:"balance"`
	Currency   string            `json:"currency"`
	Status     ledger.Status     `json:"status"`
	AccessType ledger.AccessType `json:"accessType"`
	ValidUntil *time.Time        `json:"validUntil,omitempty"`
	Access     policy.Verdict    `json:"access"`
	AsOf       time.Time         `json:"asOf"`
}

// Service exposes wallet reads backed by the ledger.
type Service struct {
	ledger   Ledger
	rates    policy.Rates
	currency string
	now      func() time.Time
}

// NewService builds a wallet service instance.
func NewService(l Ledger, rates policy.Rates, currency string) *Service {
	return &Service{ledger: l, rates: rates, currency: currency, now: time.Now}
}

// Summary returns the current wallet state with its access verdict.
func (s *Service) Summary() Summary {
	st := s.ledger.State()
	now := s.now()
	return Summary{
		Balance:    st.Balance,
		Currency:   s.currency,
		Status:     st.Status,
		AccessType: st.AccessType,
		ValidUntil: st.ValidUntil,
		Access:     policy.Decide(st.Policy(), s.rates, now),
		AsOf:       now.UTC(),
	}
}

// Transactions returns up to limit entries, newest first. A non-positive
// limit returns everything.
func (s *Service) Transactions(limit int) []ledger.Transaction {
	txns := s.ledger.Transactions()
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns
}

// Resync reloads the wallet from the backend and returns the new summary.
func (s *Service) Resync(ctx context.Context) (Summary, error) {
	if err := s.ledger.Resync(ctx); err != nil {
		return Summary{}, fmt.Errorf("resync wallet: %w", err)
	}
	return s.Summary(), nil
}
