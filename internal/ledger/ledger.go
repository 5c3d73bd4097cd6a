package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/policy"
)

var (
	// ErrInsufficientFunds occurs when the wallet lacks the balance to cover a
	// debit. The balance is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrDuplicateTransaction indicates a credit for an external reference that
	// was already recorded, e.g. a payment confirmed twice.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

type AccessType string

const (
	AccessPrepaid      AccessType = "prepaid"
	AccessSubscription AccessType = "subscription"
)

// Transaction is an append-only wallet entry.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	ExternalRef string          `json:"externalRef,omitempty"`
}

// State is the locally cached wallet.
type State struct {
	Balance    decimal.Decimal `json:"balance"`
	Status     Status          `json:"status"`
	AccessType AccessType      `json:"accessType"`
	ValidUntil *time.Time      `json:"validUntil,omitempty"`
}

// Policy projects the state onto the access policy inputs.
func (s State) Policy() policy.Wallet {
	return policy.Wallet{
		Balance:      s.Balance,
		Blocked:      s.Status == StatusBlocked,
		Subscription: s.AccessType == AccessSubscription,
		ValidUntil:   s.ValidUntil,
	}
}

// PostingResult captures the outcome of a local posting.
type PostingResult struct {
	Transaction Transaction
	Balance     decimal.Decimal
}

// Remote is the remote ledger the store resyncs from and persists to.
type Remote interface {
	Balance(ctx context.Context) (gateway.BalanceSnapshot, error)
	Transactions(ctx context.Context) (gateway.TransactionPage, error)
	RecordTransaction(ctx context.Context, rec gateway.TransactionRecord) (gateway.Ack, error)
}

// SessionView tells the store whether a backend-confirmed session is active.
type SessionView interface {
	IsReal() bool
}
