// Package forms submits loan applications, charging the wallet per form class
// only when the access policy allows it.
package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/ledger"
	"github.com/loandesk/loandesk/internal/notification"
	"github.com/loandesk/loandesk/internal/policy"
)

// ErrWalletBlocked is returned when the wallet is blocked by an administrator.
var ErrWalletBlocked = errors.New("wallet is blocked")

// Wallet is the ledger surface form submission needs.
type Wallet interface {
	State() ledger.State
	Charge(ctx context.Context, amount decimal.Decimal, description string, guard ledger.Guard) (ledger.PostingResult, error)
	Credit(ctx context.Context, amount decimal.Decimal, description, externalRef string) (ledger.PostingResult, error)
}

// Poster sends the application to the backend.
type Poster interface {
	SubmitForm(ctx context.Context, class string, form gateway.FormSubmission) (gateway.Ack, error)
}

// Result describes a submitted application.
type Result struct {
	Class   policy.FormClass `json:"class"`
	Charged decimal.Decimal  `json:"charged"`
	TxnID   string           `json:"txnId,omitempty"`
	Balance decimal.Decimal  `json:"balance"`
	Message string           `json:"message"`
	Mock    bool             `json:"mock"`
}

type Service struct {
	wallet   Wallet
	poster   Poster
	rates    policy.Rates
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(wallet Wallet, poster Poster, rates policy.Rates, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{wallet: wallet, poster: poster, rates: rates, notifier: notifier, logger: logger, now: time.Now}
}

// Verdict evaluates access against the current wallet state.
func (s *Service) Verdict() policy.Verdict {
	return policy.Decide(s.wallet.State().Policy(), s.rates, s.now())
}

// Rates returns the configured per-form rates.
func (s *Service) Rates() policy.Rates { return s.rates }

// Submit validates the application, charges the wallet for the form class and
// posts the application. A failed post refunds the charge.
func (s *Service) Submit(ctx context.Context, class policy.FormClass, app Application) (Result, error) {
	app = app.Normalize()
	if err := app.Validate(class); err != nil {
		return Result{}, err
	}

	rate := s.rates.For(class)
	label := class.Label()
	now := s.now()

	var (
		posting ledger.PostingResult
		charged bool
	)
	st := s.wallet.State()
	if st.Status == ledger.StatusBlocked {
		return Result{}, ErrWalletBlocked
	}
	covered := st.Policy().SubscriptionActive(now)
	if covered || !rate.IsPositive() {
		posting.Balance = st.Balance
	} else {
		var err error
		posting, err = s.wallet.Charge(ctx, rate, label, func(st ledger.State) error {
			if st.Status == ledger.StatusBlocked {
				return ErrWalletBlocked
			}
			if !policy.Decide(st.Policy(), s.rates, now).Allows(class) {
				return ledger.ErrInsufficientFunds
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				notification.Notify(ctx, s.notifier, notification.KindFormSubmit, notification.LevelError, "",
					"Insufficient balance. Please recharge your wallet.")
			}
			return Result{}, err
		}
		charged = true
	}

	ack, err := s.poster.SubmitForm(ctx, string(class), gateway.FormSubmission{
		ApplicantName: app.ApplicantName,
		LoanAmount:    app.LoanAmount,
		Purpose:       app.Purpose,
		Aadhaar:       app.Aadhaar,
		PAN:           app.PAN,
		BankAccount:   app.BankAccount,
		TxnID:         posting.Transaction.ID,
	})
	if err != nil {
		if charged {
			s.refund(ctx, rate, label, posting.Transaction.ID)
		}
		notification.Notify(ctx, s.notifier, notification.KindFormSubmit, notification.LevelError, "", "Form submission failed")
		return Result{}, fmt.Errorf("submit %s form: %w", class, err)
	}

	res := Result{Class: class, Balance: posting.Balance, Mock: ack.Mock, TxnID: posting.Transaction.ID}
	if charged {
		res.Charged = rate
		res.Message = fmt.Sprintf("Form submitted successfully! %s deducted. New balance: %s",
			rate.StringFixed(2), posting.Balance.StringFixed(2))
	} else {
		res.Charged = decimal.Zero
		res.Message = "Form submitted successfully! No charge for this form."
		if covered {
			res.Message = "Form submitted successfully! Covered by your subscription."
		}
	}
	notification.Notify(ctx, s.notifier, notification.KindFormSubmit, notification.LevelSuccess, "", res.Message)
	s.logger.Info("form submitted",
		slog.String("class", string(class)),
		slog.String("charged", res.Charged.StringFixed(2)),
		slog.Bool("mock", ack.Mock),
	)
	return res, nil
}

func (s *Service) refund(ctx context.Context, amount decimal.Decimal, label, txnID string) {
	if _, err := s.wallet.Credit(ctx, amount, "Refund: "+label, "refund:"+txnID); err != nil {
		s.logger.Error("refund failed", slog.String("txn_id", txnID), slog.Any("error", err))
	}
}
