// Package policy decides whether a loan-application form may be submitted
// given a wallet balance and the configured per-form rates. Nothing in this
// package performs I/O or mutates state.
package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormClass identifies a billable loan-application form.
type FormClass string

const (
	FormBasic    FormClass = "basic"
	FormRealtime FormClass = "realtime"
)

// ErrUnknownFormClass is returned when a form class string is not recognised.
var ErrUnknownFormClass = errors.New("unknown form class")

// ParseFormClass converts user input into a FormClass.
func ParseFormClass(s string) (FormClass, error) {
	switch FormClass(strings.ToLower(strings.TrimSpace(s))) {
	case FormBasic:
		return FormBasic, nil
	case FormRealtime:
		return FormRealtime, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormClass, s)
	}
}

// Label is the human readable name used in transaction descriptions.
func (c FormClass) Label() string {
	switch c {
	case FormRealtime:
		return "Realtime Validation"
	default:
		return "Basic Form"
	}
}

// Rates is the per-submission price table.
type Rates struct {
	Basic    decimal.Decimal `json:"basic"`
	Realtime decimal.Decimal `json:"realtime"`
}

// DefaultRates returns the stock rate table {basic: 5, realtime: 50}.
func DefaultRates() Rates {
	return Rates{Basic: decimal.NewFromInt(5), Realtime: decimal.NewFromInt(50)}
}

// For returns the price of one submission of the given class.
func (r Rates) For(class FormClass) decimal.Decimal {
	if class == FormRealtime {
		return r.Realtime
	}
	return r.Basic
}

// Validate rejects negative rates.
func (r Rates) Validate() error {
	if r.Basic.IsNegative() {
		return fmt.Errorf("basic rate must not be negative")
	}
	if r.Realtime.IsNegative() {
		return fmt.Errorf("realtime rate must not be negative")
	}
	return nil
}

// Verdict is the permission set derived from a balance. It is never stored.
type Verdict struct {
	CanSubmitBasic    bool  `json:"canSubmitBasic"`
	CanSubmitRealtime bool  `json:"canSubmitRealtime"`
	Rates             Rates `json:"rates"`
}

// Allows reports whether the verdict permits the given form class.
func (v Verdict) Allows(class FormClass) bool {
	if class == FormRealtime {
		return v.CanSubmitRealtime
	}
	return v.CanSubmitBasic
}

// Evaluate derives a verdict from a balance. A balance equal to a rate is
// sufficient.
func Evaluate(balance decimal.Decimal, rates Rates) Verdict {
	return Verdict{
		CanSubmitBasic:    balance.GreaterThanOrEqual(rates.Basic),
		CanSubmitRealtime: balance.GreaterThanOrEqual(rates.Realtime),
		Rates:             rates,
	}
}

// Wallet is the subset of wallet state the caller-side decision needs.
type Wallet struct {
	Balance      decimal.Decimal
	Blocked      bool
	Subscription bool
	ValidUntil   *time.Time
}

// SubscriptionActive reports whether an unexpired subscription is in force.
// A subscription without an end date never expires.
func (w Wallet) SubscriptionActive(now time.Time) bool {
	if !w.Subscription {
		return false
	}
	return w.ValidUntil == nil || now.Before(*w.ValidUntil)
}

// Decide composes the subscription short-circuit and the blocked-wallet rule
// with Evaluate.
func Decide(w Wallet, rates Rates, now time.Time) Verdict {
	if w.Blocked {
		return Verdict{Rates: rates}
	}
	if w.SubscriptionActive(now) {
		return Verdict{CanSubmitBasic: true, CanSubmitRealtime: true, Rates: rates}
	}
	return Evaluate(w.Balance, rates)
}
