// Package checkout drives payment orders through the external overlay and
// turns confirmed payments into wallet credits or subscriptions.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/ledger"
	"github.com/loandesk/loandesk/internal/notification"
)

var (
	// ErrInvalidAmount is returned for recharges below one currency unit.
	ErrInvalidAmount = errors.New("please enter a valid amount")
	// ErrPaymentVerification means the backend did not confirm the payment.
	// The wallet is not credited.
	ErrPaymentVerification = errors.New("payment verification failed")
	// ErrUnknownOrder is returned when confirming an order this client did
	// not open.
	ErrUnknownOrder = errors.New("unknown payment order")
	// ErrUnknownPlan is returned for a plan name not in the catalogue.
	ErrUnknownPlan = errors.New("unknown subscription plan")
)

const (
	merchantName = "SaaS Base"
	paymentMode  = "razorpay"
)

// Gateway is the subset of the remote gateway checkout uses.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (gateway.Order, error)
	VerifyPayment(ctx context.Context, proof gateway.PaymentProof) (gateway.VerifyResult, error)
	Plans(ctx context.Context) ([]gateway.Plan, bool, error)
	Subscriptions(ctx context.Context) ([]gateway.Subscription, bool, error)
	CreateSubscription(ctx context.Context, req gateway.SubscriptionOrderRequest) (gateway.Order, error)
	VerifySubscription(ctx context.Context, req gateway.SubscriptionVerifyRequest) (gateway.VerifyResult, error)
}

// Wallet is the ledger surface checkout mutates.
type Wallet interface {
	Credit(ctx context.Context, amount decimal.Decimal, description, externalRef string) (ledger.PostingResult, error)
	ActivateSubscription(until time.Time)
	Flush(ctx context.Context) error
	Resync(ctx context.Context) error
}

// RechargeIntent is the amount the user asked to add.
type RechargeIntent struct {
	RequestedAmount decimal.Decimal
}

// Checkout is an opened order ready for the overlay.
type Checkout struct {
	Options Options
	Mock    bool
}

// Receipt summarises a confirmed recharge.
type Receipt struct {
	TxnID       string
	Amount      decimal.Decimal
	PaymentMode string
	Balance     decimal.Decimal
	IssuedAt    time.Time
}

// Activation summarises a confirmed subscription.
type Activation struct {
	PaymentID  string
	Plan       gateway.Plan
	ValidUntil time.Time
}

type purpose int

const (
	purposeRecharge purpose = iota
	purposeSubscription
)

type pendingOrder struct {
	purpose purpose
	amount  int64
	plan    gateway.Plan
}

// Settings carries the merchant values used for synthesised orders.
type Settings struct {
	Currency string
	Key      string
}

// Service coordinates payment orders, the overlay and the wallet.
type Service struct {
	gateway   Gateway
	wallet    Wallet
	processor Processor
	notifier  notification.Notifier
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]pendingOrder
}

// NewService wires checkout. A nil processor defaults to StaticProcessor.
func NewService(gw Gateway, wallet Wallet, processor Processor, notifier notification.Notifier, settings Settings, logger *slog.Logger) *Service {
	if processor == nil {
		processor = StaticProcessor{}
	}
	if settings.Currency == "" {
		settings.Currency = "INR"
	}
	return &Service{
		gateway:   gw,
		wallet:    wallet,
		processor: processor,
		notifier:  notifier,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
		pending:   make(map[string]pendingOrder),
	}
}

// StartRecharge opens a recharge order.
func (s *Service) StartRecharge(ctx context.Context, intent RechargeIntent) (Checkout, error) {
	if intent.RequestedAmount.LessThan(decimal.NewFromInt(1)) {
		return Checkout{}, ErrInvalidAmount
	}
	order, err := s.gateway.CreateOrder(ctx, intent.RequestedAmount)
	if err != nil {
		notification.Notify(ctx, s.notifier, notification.KindRecharge, notification.LevelError, "", "Failed to initiate payment")
		return Checkout{}, fmt.Errorf("create order: %w", err)
	}
	order = s.completeOrder(order, intent.RequestedAmount)
	s.remember(order.OrderID, pendingOrder{purpose: purposeRecharge, amount: order.Amount})

	return Checkout{
		Options: Options{
			Key:         order.Key,
			Amount:      order.Amount,
			Currency:    order.Currency,
			OrderID:     order.OrderID,
			Name:        merchantName,
			Description: "Wallet Recharge",
		},
		Mock: order.Mock,
	}, nil
}

// ConfirmRecharge is the only path from a payment to a wallet credit. The
// credit carries the payment id as its external reference.
func (s *Service) ConfirmRecharge(ctx context.Context, proof gateway.PaymentProof) (Receipt, error) {
	order, ok := s.lookup(proof.OrderID, purposeRecharge)
	if !ok {
		return Receipt{}, ErrUnknownOrder
	}

	res, err := s.gateway.VerifyPayment(ctx, proof)
	if err != nil || !res.Success {
		notification.Notify(ctx, s.notifier, notification.KindRecharge, notification.LevelError, "", "Payment verification failed")
		return Receipt{}, verifyFailure(res, err)
	}

	amount := decimal.New(order.amount, -2)
	posting, err := s.wallet.Credit(ctx, amount, "Wallet Recharge", proof.PaymentID)
	receipt := Receipt{
		TxnID:       proof.PaymentID,
		Amount:      amount,
		PaymentMode: paymentMode,
		Balance:     posting.Balance,
		IssuedAt:    s.now().UTC(),
	}
	if err != nil {
		return receipt, err
	}
	s.forget(proof.OrderID)
	s.settle(ctx)

	notification.Notify(ctx, s.notifier, notification.KindRecharge, notification.LevelSuccess, "", "Payment successful! Wallet recharged.")
	s.logger.Info("wallet recharged",
		slog.String("payment_id", proof.PaymentID),
		slog.String("amount", amount.StringFixed(2)),
	)
	return receipt, nil
}

// Recharge runs the whole flow through the processor.
func (s *Service) Recharge(ctx context.Context, intent RechargeIntent) (Receipt, error) {
	co, err := s.StartRecharge(ctx, intent)
	if err != nil {
		return Receipt{}, err
	}
	proof, err := s.processor.Open(ctx, co.Options)
	if err != nil {
		s.forget(co.Options.OrderID)
		return Receipt{}, fmt.Errorf("payment overlay: %w", err)
	}
	return s.ConfirmRecharge(ctx, proof)
}

// Plans returns the subscription catalogue.
func (s *Service) Plans(ctx context.Context) ([]gateway.Plan, error) {
	plans, _, err := s.gateway.Plans(ctx)
	return plans, err
}

// Subscriptions returns the user's subscriptions.
func (s *Service) Subscriptions(ctx context.Context) ([]gateway.Subscription, error) {
	subs, _, err := s.gateway.Subscriptions(ctx)
	return subs, err
}

// StartSubscription opens a subscription order for the named plan.
func (s *Service) StartSubscription(ctx context.Context, planName string) (Checkout, error) {
	plan, err := s.findPlan(ctx, planName)
	if err != nil {
		return Checkout{}, err
	}
	order, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionOrderRequest{
		PlanName: plan.Name,
		Amount:   plan.Amount,
		Duration: plan.Duration,
	})
	if err != nil {
		notification.Notify(ctx, s.notifier, notification.KindSubscription, notification.LevelError, "", "Failed to initiate payment")
		return Checkout{}, fmt.Errorf("create subscription order: %w", err)
	}
	order = s.completeOrder(order, plan.Amount)
	s.remember(order.OrderID, pendingOrder{purpose: purposeSubscription, amount: order.Amount, plan: plan})

	return Checkout{
		Options: Options{
			Key:         order.Key,
			Amount:      order.Amount,
			Currency:    order.Currency,
			OrderID:     order.OrderID,
			Name:        merchantName,
			Description: "Subscription to " + plan.Name,
		},
		Mock: order.Mock,
	}, nil
}

// ConfirmSubscription verifies the payment and switches the wallet to
// subscription access for the plan duration.
func (s *Service) ConfirmSubscription(ctx context.Context, proof gateway.PaymentProof) (Activation, error) {
	order, ok := s.lookup(proof.OrderID, purposeSubscription)
	if !ok {
		return Activation{}, ErrUnknownOrder
	}

	res, err := s.gateway.VerifySubscription(ctx, gateway.SubscriptionVerifyRequest{
		PaymentProof: proof,
		PlanName:     order.plan.Name,
		Duration:     order.plan.Duration,
	})
	if err != nil || !res.Success {
		notification.Notify(ctx, s.notifier, notification.KindSubscription, notification.LevelError, "", "Payment verification failed")
		return Activation{}, verifyFailure(res, err)
	}

	until := s.now().UTC().AddDate(0, 0, order.plan.Duration)
	s.wallet.ActivateSubscription(until)
	s.forget(proof.OrderID)
	s.settle(ctx)

	notification.Notify(ctx, s.notifier, notification.KindSubscription, notification.LevelSuccess, "",
		fmt.Sprintf("Subscription activated! %s valid until %s", order.plan.Name, until.Format("2006-01-02")))
	return Activation{PaymentID: proof.PaymentID, Plan: order.plan, ValidUntil: until}, nil
}

// Subscribe runs the whole subscription flow through the processor.
func (s *Service) Subscribe(ctx context.Context, planName string) (Activation, error) {
	co, err := s.StartSubscription(ctx, planName)
	if err != nil {
		return Activation{}, err
	}
	proof, err := s.processor.Open(ctx, co.Options)
	if err != nil {
		s.forget(co.Options.OrderID)
		return Activation{}, fmt.Errorf("payment overlay: %w", err)
	}
	return s.ConfirmSubscription(ctx, proof)
}

// Reset forgets every open order.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]pendingOrder)
}

func (s *Service) findPlan(ctx context.Context, name string) (gateway.Plan, error) {
	plans, err := s.Plans(ctx)
	if err != nil {
		return gateway.Plan{}, err
	}
	for _, p := range plans {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return gateway.Plan{}, ErrUnknownPlan
}

// completeOrder fills in an order the backend could not create.
func (s *Service) completeOrder(order gateway.Order, amount decimal.Decimal) gateway.Order {
	if order.OrderID != "" && !order.Mock {
		return order
	}
	order.Mock = true
	if order.OrderID == "" {
		order.OrderID = "order_demo_" + uuid.NewString()
	}
	if order.Amount <= 0 {
		order.Amount = amount.Shift(2).Round(0).IntPart()
	}
	if order.Currency == "" {
		order.Currency = s.settings.Currency
	}
	if order.Key == "" {
		order.Key = s.settings.Key
	}
	return order
}

func (s *Service) remember(orderID string, order pendingOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[orderID] = order
}

func (s *Service) lookup(orderID string, want purpose) (pendingOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.pending[orderID]
	if !ok || order.purpose != want {
		return pendingOrder{}, false
	}
	return order, true
}

func (s *Service) forget(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, orderID)
}

func verifyFailure(res gateway.VerifyResult, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPaymentVerification, err)
	}
	if res.Message != "" {
		return fmt.Errorf("%w: %s", ErrPaymentVerification, res.Message)
	}
	return ErrPaymentVerification
}

// settle lets queued persistence land before reloading the remote ledger.
func (s *Service) settle(ctx context.Context) {
	if err := s.wallet.Flush(ctx); err != nil {
		s.logger.Warn("flush before resync", slog.Any("error", err))
	}
	if err := s.wallet.Resync(ctx); err != nil {
		s.logger.Warn("resync after payment", slog.Any("error", err))
	}
}
