package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/ledger"
	"github.com/loandesk/loandesk/internal/logging"
	"github.com/loandesk/loandesk/internal/notification"
)

type stubGateway struct {
	mu        sync.Mutex
	order     gateway.Order
	orderErr  error
	verify    gateway.VerifyResult
	verifyErr error
	plans     []gateway.Plan
	subReq    gateway.SubscriptionVerifyRequest
}

func (s *stubGateway) CreateOrder(context.Context, decimal.Decimal) (gateway.Order, error) {
	return s.order, s.orderErr
}

func (s *stubGateway) VerifyPayment(context.Context, gateway.PaymentProof) (gateway.VerifyResult, error) {
	return s.verify, s.verifyErr
}

func (s *stubGateway) Plans(context.Context) ([]gateway.Plan, bool, error) {
	return s.plans, false, nil
}

func (s *stubGateway) Subscriptions(context.Context) ([]gateway.Subscription, bool, error) {
	return nil, false, nil
}

func (s *stubGateway) CreateSubscription(context.Context, gateway.SubscriptionOrderRequest) (gateway.Order, error) {
	return s.order, s.orderErr
}

func (s *stubGateway) VerifySubscription(_ context.Context, req gateway.SubscriptionVerifyRequest) (gateway.VerifyResult, error) {
	s.mu.Lock()
	s.subReq = req
	s.mu.Unlock()
	return s.verify, s.verifyErr
}

type realSession bool

func (r realSession) IsReal() bool { return bool(r) }

func newService(t *testing.T, gw *stubGateway) (*Service, *ledger.Store, *notification.Feed) {
	t.Helper()
	wallet := ledger.NewStore(nil, realSession(false), nil, logging.Discard())
	feed := notification.NewFeed(10)
	svc := NewService(gw, wallet, StaticProcessor{}, feed, Settings{Currency: "INR", Key: "rzp_test"}, logging.Discard())
	return svc, wallet, feed
}

func TestRechargeCreditsWalletWithPaymentReference(t *testing.T) {
	gw := &stubGateway{
		order:  gateway.Order{OrderID: "order_1", Amount: 50000, Currency: "INR", Key: "rzp_live"},
		verify: gateway.VerifyResult{Success: true},
	}
	svc, wallet, feed := newService(t, gw)
	ctx := context.Background()

	co, err := svc.StartRecharge(ctx, RechargeIntent{RequestedAmount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if co.Mock || co.Options.OrderID != "order_1" || co.Options.Key != "rzp_live" {
		t.Fatalf("unexpected checkout %+v", co)
	}

	receipt, err := svc.ConfirmRecharge(ctx, gateway.PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !receipt.Amount.Equal(decimal.NewFromInt(500)) || receipt.TxnID != "pay_1" || receipt.PaymentMode != "razorpay" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	txns := wallet.Transactions()
	if len(txns) != 1 || txns[0].ExternalRef != "pay_1" || txns[0].Description != "Wallet Recharge" {
		t.Fatalf("unexpected wallet history %+v", txns)
	}

	msgs := feed.Drain()
	if len(msgs) != 1 || msgs[0].Level != notification.LevelSuccess {
		t.Fatalf("expected success toast, got %+v", msgs)
	}
}

func TestRechargeVerificationFailureDoesNotCredit(t *testing.T) {
	gw := &stubGateway{
		order:     gateway.Order{OrderID: "order_2", Amount: 10000},
		verifyErr: &gateway.StatusError{Status: 400},
	}
	svc, wallet, _ := newService(t, gw)
	ctx := context.Background()

	if _, err := svc.StartRecharge(ctx, RechargeIntent{RequestedAmount: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := svc.ConfirmRecharge(ctx, gateway.PaymentProof{OrderID: "order_2", PaymentID: "pay_2"})
	if !errors.Is(err, ErrPaymentVerification) {
		t.Fatalf("expected ErrPaymentVerification, got %v", err)
	}
	if !wallet.State().Balance.IsZero() {
		t.Fatal("wallet must not be credited on verification failure")
	}

	gw.verifyErr = nil
	gw.verify = gateway.VerifyResult{Success: false, Message: "signature mismatch"}
	if _, err := svc.ConfirmRecharge(ctx, gateway.PaymentProof{OrderID: "order_2", PaymentID: "pay_2"}); !errors.Is(err, ErrPaymentVerification) {
		t.Fatalf("expected ErrPaymentVerification for unsuccessful verify, got %v", err)
	}
}

func TestRechargeRejectsSmallAmountsAndUnknownOrders(t *testing.T) {
	svc, _, _ := newService(t, &stubGateway{})
	if _, err := svc.StartRecharge(context.Background(), RechargeIntent{RequestedAmount: decimal.RequireFromString("0.5")}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.ConfirmRecharge(context.Background(), gateway.PaymentProof{OrderID: "nope"}); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestMockOrderIsCompletedLocally(t *testing.T) {
	gw := &stubGateway{
		order:  gateway.Order{Mock: true},
		verify: gateway.VerifyResult{Success: true, Mock: true},
	}
	svc, wallet, _ := newService(t, gw)

	receipt, err := svc.Recharge(context.Background(), RechargeIntent{RequestedAmount: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("recharge: %v", err)
	}
	if !receipt.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected receipt amount %s", receipt.Amount)
	}
	if !wallet.State().Balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected balance %s", wallet.State().Balance)
	}
}

func TestDuplicateConfirmationCreditsOnce(t *testing.T) {
	gw := &stubGateway{order: gateway.Order{OrderID: "order_3", Amount: 2000}, verify: gateway.VerifyResult{Success: true}}
	svc, wallet, _ := newService(t, gw)
	ctx := context.Background()
	proof := gateway.PaymentProof{OrderID: "order_3", PaymentID: "pay_3"}

	if _, err := svc.StartRecharge(ctx, RechargeIntent{RequestedAmount: decimal.NewFromInt(20)}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.ConfirmRecharge(ctx, proof); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// reopen the same order id, as a retried overlay callback would
	if _, err := svc.StartRecharge(ctx, RechargeIntent{RequestedAmount: decimal.NewFromInt(20)}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, err := svc.ConfirmRecharge(ctx, proof); !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if !wallet.State().Balance.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected a single credit, balance %s", wallet.State().Balance)
	}
}

func TestSubscribeActivatesSubscriptionAccess(t *testing.T) {
	gw := &stubGateway{
		order:  gateway.Order{Mock: true},
		verify: gateway.VerifyResult{Success: true},
		plans: []gateway.Plan{
			{ID: "1", Name: "Basic Plan", Amount: decimal.NewFromInt(999), Duration: 30},
		},
	}
	svc, wallet, _ := newService(t, gw)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	act, err := svc.Subscribe(context.Background(), "basic plan")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !act.ValidUntil.Equal(now.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected validity %s", act.ValidUntil)
	}
	st := wallet.State()
	if st.AccessType != ledger.AccessSubscription || st.ValidUntil == nil {
		t.Fatalf("expected subscription access, got %+v", st)
	}
	if gw.subReq.PlanName != "Basic Plan" || gw.subReq.Duration != 30 {
		t.Fatalf("unexpected verify request %+v", gw.subReq)
	}

	if _, err := svc.Subscribe(context.Background(), "Gold"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}
