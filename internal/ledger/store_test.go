package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/logging"
	"github.com/loandesk/loandesk/internal/session"
)

type staticSession bool

func (s staticSession) IsReal() bool { return bool(s) }

type fakeRemote struct {
	mu      sync.Mutex
	snap    gateway.BalanceSnapshot
	page    gateway.TransactionPage
	records []gateway.TransactionRecord
	// when set, Balance blocks until a value is received
	gate chan struct{}
}

func (f *fakeRemote) Balance(ctx context.Context) (gateway.BalanceSnapshot, error) {
	f.mu.Lock()
	gate := f.gate
	snap := f.snap
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return gateway.BalanceSnapshot{}, ctx.Err()
		}
	}
	return snap, nil
}

func (f *fakeRemote) Transactions(context.Context) (gateway.TransactionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page, nil
}

func (f *fakeRemote) RecordTransaction(_ context.Context, rec gateway.TransactionRecord) (gateway.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return gateway.Ack{Success: true}, nil
}

func (f *fakeRemote) recorded() []gateway.TransactionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.TransactionRecord(nil), f.records...)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDebitInsufficientLeavesBalance(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	SeedBalance(s, d("4.99"))

	if _, err := s.Debit(context.Background(), d("5"), "Basic Form"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !s.State().Balance.Equal(d("4.99")) {
		t.Fatalf("balance changed to %s", s.State().Balance)
	}
	if len(s.Transactions()) != 0 {
		t.Fatal("failed debit must not record a transaction")
	}
}

func TestDebitSufficient(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	SeedBalance(s, d("50"))

	res, err := s.Debit(context.Background(), d("50"), "Realtime Validation")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !res.Balance.IsZero() || res.Transaction.Kind != KindDebit {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInvalidAmounts(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	for _, amt := range []decimal.Decimal{decimal.Zero, d("-1")} {
		if _, err := s.Debit(context.Background(), amt, "x"); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("debit %s: expected ErrInvalidAmount, got %v", amt, err)
		}
		if _, err := s.Credit(context.Background(), amt, "x", ""); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("credit %s: expected ErrInvalidAmount, got %v", amt, err)
		}
	}
}

func TestCreditFromAnyStart(t *testing.T) {
	for _, start := range []string{"0", "0.01", "4999.50"} {
		s := NewStore(nil, staticSession(false), nil, logging.Discard())
		SeedBalance(s, d(start))
		res, err := s.Credit(context.Background(), d("100"), "Wallet Recharge", "")
		if err != nil {
			t.Fatalf("credit: %v", err)
		}
		if !res.Balance.Equal(d(start).Add(d("100"))) {
			t.Fatalf("start %s: unexpected balance %s", start, res.Balance)
		}
	}
}

func TestCreditDebitRoundTripNewestFirst(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	ctx := context.Background()

	if _, err := s.Credit(ctx, d("100"), "Wallet Recharge", "pay_1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := s.Debit(ctx, d("100"), "Basic Form"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if !s.State().Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", s.State().Balance)
	}
	txns := s.Transactions()
	if len(txns) != 2 || txns[0].Kind != KindDebit || txns[1].Kind != KindCredit {
		t.Fatalf("expected [debit, credit], got %+v", txns)
	}
	if txns[0].ID <= txns[1].ID {
		t.Fatalf("expected ids ordered by creation, got %s then %s", txns[1].ID, txns[0].ID)
	}
}

func TestDuplicateExternalRefRejected(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	ctx := context.Background()
	if _, err := s.Credit(ctx, d("10"), "Wallet Recharge", "pay_1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := s.Credit(ctx, d("10"), "Wallet Recharge", "pay_1"); !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if !s.State().Balance.Equal(d("10")) {
		t.Fatalf("duplicate credit applied, balance %s", s.State().Balance)
	}
}

func TestChargeGuardVetoes(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	SeedBalance(s, d("100"))
	veto := errors.New("blocked")

	_, err := s.Charge(context.Background(), d("5"), "Basic Form", func(State) error { return veto })
	if !errors.Is(err, veto) {
		t.Fatalf("expected guard error, got %v", err)
	}
	if !s.State().Balance.Equal(d("100")) {
		t.Fatal("vetoed charge must not debit")
	}
}

func TestConcurrentChargesNeverOverdraw(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	SeedBalance(s, d("50"))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Debit(context.Background(), d("5"), "Basic Form"); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 10 {
		t.Fatalf("expected exactly 10 successful debits, got %d", ok.Load())
	}
	if !s.State().Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", s.State().Balance)
	}
}

func TestResyncReplacesLocalState(t *testing.T) {
	remote := &fakeRemote{
		snap: gateway.BalanceSnapshot{Balance: d("250.75"), Status: "active"},
		page: gateway.TransactionPage{Items: []gateway.RemoteTransaction{
			{ID: "2", Kind: "debit", Amount: d("5"), Reference: "FORM001", Date: time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)},
			{ID: "1", Kind: "credit", Amount: d("1000"), Reference: "TXN001", Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		}},
	}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())
	if _, err := s.Credit(context.Background(), d("1"), "optimistic", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if !s.State().Balance.Equal(d("250.75")) {
		t.Fatalf("expected remote balance, got %s", s.State().Balance)
	}
	txns := s.Transactions()
	if len(txns) != 2 || txns[0].ID != "1" || txns[1].ID != "2" {
		t.Fatalf("expected remote history newest first, got %+v", txns)
	}
	if _, err := s.Credit(context.Background(), d("1000"), "Wallet Recharge", "TXN001"); !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("resynced references must be remembered, got %v", err)
	}
}

func TestResyncAppliesSubscription(t *testing.T) {
	until := time.Now().Add(24 * time.Hour)
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("0"), Status: "active", AccessType: "subscription", ValidUntil: &until}}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	st := s.State()
	if st.AccessType != AccessSubscription || st.ValidUntil == nil {
		t.Fatalf("expected subscription access, got %+v", st)
	}
	if !st.Policy().SubscriptionActive(time.Now()) {
		t.Fatal("expected active subscription in policy projection")
	}
}

func TestResyncNoopWithoutRealSession(t *testing.T) {
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("999")}}
	s := NewStore(remote, staticSession(false), nil, logging.Discard())
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if !s.State().Balance.IsZero() {
		t.Fatal("resync must not apply for demo sessions")
	}
}

func TestResyncIgnoresSubstitutedData(t *testing.T) {
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("500"), Mock: true}}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())
	SeedBalance(s, d("12"))
	if err := s.Resync(context.Background()); !errors.Is(err, gateway.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	if !s.State().Balance.Equal(d("12")) {
		t.Fatal("mock data must not overwrite a real wallet")
	}
}

func TestOverlappingResyncLatestWins(t *testing.T) {
	gate := make(chan struct{})
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("10")}, gate: gate}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Resync(context.Background()) }()

	// wait until the first resync has taken its epoch
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		started := s.epoch == 1
		s.mu.Unlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	remote.mu.Lock()
	remote.gate = nil
	remote.snap = gateway.BalanceSnapshot{Balance: d("20")}
	remote.mu.Unlock()
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("second resync: %v", err)
	}

	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first resync: %v", err)
	}
	if !s.State().Balance.Equal(d("20")) {
		t.Fatalf("stale resync applied, balance %s", s.State().Balance)
	}
}

func TestResyncCancelledDiscardsResult(t *testing.T) {
	gate := make(chan struct{})
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("10")}, gate: gate}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Resync(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !s.State().Balance.IsZero() {
		t.Fatal("cancelled resync applied")
	}
}

func TestResetClearsState(t *testing.T) {
	s := NewStore(nil, staticSession(false), nil, logging.Discard())
	if _, err := s.Credit(context.Background(), d("5"), "x", "ref"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	s.Reset()
	if !s.State().Balance.IsZero() || len(s.Transactions()) != 0 {
		t.Fatal("expected empty wallet after reset")
	}
	if _, err := s.Credit(context.Background(), d("5"), "x", "ref"); err != nil {
		t.Fatalf("reference memory must be cleared on reset: %v", err)
	}
}

func TestPersisterForwardsRealPostings(t *testing.T) {
	remote := &fakeRemote{}
	p := NewPersister(remote, 8, time.Second, logging.Discard())
	s := NewStore(remote, staticSession(true), p, logging.Discard())
	ctx := context.Background()

	if _, err := s.Credit(ctx, d("100"), "Wallet Recharge", "pay_9"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := s.Debit(ctx, d("5"), "Basic Form"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	recs := remote.recorded()
	if len(recs) != 2 || recs[0].Type != "credit" || recs[0].Reference != "pay_9" || recs[1].Type != "debit" {
		t.Fatalf("unexpected records %+v", recs)
	}

	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Enqueue(Transaction{}); !errors.Is(err, ErrPersisterClosed) {
		t.Fatalf("expected ErrPersisterClosed, got %v", err)
	}
}

// Demo session: local mutations apply and no request reaches the backend.
func TestDemoSessionMakesNoRemoteCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	sessions := session.NewStore(session.NewMemoryPersister(), logging.Discard())
	if err := sessions.Begin(ctx, session.Session{UserID: "1", DisplayName: "Demo User", Role: session.RoleStandard, Credential: "demo", Mode: session.ModeDemo}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	gw := gateway.New(gateway.NewBaseClient(srv.URL, srv.Client()), sessions, gateway.NewDemoFallback(), logging.Discard())
	p := NewPersister(gw, 8, time.Second, logging.Discard())
	s := NewStore(gw, sessions, p, logging.Discard())

	res, err := s.Credit(ctx, d("1000"), "Wallet Recharge", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !res.Balance.Equal(d("1000")) || len(s.Transactions()) != 1 {
		t.Fatalf("unexpected local state %+v", res)
	}
	if err := s.Resync(ctx); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("expected zero backend calls, got %d", n)
	}
}

// Expired credential: resync surfaces the auth failure and logs the user out.
func TestResyncUnauthorizedEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	sessions := session.NewStore(session.NewMemoryPersister(), logging.Discard())
	if err := sessions.Begin(ctx, session.Session{UserID: "42", Role: session.RoleStandard, Credential: "expired", Mode: session.ModeReal}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	gw := gateway.New(gateway.NewBaseClient(srv.URL, srv.Client()), sessions, gateway.NewDemoFallback(), logging.Discard())
	s := NewStore(gw, sessions, nil, logging.Discard())
	SeedBalance(s, d("75"))

	err := s.Resync(ctx)
	if !errors.Is(err, gateway.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if sessions.State() != session.StateUnauthenticated {
		t.Fatalf("expected session ended, got %s", sessions.State())
	}
	if !s.State().Balance.Equal(d("75")) {
		t.Fatal("failed resync must not alter local state")
	}
}

func TestResyncPrepaidWithEndDateStaysPrepaid(t *testing.T) {
	until := time.Now().AddDate(1, 0, 0)
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("0"), Status: "active", AccessType: "prepaid", ValidUntil: &until}}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	st := s.State()
	if st.AccessType != AccessPrepaid {
		t.Fatalf("expected prepaid access, got %+v", st)
	}
	if st.Policy().SubscriptionActive(time.Now()) {
		t.Fatal("an empty prepaid wallet must not get subscription access")
	}

	remote.mu.Lock()
	remote.snap = gateway.BalanceSnapshot{Balance: d("0"), Status: "active", ValidUntil: &until}
	remote.mu.Unlock()
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if s.State().AccessType != AccessSubscription {
		t.Fatal("an end date without an access type reads as a subscription")
	}
}

func TestResyncKeepsLocallyActivatedSubscription(t *testing.T) {
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("0"), Status: "active"}}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())
	until := time.Now().Add(30 * 24 * time.Hour)
	s.ActivateSubscription(until)

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	st := s.State()
	if st.AccessType != AccessSubscription || st.ValidUntil == nil || !st.ValidUntil.Equal(until.UTC()) {
		t.Fatalf("subscription lost on resync: %+v", st)
	}

	// once the backend reports it, the backend's end date wins
	later := until.Add(24 * time.Hour)
	remote.mu.Lock()
	remote.snap = gateway.BalanceSnapshot{Balance: d("0"), Status: "active", AccessType: "subscription", ValidUntil: &later}
	remote.mu.Unlock()
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if got := s.State().ValidUntil; got == nil || !got.Equal(later) {
		t.Fatalf("expected backend end date, got %v", got)
	}

	s.Reset()
	remote.mu.Lock()
	remote.snap = gateway.BalanceSnapshot{Balance: d("0"), Status: "active"}
	remote.mu.Unlock()
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if s.State().AccessType != AccessPrepaid {
		t.Fatal("reset must forget the local subscription")
	}
}

func TestResyncDropsExpiredLocalSubscription(t *testing.T) {
	remote := &fakeRemote{snap: gateway.BalanceSnapshot{Balance: d("3"), Status: "active"}}
	s := NewStore(remote, staticSession(true), nil, logging.Discard())
	now := time.Now()
	s.ActivateSubscription(now.Add(time.Hour))
	s.now = func() time.Time { return now.Add(2 * time.Hour) }

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if st := s.State(); st.AccessType != AccessPrepaid || st.ValidUntil != nil {
		t.Fatalf("expired subscription must not be kept: %+v", st)
	}
}

// A real-session debit whose persistence is rejected with 401 stays applied
// locally, flags the session for re-authentication, and the next rejected
// read ends the session.
func TestRejectedPersistenceFlagsReauthThenReadEndsSession(t *testing.T) {
	var posts, gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		} else {
			gets.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	sessions := session.NewStore(session.NewMemoryPersister(), logging.Discard())
	if err := sessions.Begin(ctx, session.Session{UserID: "42", Role: session.RoleStandard, Credential: "stale", Mode: session.ModeReal}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	gw := gateway.New(gateway.NewBaseClient(srv.URL, srv.Client()), sessions, gateway.NewDemoFallback(), logging.Discard())
	p := NewPersister(gw, 8, time.Second, logging.Discard())
	defer p.Close(ctx)
	s := NewStore(gw, sessions, p, logging.Discard())
	SeedBalance(s, d("100"))

	res, err := s.Debit(ctx, d("30"), "Basic Form")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !res.Balance.Equal(d("70")) {
		t.Fatalf("unexpected balance %s", res.Balance)
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if posts.Load() != 1 {
		t.Fatalf("expected one persistence attempt, got %d", posts.Load())
	}

	if !s.State().Balance.Equal(d("70")) || len(s.Transactions()) != 1 {
		t.Fatal("rejected persistence must not roll back the debit")
	}
	sess, ok := sessions.Current()
	if !ok || !sess.ReauthRequired {
		t.Fatalf("expected session flagged for re-authentication, got %+v ok=%v", sess, ok)
	}
	if sessions.State() != session.StateAuthenticatedReal {
		t.Fatalf("a rejected write alone must not end the session, got %s", sessions.State())
	}

	if err := s.Resync(ctx); !errors.Is(err, gateway.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if gets.Load() == 0 {
		t.Fatal("expected the read to reach the backend")
	}
	if sessions.State() != session.StateUnauthenticated {
		t.Fatalf("expected session ended after rejected read, got %s", sessions.State())
	}
}

type blockingRecorder struct {
	release chan struct{}
}

func (b blockingRecorder) RecordTransaction(ctx context.Context, _ gateway.TransactionRecord) (gateway.Ack, error) {
	<-b.release
	return gateway.Ack{Success: true}, nil
}

func TestFlushHonoursContextWhileWorkerIsStuck(t *testing.T) {
	rec := blockingRecorder{release: make(chan struct{})}
	p := NewPersister(rec, 4, time.Second, logging.Discard())
	if err := p.Enqueue(Transaction{ID: "t1", Kind: KindDebit, Amount: d("5")}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	close(rec.release)
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush after release: %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush on idle persister: %v", err)
	}
}
