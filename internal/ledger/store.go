package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/metrics"
)

// Guard inspects the state under the store lock and may veto a debit.
type Guard func(State) error

// Store is the local wallet ledger. Mutations apply synchronously; remote
// persistence is handed to the Persister. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state State
	// oldest first; Transactions reverses
	txns  []Transaction
	refs  map[string]struct{}
	epoch uint64
	// end of a subscription activated locally and not yet reported back
	pendingSub *time.Time

	remote    Remote
	session   SessionView
	persister *Persister
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore builds an empty store. persister may be nil.
func NewStore(remote Remote, session SessionView, persister *Persister, logger *slog.Logger) *Store {
	return &Store{
		state:     emptyState(),
		refs:      make(map[string]struct{}),
		remote:    remote,
		session:   session,
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
}

func emptyState() State {
	return State{Balance: decimal.Zero, Status: StatusActive, AccessType: AccessPrepaid}
}

// State returns a snapshot of the wallet.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transactions returns the history newest first.
func (s *Store) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, len(s.txns))
	for i, tx := range s.txns {
		out[len(s.txns)-1-i] = tx
	}
	return out
}

// Debit removes amount from the wallet.
func (s *Store) Debit(ctx context.Context, amount decimal.Decimal, description string) (PostingResult, error) {
	return s.Charge(ctx, amount, description, nil)
}

// Charge is Debit with guard evaluated against the balance at the moment of
// the debit, under the same lock.
func (s *Store) Charge(ctx context.Context, amount decimal.Decimal, description string, guard Guard) (PostingResult, error) {
	if !amount.IsPositive() {
		return PostingResult{}, ErrInvalidAmount
	}

	s.mu.Lock()
	if guard != nil {
		if err := guard(s.state); err != nil {
			s.mu.Unlock()
			metrics.RecordLedgerMutation(string(KindDebit), "rejected")
			return PostingResult{}, err
		}
	}
	if amount.GreaterThan(s.state.Balance) {
		s.mu.Unlock()
		metrics.RecordLedgerMutation(string(KindDebit), "insufficient")
		return PostingResult{}, ErrInsufficientFunds
	}
	s.state.Balance = s.state.Balance.Sub(amount)
	tx := s.appendLocked(KindDebit, amount, description, "")
	res := PostingResult{Transaction: tx, Balance: s.state.Balance}
	s.mu.Unlock()

	metrics.RecordLedgerMutation(string(KindDebit), "ok")
	s.persist(tx)
	return res, nil
}

// Credit adds amount to the wallet. A non-empty externalRef may only be
// credited once.
func (s *Store) Credit(ctx context.Context, amount decimal.Decimal, description, externalRef string) (PostingResult, error) {
	if !amount.IsPositive() {
		return PostingResult{}, ErrInvalidAmount
	}

	s.mu.Lock()
	if externalRef != "" {
		if _, seen := s.refs[externalRef]; seen {
			s.mu.Unlock()
			return PostingResult{}, ErrDuplicateTransaction
		}
		s.refs[externalRef] = struct{}{}
	}
	s.state.Balance = s.state.Balance.Add(amount)
	tx := s.appendLocked(KindCredit, amount, description, externalRef)
	res := PostingResult{Transaction: tx, Balance: s.state.Balance}
	s.mu.Unlock()

	metrics.RecordLedgerMutation(string(KindCredit), "ok")
	s.persist(tx)
	return res, nil
}

// ActivateSubscription switches the wallet to subscription access until the
// given time.
func (s *Store) ActivateSubscription(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessType = AccessSubscription
	u := until.UTC()
	s.state.ValidUntil = &u
	s.pendingSub = &u
}

func (s *Store) appendLocked(kind Kind, amount decimal.Decimal, description, ref string) Transaction {
	tx := Transaction{
		ID:          newTxnID(),
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Timestamp:   s.now().UTC(),
		ExternalRef: ref,
	}
	s.txns = append(s.txns, tx)
	return tx
}

func (s *Store) persist(tx Transaction) {
	if s.persister == nil || s.session == nil || !s.session.IsReal() {
		return
	}
	if err := s.persister.Enqueue(tx); err != nil {
		s.logger.Warn("ledger entry not queued for persistence",
			slog.String("txn_id", tx.ID),
			slog.Any("error", err),
		)
	}
}

// Resync replaces local state with the remote ledger. It is a no-op without
// a real session. Only the most recently started resync may apply, and a
// cancelled context discards the result.
func (s *Store) Resync(ctx context.Context) error {
	if s.session == nil || !s.session.IsReal() || s.remote == nil {
		return nil
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	snap, err := s.remote.Balance(ctx)
	if err != nil {
		return fmt.Errorf("resync balance: %w", err)
	}
	page, err := s.remote.Transactions(ctx)
	if err != nil {
		return fmt.Errorf("resync transactions: %w", err)
	}
	if snap.Mock || page.Mock {
		s.logger.Warn("resync skipped, backend unavailable")
		return fmt.Errorf("resync: %w", gateway.ErrBackendUnreachable)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	state := stateFromSnapshot(snap, s.now())
	txns, refs := transactionsFromPage(page)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		s.logger.Debug("stale resync discarded", slog.Uint64("epoch", epoch))
		return nil
	}
	switch {
	case state.AccessType == AccessSubscription:
		s.pendingSub = nil
	case s.pendingSub != nil && s.now().Before(*s.pendingSub):
		// the backend has not caught up with a confirmed subscription yet
		until := *s.pendingSub
		state.AccessType = AccessSubscription
		state.ValidUntil = &until
	default:
		s.pendingSub = nil
	}
	s.state = state
	s.txns = txns
	s.refs = refs
	s.logger.Debug("wallet resynced",
		slog.String("balance", state.Balance.StringFixed(2)),
		slog.Int("transactions", len(txns)),
	)
	return nil
}

// Reset drops all local state. In-flight resyncs will not apply.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = emptyState()
	s.txns = nil
	s.refs = make(map[string]struct{})
	s.pendingSub = nil
	s.epoch++
}

// stateFromSnapshot maps the remote balance onto local state. Subscription
// access needs accessType "subscription", or no accessType at all plus an end
// date. An explicit prepaid wallet keeps prepaid access whatever validUntil
// says.
func stateFromSnapshot(snap gateway.BalanceSnapshot, now time.Time) State {
	st := State{Balance: snap.Balance, Status: StatusActive, AccessType: AccessPrepaid}
	if Status(snap.Status) == StatusBlocked {
		st.Status = StatusBlocked
	}
	subscription := false
	switch AccessType(snap.AccessType) {
	case AccessSubscription:
		subscription = true
	case "":
		subscription = snap.ValidUntil != nil
	}
	if subscription && (snap.ValidUntil == nil || snap.ValidUntil.After(now)) {
		st.AccessType = AccessSubscription
		st.ValidUntil = snap.ValidUntil
	}
	return st
}

func transactionsFromPage(page gateway.TransactionPage) ([]Transaction, map[string]struct{}) {
	items := make([]gateway.RemoteTransaction, len(page.Items))
	copy(items, page.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })

	refs := make(map[string]struct{})
	txns := make([]Transaction, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		kind := KindCredit
		if Kind(item.Kind) == KindDebit {
			kind = KindDebit
		}
		id := item.ID
		if id == "" {
			id = newTxnID()
		}
		if item.Reference != "" && kind == KindCredit {
			refs[item.Reference] = struct{}{}
		}
		txns = append(txns, Transaction{
			ID:          id,
			Kind:        kind,
			Amount:      item.Amount,
			Description: item.Description,
			Timestamp:   item.Date,
			ExternalRef: item.Reference,
		})
	}
	return txns, refs
}

func newTxnID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Flush waits for queued remote persistence to be attempted.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Flush(ctx)
}
