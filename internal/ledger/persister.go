package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/metrics"
)

// ErrPersisterClosed is returned when enqueueing after Close.
var ErrPersisterClosed = errors.New("persister closed")

// Recorder records a ledger entry remotely.
type Recorder interface {
	RecordTransaction(ctx context.Context, rec gateway.TransactionRecord) (gateway.Ack, error)
}

// Persister forwards local postings to the remote ledger on a single
// background goroutine. Failures are logged and counted; they never roll back
// the local posting.
type Persister struct {
	recorder Recorder
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending int
	// closed whenever pending is zero
	idle   chan struct{}
	closed bool

	queue chan Transaction
	done  chan struct{}
}

// NewPersister starts the worker. size bounds the queue.
func NewPersister(recorder Recorder, size int, timeout time.Duration, logger *slog.Logger) *Persister {
	if size <= 0 {
		size = 1
	}
	p := &Persister{
		recorder: recorder,
		timeout:  timeout,
		logger:   logger,
		queue:    make(chan Transaction, size),
		done:     make(chan struct{}),
	}
	p.idle = make(chan struct{})
	close(p.idle)
	go p.run()
	return p
}

// Enqueue hands tx to the worker without blocking. A full queue drops the
// entry; the next resync reconciles it.
func (p *Persister) Enqueue(tx Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPersisterClosed
	}
	select {
	case p.queue <- tx:
		if p.pending == 0 {
			p.idle = make(chan struct{})
		}
		p.pending++
		return nil
	default:
		metrics.RecordPersistFailure("queue_full")
		p.logger.Error("persist queue full, dropping ledger entry",
			slog.String("txn_id", tx.ID),
			slog.String("kind", string(tx.Kind)),
		)
		return errors.New("persist queue full")
	}
}

func (p *Persister) run() {
	defer close(p.done)
	for tx := range p.queue {
		p.record(tx)
		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			close(p.idle)
		}
		p.mu.Unlock()
	}
}

func (p *Persister) record(tx Transaction) {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := p.recorder.RecordTransaction(ctx, gateway.TransactionRecord{
		Type:        string(tx.Kind),
		Amount:      tx.Amount,
		Description: tx.Description,
		Date:        tx.Timestamp,
		Reference:   tx.ExternalRef,
	})
	if err != nil {
		metrics.RecordPersistFailure(string(tx.Kind))
		p.logger.Error("failed to save transaction",
			slog.String("txn_id", tx.ID),
			slog.String("kind", string(tx.Kind)),
			slog.Any("error", err),
		)
		return
	}
	p.logger.Debug("transaction saved", slog.String("txn_id", tx.ID))
}

// Flush blocks until every entry enqueued so far has been attempted, or ctx
// ends.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting entries and drains the queue.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
