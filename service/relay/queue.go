package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fireup-dev/fireup/service/db"
	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/metrics"
	"github.com/fireup-dev/fireup/service/nats"
)

// Reconciliation outcomes, as recorded in metrics and the journal.
const (
	OutcomeCommitted = "committed"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
	OutcomeDropped   = "dropped"
)

// Queue serializes ledger commits. Entries are processed strictly in arrival
// order by a single worker, which checks for an existing ledger transaction
// with the entry's internal reference before creating one. Single-lane
// processing is what makes the check race-free against this pipeline's own
// writes.
type Queue struct {
	ledger        LedgerClient
	remoteTimeout time.Duration
	publisher     nats.Publisher
	journal       *db.Store
	metrics       *metrics.Metrics
	logger        *slog.Logger

	entries chan *firefly.NewTransaction
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewQueue creates a reconciliation queue holding up to size pending
// entries. publisher and journal may be nil to disable commit events and
// journaling; m may be nil to disable metrics.
func NewQueue(ledger LedgerClient, size int, remoteTimeout time.Duration, publisher nats.Publisher, journal *db.Store, m *metrics.Metrics, logger *slog.Logger) *Queue {
	return &Queue{
		ledger:        ledger,
		remoteTimeout: remoteTimeout,
		publisher:     publisher,
		journal:       journal,
		metrics:       m,
		logger:        logger,
		entries:       make(chan *firefly.NewTransaction, size),
		stop:          make(chan struct{}),
	}
}

// Enqueue appends a normalized transaction for commit. It never blocks: when
// the queue is full the entry is dropped and an error returned, so the
// webhook path stays fast even if the ledger is slow.
func (q *Queue) Enqueue(txn *firefly.NewTransaction) error {
	select {
	case q.entries <- txn:
		q.metrics.SetQueueDepth(len(q.entries))
		return nil
	default:
		q.logger.Error("reconcile queue full, dropping entry",
			"reference", txn.InternalReference,
			"description", txn.Description,
		)
		q.metrics.RecordReconcileOutcome(OutcomeDropped, 0)
		q.record(txn.InternalReference, OutcomeDropped, "queue full")
		return fmt.Errorf("reconcile queue full, dropped %s", txn.InternalReference)
	}
}

// Depth returns the number of pending entries.
func (q *Queue) Depth() int {
	return len(q.entries)
}

// Start launches the worker goroutine. The worker runs until Shutdown is
// called or ctx is canceled.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(ctx)
	}()
}

func (q *Queue) run(ctx context.Context) {
	q.logger.Info("reconcile worker started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("reconcile worker stopping", "pending", len(q.entries))
			return
		case <-q.stop:
			q.logger.Info("reconcile worker stopping", "pending", len(q.entries))
			return
		case txn := <-q.entries:
			q.metrics.SetQueueDepth(len(q.entries))
			q.process(txn)
		}
	}
}

// process runs the check-then-create sequence for one entry. Remote calls
// get their own timeout rather than the worker context, so an in-flight
// entry finishes even while the process is shutting down. Failures are
// logged and the entry dropped; the worker never stops on error.
func (q *Queue) process(txn *firefly.NewTransaction) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), q.remoteTimeout)
	defer cancel()

	ref := txn.InternalReference
	existingID, found, err := q.ledger.FindTransactionByReference(ctx, ref)
	if err != nil {
		q.logger.Error("idempotency check failed, dropping entry",
			"reference", ref,
			"error", err,
		)
		q.metrics.RecordReconcileOutcome(OutcomeError, time.Since(start).Seconds())
		q.record(ref, OutcomeError, err.Error())
		return
	}
	if found {
		q.logger.Info("transaction already committed, skipping",
			"reference", ref,
			"ledger_id", existingID,
		)
		q.metrics.RecordReconcileOutcome(OutcomeDuplicate, time.Since(start).Seconds())
		q.record(ref, OutcomeDuplicate, existingID)
		return
	}

	ledgerID, err := q.ledger.CreateTransaction(ctx, txn)
	if err != nil {
		q.logger.Error("ledger create failed, dropping entry",
			"reference", ref,
			"error", err,
		)
		q.metrics.RecordReconcileOutcome(OutcomeError, time.Since(start).Seconds())
		q.record(ref, OutcomeError, err.Error())
		return
	}

	q.logger.Info("transaction committed",
		"reference", ref,
		"ledger_id", ledgerID,
		"type", txn.Type,
		"amount", txn.Amount.String(),
	)
	q.metrics.RecordReconcileOutcome(OutcomeCommitted, time.Since(start).Seconds())
	q.record(ref, OutcomeCommitted, ledgerID)
	q.publishCommit(txn, ledgerID)
}

// publishCommit emits a commit event to NATS. Publish failures are logged
// only; the ledger write already succeeded.
func (q *Queue) publishCommit(txn *firefly.NewTransaction, ledgerID string) {
	if q.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.remoteTimeout)
	defer cancel()

	event := nats.FromNewTransaction(txn, ledgerID)
	if err := q.publisher.PublishCommit(ctx, event); err != nil {
		q.logger.Error("failed to publish commit event",
			"reference", txn.InternalReference,
			"error", err,
		)
	}
}

// record appends a reconciliation outcome to the journal, when configured.
func (q *Queue) record(reference, outcome, detail string) {
	if q.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := q.journal.RecordEvent(ctx, db.RecordEventParams{
		Reference: reference,
		Kind:      "reconcile",
		Outcome:   outcome,
		Detail:    detail,
	}); err != nil {
		q.logger.Error("failed to journal reconcile outcome",
			"reference", reference,
			"outcome", outcome,
			"error", err,
		)
	}
}

// Shutdown stops the worker and waits for an in-flight entry to finish, up
// to ctx's deadline. Pending entries still in the channel are abandoned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.once.Do(func() { close(q.stop) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reconcile worker shutdown: %w", ctx.Err())
	}
}
