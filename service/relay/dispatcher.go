package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/fireup-dev/fireup/service/db"
	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/metrics"
	"github.com/fireup-dev/fireup/service/upbank"
)

// Dispatcher routes inbound webhook events. It is the synchronous half of
// the pipeline: every event is acknowledged regardless of processing
// outcome, since the provider retries on non-2xx and a retry of a failed
// fetch would fail the same way. Failures are logged and counted instead.
type Dispatcher struct {
	bank    BankClient
	ledger  LedgerClient
	norm    *Normalizer
	queue   *Queue
	journal *db.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. journal may be nil to disable
// journaling; m may be nil to disable metrics.
func NewDispatcher(bank BankClient, ledger LedgerClient, norm *Normalizer, queue *Queue, journal *db.Store, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		bank:    bank,
		ledger:  ledger,
		norm:    norm,
		queue:   queue,
		journal: journal,
		metrics: m,
		logger:  logger,
	}
}

// Handle processes one webhook event. It returns nothing: the caller acks
// the event no matter what happened here.
func (d *Dispatcher) Handle(ctx context.Context, event Event) {
	raw, err := d.bank.Transaction(ctx, event.TransactionLink)
	if err != nil {
		d.logger.Error("failed to fetch transaction for event",
			"kind", event.Kind,
			"link", event.TransactionLink,
			"error", err,
		)
		d.metrics.RecordWebhookEvent(event.Kind, "fetch_error")
		return
	}

	switch event.Kind {
	case EventCreated:
		d.handleCreated(raw)
	case EventSettled:
		d.handleSettled(ctx, raw)
	case EventDeleted:
		d.handleDeleted(ctx, raw.ID)
	default:
		d.logger.Warn("ignoring unknown event kind", "kind", event.Kind)
		d.metrics.RecordWebhookEvent(event.Kind, "unknown")
	}
}

func (d *Dispatcher) handleCreated(raw *upbank.Transaction) {
	txn, err := d.norm.Normalize(raw)
	if err != nil {
		d.logger.Error("failed to normalize transaction",
			"reference", raw.ID,
			"error", err,
		)
		d.metrics.RecordWebhookEvent(EventCreated, "normalize_error")
		d.metrics.RecordNormalized("error")
		d.record(raw.ID, EventCreated, "error", err.Error())
		return
	}
	if txn == nil {
		d.logger.Debug("transaction ignored by normalizer", "reference", raw.ID)
		d.metrics.RecordWebhookEvent(EventCreated, "ignored")
		d.metrics.RecordNormalized("ignored")
		d.record(raw.ID, EventCreated, "ignored", "")
		return
	}

	d.metrics.RecordNormalized("normalized")
	if err := d.queue.Enqueue(txn); err != nil {
		d.metrics.RecordWebhookEvent(EventCreated, "dropped")
		return
	}
	d.metrics.RecordWebhookEvent(EventCreated, "queued")
	d.record(raw.ID, EventCreated, "queued", "")
}

// handleSettled rewrites the held marker out of the ledger record and
// refreshes its source name from the settled transaction. Settlement can
// change the counterpart account text, so the source name is recomputed by
// normalizing the settled detail rather than reusing the stored one.
func (d *Dispatcher) handleSettled(ctx context.Context, raw *upbank.Transaction) {
	existing, found, err := d.ledger.TransactionByReference(ctx, raw.ID)
	if err != nil {
		d.logger.Error("failed to look up ledger transaction for settlement",
			"reference", raw.ID,
			"error", err,
		)
		d.metrics.RecordWebhookEvent(EventSettled, "error")
		d.record(raw.ID, EventSettled, "error", err.Error())
		return
	}
	if !found {
		d.logger.Info("no ledger transaction to settle", "reference", raw.ID)
		d.metrics.RecordWebhookEvent(EventSettled, "not_found")
		d.record(raw.ID, EventSettled, "not_found", "")
		return
	}

	upd := firefly.TransactionUpdate{
		Description: SettledDescription(existing.Description),
		SourceName:  existing.SourceName,
	}
	if txn, err := d.norm.Normalize(raw); err == nil && txn != nil {
		upd.SourceName = txn.SourceName
	}

	if err := d.ledger.UpdateTransaction(ctx, existing.ID, upd); err != nil {
		d.logger.Error("failed to settle ledger transaction",
			"reference", raw.ID,
			"ledger_id", existing.ID,
			"error", err,
		)
		d.metrics.RecordWebhookEvent(EventSettled, "error")
		d.record(raw.ID, EventSettled, "error", err.Error())
		return
	}

	d.logger.Info("ledger transaction settled",
		"reference", raw.ID,
		"ledger_id", existing.ID,
		"description", upd.Description,
	)
	d.metrics.RecordWebhookEvent(EventSettled, "settled")
	d.record(raw.ID, EventSettled, "settled", existing.ID)
}

func (d *Dispatcher) handleDeleted(ctx context.Context, reference string) {
	id, found, err := d.ledger.FindTransactionByReference(ctx, reference)
	if err != nil {
		d.logger.Error("failed to look up ledger transaction for deletion",
			"reference", reference,
			"error", err,
		)
		d.metrics.RecordWebhookEvent(EventDeleted, "error")
		d.record(reference, EventDeleted, "error", err.Error())
		return
	}
	if !found {
		d.logger.Info("no ledger transaction to delete", "reference", reference)
		d.metrics.RecordWebhookEvent(EventDeleted, "not_found")
		d.record(reference, EventDeleted, "not_found", "")
		return
	}

	if err := d.ledger.DeleteTransaction(ctx, id); err != nil {
		d.logger.Error("failed to delete ledger transaction",
			"reference", reference,
			"ledger_id", id,
			"error", err,
		)
		d.metrics.RecordWebhookEvent(EventDeleted, "error")
		d.record(reference, EventDeleted, "error", err.Error())
		return
	}

	d.logger.Info("ledger transaction deleted", "reference", reference, "ledger_id", id)
	d.metrics.RecordWebhookEvent(EventDeleted, "deleted")
	d.record(reference, EventDeleted, "deleted", id)
}

// record appends a webhook-handling outcome to the journal, when configured.
func (d *Dispatcher) record(reference, kind, outcome, detail string) {
	if d.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := d.journal.RecordEvent(ctx, db.RecordEventParams{
		Reference: reference,
		Kind:      kind,
		Outcome:   outcome,
		Detail:    detail,
	}); err != nil {
		d.logger.Error("failed to journal webhook outcome",
			"reference", reference,
			"kind", kind,
			"error", err,
		)
	}
}
