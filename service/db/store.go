package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for the event journal.
// The journal is an audit trail: one row per webhook event received and per
// reconciliation outcome, preserving arrival order. It is optional: a nil
// *Store disables journaling everywhere it is injected.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EventRecord is one journal row.
type EventRecord struct {
	ID        uuid.UUID
	Reference string // the banking provider's transaction id
	Kind      string // webhook event kind, or "reconcile" for worker outcomes
	Outcome   string // received, queued, ignored, committed, duplicate, dropped, error, ...
	Detail    string // free-form context, e.g. the error message
	CreatedAt time.Time
}

// RecordEventParams contains the parameters for recording a journal row.
type RecordEventParams struct {
	Reference string
	Kind      string
	Outcome   string
	Detail    string
}

// EnsureSchema creates the journal table if it does not exist.
// The schema is small enough that embedded DDL beats a migration toolchain.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS event_journal (
			id         UUID PRIMARY KEY,
			reference  TEXT NOT NULL,
			kind       TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS event_journal_reference_idx ON event_journal (reference);
		CREATE INDEX IF NOT EXISTS event_journal_created_at_idx ON event_journal (created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure journal schema: %w", err)
	}
	return nil
}

// RecordEvent appends a row to the journal.
func (s *Store) RecordEvent(ctx context.Context, params RecordEventParams) (*EventRecord, error) {
	record := &EventRecord{
		ID:        uuid.New(),
		Reference: params.Reference,
		Kind:      params.Kind,
		Outcome:   params.Outcome,
		Detail:    params.Detail,
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO event_journal (id, reference, kind, outcome, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, record.ID, record.Reference, record.Kind, record.Outcome, record.Detail)

	if err := row.Scan(&record.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to record event: %w", err)
	}
	return record, nil
}

// ListEventsParams contains pagination parameters.
type ListEventsParams struct {
	Reference string // empty lists all references
	Limit     int32
	Offset    int32
}

// ListEvents retrieves journal rows, newest first.
func (s *Store) ListEvents(ctx context.Context, params ListEventsParams) ([]*EventRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, reference, kind, outcome, detail, created_at
		FROM event_journal
		WHERE ($1 = '' OR reference = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, params.Reference, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var records []*EventRecord
	for rows.Next() {
		record := &EventRecord{}
		if err := rows.Scan(&record.ID, &record.Reference, &record.Kind, &record.Outcome, &record.Detail, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// OutcomeCounts returns the number of journal rows per outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT outcome, count(*)
		FROM event_journal
		GROUP BY outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}
