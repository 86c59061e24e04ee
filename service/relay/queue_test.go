package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/nats"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger implements LedgerClient in memory. Committed references act as
// the ledger state: FindTransactionByReference reports them, and
// CreateTransaction appends to them.
type fakeLedger struct {
	mu        sync.Mutex
	committed map[string]string // reference -> ledger id
	existing  map[string]*firefly.Transaction
	calls     []string
	nextID    int

	findErr   error
	createErr error
	updateErr error
	deleteErr error
	updates   map[string]firefly.TransactionUpdate
	deleted   []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		committed: make(map[string]string),
		existing:  make(map[string]*firefly.Transaction),
		updates:   make(map[string]firefly.TransactionUpdate),
	}
}

func (f *fakeLedger) FindTransactionByReference(ctx context.Context, ref string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "find:"+ref)
	if f.findErr != nil {
		return "", false, f.findErr
	}
	id, ok := f.committed[ref]
	return id, ok, nil
}

func (f *fakeLedger) TransactionByReference(ctx context.Context, ref string) (*firefly.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "lookup:"+ref)
	if f.findErr != nil {
		return nil, false, f.findErr
	}
	txn, ok := f.existing[ref]
	return txn, ok, nil
}

func (f *fakeLedger) CreateTransaction(ctx context.Context, txn *firefly.NewTransaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create:"+txn.InternalReference)
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("ff-%d", f.nextID)
	f.committed[txn.InternalReference] = id
	return id, nil
}

func (f *fakeLedger) UpdateTransaction(ctx context.Context, id string, upd firefly.TransactionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update:"+id)
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = upd
	return nil
}

func (f *fakeLedger) DeleteTransaction(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeLedger) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLedger) committedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func newEntry(ref string) *firefly.NewTransaction {
	return &firefly.NewTransaction{
		Type:              firefly.TypeWithdrawal,
		SourceName:        "Spending",
		DestinationName:   "7-Eleven",
		Description:       "7-Eleven",
		InternalReference: ref,
		Tags:              []string{MarkerTag},
		Date:              time.Now(),
		Amount:            decimal.RequireFromString("12.50"),
	}
}

func startQueue(t *testing.T, ledger LedgerClient, publisher nats.Publisher) *Queue {
	t.Helper()
	q := NewQueue(ledger, 16, time.Second, publisher, nil, nil, testLogger())
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		q.Shutdown(ctx)
	})
	return q
}

func drain(t *testing.T, q *Queue, ledger *fakeLedger, wantCalls int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.Depth() == 0 && len(ledger.callLog()) >= wantCalls {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queue did not drain; calls: %v", ledger.callLog())
}

func TestQueue_CommitsOnce(t *testing.T) {
	ledger := newFakeLedger()
	q := startQueue(t, ledger, nil)

	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	drain(t, q, ledger, 3)

	// One create despite two enqueues of the same reference.
	assert.Equal(t, []string{"find:txn-1", "create:txn-1", "find:txn-1"}, ledger.callLog())
	assert.Equal(t, 1, ledger.committedCount())
}

func TestQueue_ArrivalOrderPreserved(t *testing.T) {
	ledger := newFakeLedger()
	q := startQueue(t, ledger, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(newEntry(fmt.Sprintf("txn-%d", i))))
	}
	drain(t, q, ledger, 10)

	// Strictly single-lane: the check and create for each entry complete
	// before the next entry's check begins.
	want := []string{}
	for i := 0; i < 5; i++ {
		want = append(want, fmt.Sprintf("find:txn-%d", i), fmt.Sprintf("create:txn-%d", i))
	}
	assert.Equal(t, want, ledger.callLog())
}

func TestQueue_SkipsExistingReference(t *testing.T) {
	ledger := newFakeLedger()
	ledger.committed["txn-1"] = "ff-99"
	q := startQueue(t, ledger, nil)

	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	drain(t, q, ledger, 1)

	assert.Equal(t, []string{"find:txn-1"}, ledger.callLog())
}

func TestQueue_WorkerSurvivesCheckFailure(t *testing.T) {
	ledger := newFakeLedger()
	ledger.findErr = errors.New("ledger unavailable")
	q := startQueue(t, ledger, nil)

	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	drain(t, q, ledger, 1)

	// Clear the failure and verify the worker still processes new entries.
	ledger.mu.Lock()
	ledger.findErr = nil
	ledger.mu.Unlock()

	require.NoError(t, q.Enqueue(newEntry("txn-2")))
	drain(t, q, ledger, 3)

	assert.Equal(t, []string{"find:txn-1", "find:txn-2", "create:txn-2"}, ledger.callLog())
	assert.Equal(t, 1, ledger.committedCount())
}

func TestQueue_WorkerSurvivesCreateFailure(t *testing.T) {
	ledger := newFakeLedger()
	ledger.createErr = errors.New("ledger unavailable")
	q := startQueue(t, ledger, nil)

	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	drain(t, q, ledger, 2)

	ledger.mu.Lock()
	ledger.createErr = nil
	ledger.mu.Unlock()

	require.NoError(t, q.Enqueue(newEntry("txn-2")))
	drain(t, q, ledger, 4)

	assert.Equal(t, 1, ledger.committedCount())
}

func TestQueue_EnqueueDropsWhenFull(t *testing.T) {
	ledger := newFakeLedger()
	q := NewQueue(ledger, 1, time.Second, nil, nil, nil, testLogger())
	// Worker not started: the buffer fills immediately.

	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	err := q.Enqueue(newEntry("txn-2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
	assert.Equal(t, 1, q.Depth())
}

func TestQueue_PublishesCommitEvent(t *testing.T) {
	ledger := newFakeLedger()
	publisher := nats.NewMockPublisher()
	q := startQueue(t, ledger, publisher)

	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	drain(t, q, ledger, 2)

	events := publisher.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "txn-1", events[0].Reference)
	assert.Equal(t, "ff-1", events[0].LedgerID)
	assert.Equal(t, "withdrawal", events[0].Type)
	assert.Equal(t, "12.5", events[0].Amount)
}

func TestQueue_PublishFailureDoesNotAffectCommit(t *testing.T) {
	ledger := newFakeLedger()
	publisher := nats.NewMockPublisher()
	publisher.SetPublishError(errors.New("nats down"))
	q := startQueue(t, ledger, publisher)

	require.NoError(t, q.Enqueue(newEntry("txn-1")))
	drain(t, q, ledger, 2)

	assert.Equal(t, 1, ledger.committedCount())
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestQueue_ShutdownStopsWorker(t *testing.T) {
	ledger := newFakeLedger()
	q := NewQueue(ledger, 16, time.Second, nil, nil, nil, testLogger())
	q.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	// Shutdown is idempotent.
	require.NoError(t, q.Shutdown(ctx))
}
