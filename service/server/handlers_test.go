package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fireup-dev/fireup/service/directory"
	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/relay"
	"github.com/fireup-dev/fireup/service/upbank"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBank struct {
	txn   *upbank.Transaction
	links []string
}

func (s *stubBank) Transaction(ctx context.Context, link string) (*upbank.Transaction, error) {
	s.links = append(s.links, link)
	return s.txn, nil
}

type stubLedger struct{}

func (stubLedger) FindTransactionByReference(ctx context.Context, ref string) (string, bool, error) {
	return "", false, nil
}
func (stubLedger) TransactionByReference(ctx context.Context, ref string) (*firefly.Transaction, bool, error) {
	return nil, false, nil
}
func (stubLedger) CreateTransaction(ctx context.Context, txn *firefly.NewTransaction) (string, error) {
	return "ff-1", nil
}
func (stubLedger) UpdateTransaction(ctx context.Context, id string, upd firefly.TransactionUpdate) error {
	return nil
}
func (stubLedger) DeleteTransaction(ctx context.Context, id string) error {
	return nil
}

func newTestHandler(bank *stubBank) (http.Handler, *relay.Queue) {
	dir := directory.New()
	dir.Replace(map[string]directory.AccountInfo{
		"acct-1": {Name: "Spending", Role: upbank.RoleDefaultAsset},
	}, nil)

	// Worker deliberately not started so enqueued entries stay visible.
	queue := relay.NewQueue(stubLedger{}, 16, time.Second, nil, nil, nil, testLogger())
	dispatcher := relay.NewDispatcher(bank, stubLedger{}, relay.NewNormalizer(dir), queue, nil, nil, testLogger())
	return handleWebhook(dispatcher, testLogger()), queue
}

func createdPayload() string {
	return `{
		"data": {
			"attributes": {"eventType": "TRANSACTION_CREATED"},
			"relationships": {
				"transaction": {"links": {"related": "https://api.up.com.au/api/v1/transactions/txn-1"}}
			}
		}
	}`
}

func TestHandleWebhook_CreatedEventEnqueued(t *testing.T) {
	bank := &stubBank{txn: &upbank.Transaction{
		ID:          "txn-1",
		AccountID:   "acct-1",
		Description: "7-Eleven",
		Status:      upbank.StatusSettled,
		Amount:      decimal.RequireFromString("-12.50"),
		CreatedAt:   time.Now(),
	}}
	handler, queue := newTestHandler(bank)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(createdPayload()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bank.links, 1)
	assert.Equal(t, "https://api.up.com.au/api/v1/transactions/txn-1", bank.links[0])
	assert.Equal(t, 1, queue.Depth())
}

func TestHandleWebhook_MalformedPayloadStillAcked(t *testing.T) {
	bank := &stubBank{}
	handler, queue := newTestHandler(bank)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bank.links)
	assert.Equal(t, 0, queue.Depth())
}

func TestHandleWebhook_MissingEventTypeStillAcked(t *testing.T) {
	bank := &stubBank{}
	handler, _ := newTestHandler(bank)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"data":{}}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bank.links)
}

func TestHandleWebhook_PingAckedWithoutFetch(t *testing.T) {
	bank := &stubBank{}
	handler, _ := newTestHandler(bank)

	payload := `{"data":{"attributes":{"eventType":"PING"}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bank.links)
}
