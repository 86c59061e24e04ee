package upbank

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts", r.URL.Path)
		assert.Equal(t, "Bearer up-token", r.Header.Get("Authorization"))
		io.WriteString(w, `{"data":[
			{"id":"acct-1","attributes":{"displayName":"💰 Savings","accountType":"SAVER","balance":{"value":"1250.00","currencyCode":"AUD"}}},
			{"id":"acct-2","attributes":{"displayName":"Spending","accountType":"TRANSACTIONAL","balance":{"value":"-3.50","currencyCode":"AUD"}}}
		]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "up-token", srv.Client(), nil, testLogger())
	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	saver := accounts["acct-1"]
	assert.Equal(t, "Savings", saver.Name, "emoji and leading space stripped")
	assert.Equal(t, RoleSavingAsset, saver.Role)
	assert.True(t, saver.Balance.Equal(decimal.RequireFromString("1250.00")))

	spending := accounts["acct-2"]
	assert.Equal(t, "Spending", spending.Name)
	assert.Equal(t, RoleDefaultAsset, spending.Role)
}

func TestCategories_SkipsParentCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories", r.URL.Path)
		io.WriteString(w, `{"data":[
			{"id":"good-life","attributes":{"name":"Good Life"},"relationships":{"parent":{"data":null}}},
			{"id":"booze","attributes":{"name":"Booze"},"relationships":{"parent":{"data":{"id":"good-life"}}}},
			{"id":"takeaway","attributes":{"name":"Takeaway"},"relationships":{"parent":{"data":{"id":"good-life"}}}}
		]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "up-token", srv.Client(), nil, testLogger())
	categories, err := client.Categories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"booze":    "Booze",
		"takeaway": "Takeaway",
	}, categories)
}

func TestTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/txn-1", r.URL.Path)
		io.WriteString(w, `{"data":{
			"id":"txn-1",
			"attributes":{
				"description":"Transfer from Spending",
				"rawText":"TRANSFER 123",
				"message":"lunch",
				"status":"HELD",
				"amount":{"value":"-12.50","currencyCode":"AUD"},
				"foreignAmount":{"value":"10.00","currencyCode":"USD"},
				"createdAt":"2024-05-01T10:30:00+10:00"
			},
			"relationships":{
				"account":{"data":{"id":"acct-1"}},
				"transferAccount":{"data":{"id":"acct-2"}},
				"category":{"data":{"id":"takeaway"}}
			}
		}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "up-token", srv.Client(), nil, testLogger())
	txn, err := client.Transaction(context.Background(), srv.URL+"/transactions/txn-1")
	require.NoError(t, err)

	assert.Equal(t, "txn-1", txn.ID)
	assert.Equal(t, "acct-1", txn.AccountID)
	assert.Equal(t, "acct-2", txn.TransferAccountID)
	assert.Equal(t, "Transfer from Spending", txn.Description)
	assert.Equal(t, "TRANSFER 123", txn.RawText)
	assert.Equal(t, "lunch", txn.Message)
	assert.True(t, txn.Held())
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("-12.50")))
	assert.Equal(t, "AUD", txn.CurrencyCode)
	require.NotNil(t, txn.ForeignAmount)
	assert.Equal(t, "10.00", txn.ForeignAmount.Value)
	assert.Equal(t, "USD", txn.ForeignAmount.CurrencyCode)
	assert.Equal(t, "takeaway", txn.CategoryID)
	assert.Equal(t, 2024, txn.CreatedAt.Year())
}

func TestTransaction_OptionalFieldsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{
			"id":"txn-2",
			"attributes":{
				"description":"7-Eleven",
				"rawText":null,
				"message":null,
				"status":"SETTLED",
				"amount":{"value":"-4.00","currencyCode":"AUD"},
				"foreignAmount":null,
				"createdAt":"2024-05-01T10:30:00+10:00"
			},
			"relationships":{
				"account":{"data":{"id":"acct-1"}},
				"transferAccount":{"data":null},
				"category":{"data":null}
			}
		}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "up-token", srv.Client(), nil, testLogger())
	txn, err := client.Transaction(context.Background(), srv.URL+"/transactions/txn-2")
	require.NoError(t, err)

	assert.Empty(t, txn.TransferAccountID)
	assert.Empty(t, txn.RawText)
	assert.Empty(t, txn.Message)
	assert.Empty(t, txn.CategoryID)
	assert.Nil(t, txn.ForeignAmount)
	assert.False(t, txn.Held())
}

func TestTransaction_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-token", srv.Client(), nil, testLogger())
	_, err := client.Transaction(context.Background(), srv.URL+"/transactions/txn-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")
}

func TestWebhookExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[
			{"id":"wh-1","attributes":{"url":"https://other.example.com/hook","description":"other"}},
			{"id":"wh-2","attributes":{"url":"https://relay.example.com/webhook","description":"FireUp"}}
		]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "up-token", srv.Client(), nil, testLogger())

	exists, err := client.WebhookExists(context.Background(), "https://relay.example.com/webhook")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.WebhookExists(context.Background(), "https://missing.example.com/webhook")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhooks", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "up-token", srv.Client(), nil, testLogger())
	require.NoError(t, client.CreateWebhook(context.Background(), "https://relay.example.com/webhook"))

	data := got["data"].(map[string]any)
	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, "https://relay.example.com/webhook", attrs["url"])
	assert.Equal(t, "FireUp", attrs["description"])
}

func TestStripEmoji(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"💰 Savings", " Savings"},
		{"Spending", "Spending"},
		{"🏠🔑 House Deposit", " House Deposit"},
		{"Rainy Day ☔", "Rainy Day "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripEmoji(tt.in))
	}
}
