package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fireup-dev/fireup/service/metrics"
)

// Client provides typed operations against the Firefly III API.
type Client struct {
	baseURL      string // "<firefly root>/api/v1"
	token        string
	currencyCode string
	http         *http.Client
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewClient creates a new Firefly client rooted at the given Firefly URL.
// currencyCode is the fixed currency for accounts created during bootstrap.
// httpClient may be nil to use a default client. If m is nil, no metrics
// will be recorded.
func NewClient(fireflyURL, token, currencyCode string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(fireflyURL, "/") + "/api/v1",
		token:        token,
		currencyCode: currencyCode,
		http:         httpClient,
		logger:       logger,
		metrics:      m,
	}
}

// Ping verifies connectivity and authentication against the Firefly API.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "about", "ping", nil, nil)
}

// FindTransactionByReference reports whether a ledger transaction with the
// given internal reference already exists, and its group id when it does.
//
// Policy: first-match-wins. Only the first search result is inspected, and
// it counts as a match only when its first split's internal reference equals
// ref exactly. Zero results means not found.
func (c *Client) FindTransactionByReference(ctx context.Context, ref string) (string, bool, error) {
	txn, found, err := c.TransactionByReference(ctx, ref)
	if err != nil || !found {
		return "", false, err
	}
	return txn.ID, true, nil
}

// TransactionByReference looks up an existing ledger transaction by internal
// reference, returning its id and first split. Same first-match-wins policy
// as FindTransactionByReference.
func (c *Client) TransactionByReference(ctx context.Context, ref string) (*Transaction, bool, error) {
	endpoint := "search/transactions?query=" + url.QueryEscape("internal_reference_is:"+ref)

	var envelope apiEnvelope[[]apiTransactionGroup]
	if err := c.call(ctx, http.MethodGet, endpoint, "search_transactions", nil, &envelope); err != nil {
		return nil, false, err
	}

	if len(envelope.Data) == 0 {
		return nil, false, nil
	}

	group := envelope.Data[0]
	if len(group.Attributes.Transactions) == 0 {
		return nil, false, nil
	}

	split := group.Attributes.Transactions[0]
	if split.InternalReference != ref {
		return nil, false, nil
	}

	return &Transaction{
		ID:                group.ID,
		Description:       split.Description,
		SourceName:        split.SourceName,
		InternalReference: split.InternalReference,
	}, true, nil
}

// CreateTransaction submits a normalized transaction and returns the new
// group id.
func (c *Client) CreateTransaction(ctx context.Context, txn *NewTransaction) (string, error) {
	payload := map[string]any{
		"transactions": []apiTransactionSplit{splitFromNew(txn)},
	}

	var envelope apiEnvelope[apiTransactionGroup]
	if err := c.call(ctx, http.MethodPost, "transactions", "create_transaction", payload, &envelope); err != nil {
		return "", err
	}
	return envelope.Data.ID, nil
}

// UpdateTransaction rewrites the description and source name of an existing
// transaction's first split.
func (c *Client) UpdateTransaction(ctx context.Context, id string, upd TransactionUpdate) error {
	payload := map[string]any{
		"transactions": []apiTransactionSplit{{
			Description: upd.Description,
			SourceName:  upd.SourceName,
		}},
	}
	return c.call(ctx, http.MethodPut, "transactions/"+id, "update_transaction", payload, nil)
}

// DeleteTransaction removes a transaction group from the ledger.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "transactions/"+id, "delete_transaction", nil, nil)
}

// Categories returns the names of all ledger categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var envelope apiEnvelope[[]apiCategory]
	if err := c.call(ctx, http.MethodGet, "categories", "categories", nil, &envelope); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(envelope.Data))
	for _, cat := range envelope.Data {
		names = append(names, cat.Attributes.Name)
	}
	return names, nil
}

// CreateCategory creates a ledger category.
func (c *Client) CreateCategory(ctx context.Context, name string) error {
	return c.call(ctx, http.MethodPost, "categories", "create_category", map[string]any{"name": name}, nil)
}

// AccountByNumber finds the asset account whose account number equals the
// given value (the Up account id stored during bootstrap). The search
// endpoint matches loosely, so the returned account number is re-checked for
// exact equality.
func (c *Client) AccountByNumber(ctx context.Context, number string) (id, name string, found bool, err error) {
	endpoint := "search/accounts?query=" + url.QueryEscape(number) + "&field=number"

	var envelope apiEnvelope[[]apiAccount]
	if err := c.call(ctx, http.MethodGet, endpoint, "search_accounts", nil, &envelope); err != nil {
		return "", "", false, err
	}

	if len(envelope.Data) == 0 {
		return "", "", false, nil
	}

	acct := envelope.Data[0]
	if acct.Attributes.AccountNumber != number {
		return "", "", false, nil
	}
	return acct.ID, acct.Attributes.Name, true, nil
}

// CreateAccount creates an asset account in the fixed ledger currency, with
// the opening balance dated today.
func (c *Client) CreateAccount(ctx context.Context, acct NewAccount) error {
	payload := map[string]any{
		"name":                 acct.Name,
		"account_number":       acct.AccountNumber,
		"account_role":         acct.Role,
		"opening_balance":      acct.OpeningBalance.String(),
		"opening_balance_date": time.Now().Format("2006-01-02"),
		"type":                 "asset",
		"currency_code":        c.currencyCode,
	}
	return c.call(ctx, http.MethodPost, "accounts", "create_account", payload, nil)
}

// RenameAccount updates an account's display name.
func (c *Client) RenameAccount(ctx context.Context, id, name string) error {
	return c.call(ctx, http.MethodPut, "accounts/"+id, "rename_account", map[string]any{"name": name}, nil)
}

// splitFromNew converts a normalized transaction into its wire split.
func splitFromNew(txn *NewTransaction) apiTransactionSplit {
	return apiTransactionSplit{
		Type:              string(txn.Type),
		Date:              txn.Date.Format(time.RFC3339),
		Amount:            txn.Amount.String(),
		Description:       txn.Description,
		SourceName:        txn.SourceName,
		DestinationName:   txn.DestinationName,
		CategoryName:      txn.CategoryName,
		InternalReference: txn.InternalReference,
		Tags:              txn.Tags,
	}
}

// call performs an authenticated request against the Firefly API. payload
// may be nil for bodyless requests; out may be nil when the response body is
// irrelevant.
func (c *Client) call(ctx context.Context, method, endpoint, operation string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("firefly %s: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, body)
	if err != nil {
		return fmt.Errorf("firefly %s: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRemoteCall("firefly", operation, status, duration)

	if err != nil {
		return fmt.Errorf("firefly %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("firefly api returned error status",
			"operation", operation,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return fmt.Errorf("firefly %s: unexpected status %d", operation, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("firefly %s: decode response: %w", operation, err)
	}
	return nil
}
