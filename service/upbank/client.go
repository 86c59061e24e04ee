package upbank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fireup-dev/fireup/service/metrics"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the production Up API base URL.
const DefaultBaseURL = "https://api.up.com.au/api/v1"

// Client provides typed operations against the Up Bank API.
// It wraps a plain HTTP transport with domain-specific operations.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new Up client. baseURL may be empty to use the
// production API. httpClient may be nil to use a default client; tests
// inject their own. If m is nil, no metrics will be recorded.
func NewClient(baseURL, token string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger,
		metrics: m,
	}
}

// Ping verifies connectivity and authentication against the Up API.
func (c *Client) Ping(ctx context.Context) error {
	return c.getJSON(ctx, "ping", c.baseURL+"/util/ping", nil)
}

// Accounts fetches all accounts keyed by Up account id. Display names have
// emoji stripped and leading spaces trimmed so they are usable as ledger
// account names.
func (c *Client) Accounts(ctx context.Context) (map[string]Account, error) {
	var envelope apiEnvelope[[]apiAccount]
	if err := c.getJSON(ctx, "accounts", c.baseURL+"/accounts", &envelope); err != nil {
		return nil, err
	}

	accounts := make(map[string]Account, len(envelope.Data))
	for _, a := range envelope.Data {
		balance, err := decimal.NewFromString(a.Attributes.Balance.Value)
		if err != nil {
			return nil, fmt.Errorf("account %s: invalid balance %q: %w", a.ID, a.Attributes.Balance.Value, err)
		}

		role := RoleDefaultAsset
		if a.Attributes.AccountType == "SAVER" {
			role = RoleSavingAsset
		}

		accounts[a.ID] = Account{
			Name:    strings.TrimLeft(stripEmoji(a.Attributes.DisplayName), " "),
			Role:    role,
			Balance: balance,
		}
	}

	c.logger.DebugContext(ctx, "fetched up accounts", "count", len(accounts))
	return accounts, nil
}

// Categories fetches all child categories keyed by Up category id.
// Top-level parent categories are groupings, not assignable categories,
// and are skipped.
func (c *Client) Categories(ctx context.Context) (map[string]string, error) {
	var envelope apiEnvelope[[]apiCategory]
	if err := c.getJSON(ctx, "categories", c.baseURL+"/categories", &envelope); err != nil {
		return nil, err
	}

	categories := make(map[string]string)
	for _, cat := range envelope.Data {
		if cat.Relationships.Parent.Data == nil {
			continue
		}
		categories[cat.ID] = cat.Attributes.Name
	}

	c.logger.DebugContext(ctx, "fetched up categories", "count", len(categories))
	return categories, nil
}

// Transaction fetches the raw transaction behind a webhook event's
// related-transaction link. The link is absolute, as delivered by Up.
func (c *Client) Transaction(ctx context.Context, link string) (*Transaction, error) {
	var envelope apiEnvelope[apiTransaction]
	if err := c.getJSON(ctx, "transaction", link, &envelope); err != nil {
		return nil, err
	}
	return transactionToDomain(&envelope.Data)
}

// WebhookExists reports whether a webhook with the given delivery URL is
// already registered.
func (c *Client) WebhookExists(ctx context.Context, url string) (bool, error) {
	var envelope apiEnvelope[[]apiWebhook]
	if err := c.getJSON(ctx, "webhooks", c.baseURL+"/webhooks", &envelope); err != nil {
		return false, err
	}
	for _, wh := range envelope.Data {
		if wh.Attributes.URL == url {
			return true, nil
		}
	}
	return false, nil
}

// CreateWebhook registers a webhook delivering to the given URL.
func (c *Client) CreateWebhook(ctx context.Context, url string) error {
	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"url":         url,
				"description": "FireUp",
			},
		},
	}
	return c.postJSON(ctx, "create_webhook", c.baseURL+"/webhooks", payload)
}

// transactionToDomain converts a wire transaction into the domain type.
func transactionToDomain(t *apiTransaction) (*Transaction, error) {
	amount, err := decimal.NewFromString(t.Attributes.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid amount %q: %w", t.ID, t.Attributes.Amount.Value, err)
	}

	txn := &Transaction{
		ID:           t.ID,
		Description:  t.Attributes.Description,
		Status:       t.Attributes.Status,
		Amount:       amount,
		CurrencyCode: t.Attributes.Amount.CurrencyCode,
		CreatedAt:    t.Attributes.CreatedAt,
	}

	if t.Attributes.RawText != nil {
		txn.RawText = *t.Attributes.RawText
	}
	if t.Attributes.Message != nil {
		txn.Message = *t.Attributes.Message
	}
	if t.Attributes.ForeignAmount != nil {
		txn.ForeignAmount = &Money{
			Value:        t.Attributes.ForeignAmount.Value,
			CurrencyCode: t.Attributes.ForeignAmount.CurrencyCode,
		}
	}
	if t.Relationships.Account.Data != nil {
		txn.AccountID = t.Relationships.Account.Data.ID
	}
	if t.Relationships.TransferAccount.Data != nil {
		txn.TransferAccountID = t.Relationships.TransferAccount.Data.ID
	}
	if t.Relationships.Category.Data != nil {
		txn.CategoryID = t.Relationships.Category.Data.ID
	}

	return txn, nil
}

// getJSON performs an authenticated GET and decodes the response into out.
// out may be nil when only the status matters.
func (c *Client) getJSON(ctx context.Context, operation, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("up %s: %w", operation, err)
	}
	return c.do(req, operation, out)
}

// postJSON performs an authenticated POST with a JSON body.
func (c *Client) postJSON(ctx context.Context, operation, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("up %s: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("up %s: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, operation, nil)
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRemoteCall("upbank", operation, status, duration)

	if err != nil {
		return fmt.Errorf("up %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("up api returned error status",
			"operation", operation,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return fmt.Errorf("up %s: unexpected status %d", operation, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("up %s: decode response: %w", operation, err)
	}
	return nil
}
