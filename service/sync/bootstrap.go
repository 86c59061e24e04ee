// Package sync performs the startup reconciliation between the bank and the
// ledger: mirror accounts and categories into the ledger, build the id
// directory the normalizer reads, and make sure the bank delivers webhooks
// to this process.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fireup-dev/fireup/service/directory"
	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/upbank"
)

// BankClient is the subset of Up operations bootstrap needs.
type BankClient interface {
	Accounts(ctx context.Context) (map[string]upbank.Account, error)
	Categories(ctx context.Context) (map[string]string, error)
	WebhookExists(ctx context.Context, url string) (bool, error)
	CreateWebhook(ctx context.Context, url string) error
}

// LedgerClient is the subset of Firefly operations bootstrap needs.
type LedgerClient interface {
	AccountByNumber(ctx context.Context, number string) (id, name string, found bool, err error)
	CreateAccount(ctx context.Context, acct firefly.NewAccount) error
	RenameAccount(ctx context.Context, id, name string) error
	Categories(ctx context.Context) ([]string, error)
	CreateCategory(ctx context.Context, name string) error
}

// Bootstrapper aligns ledger state with the bank at startup.
type Bootstrapper struct {
	bank   BankClient
	ledger LedgerClient
	logger *slog.Logger
}

// New creates a Bootstrapper.
func New(bank BankClient, ledger LedgerClient, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{bank: bank, ledger: ledger, logger: logger}
}

// Run performs the full startup sequence and fills the directory: accounts,
// categories, webhook registration. webhookURL may be empty to skip
// registration, which is useful behind a tunnel that registers separately.
func (b *Bootstrapper) Run(ctx context.Context, dir *directory.Directory, webhookURL string) error {
	accounts, err := b.Accounts(ctx)
	if err != nil {
		return err
	}
	categories, err := b.Categories(ctx)
	if err != nil {
		return err
	}
	dir.Replace(accounts, categories)
	b.logger.Info("directory built",
		"accounts", len(accounts),
		"categories", len(categories),
	)

	if webhookURL != "" {
		if err := b.EnsureWebhook(ctx, webhookURL); err != nil {
			return err
		}
	}
	return nil
}

// Accounts mirrors every Up account into the ledger as an asset account and
// returns the id → info mapping for the directory. The Up account id is
// stored as the ledger account number, which is how existing accounts are
// found on subsequent runs; a changed display name is propagated with a
// rename.
func (b *Bootstrapper) Accounts(ctx context.Context) (map[string]directory.AccountInfo, error) {
	accounts, err := b.bank.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap accounts: %w", err)
	}

	infos := make(map[string]directory.AccountInfo, len(accounts))
	for id, acct := range accounts {
		infos[id] = directory.AccountInfo{
			Name:    acct.Name,
			Role:    acct.Role,
			Balance: acct.Balance,
		}

		ledgerID, ledgerName, found, err := b.ledger.AccountByNumber(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("bootstrap accounts: %w", err)
		}
		if !found {
			b.logger.Info("creating ledger account", "name", acct.Name, "role", acct.Role)
			if err := b.ledger.CreateAccount(ctx, firefly.NewAccount{
				Name:           acct.Name,
				AccountNumber:  id,
				Role:           acct.Role,
				OpeningBalance: acct.Balance,
			}); err != nil {
				return nil, fmt.Errorf("bootstrap accounts: %w", err)
			}
			continue
		}
		if ledgerName != acct.Name {
			b.logger.Info("renaming ledger account", "from", ledgerName, "to", acct.Name)
			if err := b.ledger.RenameAccount(ctx, ledgerID, acct.Name); err != nil {
				return nil, fmt.Errorf("bootstrap accounts: %w", err)
			}
		}
	}
	return infos, nil
}

// Categories creates every Up category missing from the ledger and returns
// the id → name mapping for the directory.
func (b *Bootstrapper) Categories(ctx context.Context) (map[string]string, error) {
	bankCats, err := b.bank.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap categories: %w", err)
	}
	ledgerCats, err := b.ledger.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap categories: %w", err)
	}

	existing := make(map[string]bool, len(ledgerCats))
	for _, name := range ledgerCats {
		existing[name] = true
	}

	for _, name := range bankCats {
		if existing[name] {
			continue
		}
		b.logger.Info("creating ledger category", "name", name)
		if err := b.ledger.CreateCategory(ctx, name); err != nil {
			return nil, fmt.Errorf("bootstrap categories: %w", err)
		}
		existing[name] = true
	}
	return bankCats, nil
}

// Refresh refetches accounts and categories and atomically swaps the
// directory snapshot. Readers see either the old snapshot or the new one,
// never a mix.
func (b *Bootstrapper) Refresh(ctx context.Context, dir *directory.Directory) error {
	accounts, err := b.Accounts(ctx)
	if err != nil {
		return err
	}
	categories, err := b.Categories(ctx)
	if err != nil {
		return err
	}
	dir.Replace(accounts, categories)
	b.logger.Info("directory refreshed",
		"accounts", len(accounts),
		"categories", len(categories),
	)
	return nil
}

// EnsureWebhook registers the webhook with the bank unless one already
// points at url.
func (b *Bootstrapper) EnsureWebhook(ctx context.Context, url string) error {
	exists, err := b.bank.WebhookExists(ctx, url)
	if err != nil {
		return fmt.Errorf("bootstrap webhook: %w", err)
	}
	if exists {
		b.logger.Info("webhook already registered", "url", url)
		return nil
	}
	b.logger.Info("registering webhook", "url", url)
	if err := b.bank.CreateWebhook(ctx, url); err != nil {
		return fmt.Errorf("bootstrap webhook: %w", err)
	}
	return nil
}
