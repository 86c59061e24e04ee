package relay

import (
	"context"

	"github.com/fireup-dev/fireup/service/directory"
	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/upbank"
)

// Event kinds delivered by the banking provider's webhook stream.
const (
	EventCreated = "TRANSACTION_CREATED"
	EventSettled = "TRANSACTION_SETTLED"
	EventDeleted = "TRANSACTION_DELETED"
)

// Event is one inbound webhook notification: what happened and where to
// fetch the transaction detail.
type Event struct {
	Kind            string
	TransactionLink string
}

// BankClient fetches provider-native transaction detail.
type BankClient interface {
	Transaction(ctx context.Context, link string) (*upbank.Transaction, error)
}

// LedgerClient is the subset of ledger operations the relay performs.
type LedgerClient interface {
	FindTransactionByReference(ctx context.Context, ref string) (string, bool, error)
	TransactionByReference(ctx context.Context, ref string) (*firefly.Transaction, bool, error)
	CreateTransaction(ctx context.Context, txn *firefly.NewTransaction) (string, error)
	UpdateTransaction(ctx context.Context, id string, upd firefly.TransactionUpdate) error
	DeleteTransaction(ctx context.Context, id string) error
}

// AccountResolver maps provider account and category ids to ledger names.
type AccountResolver interface {
	ResolveAccount(id string) (directory.AccountInfo, bool)
	ResolveCategory(id string) (string, bool)
}
