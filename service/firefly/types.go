package firefly

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
)

// NewTransaction is the normalized record submitted to the ledger.
// InternalReference is the banking provider's transaction id and the sole
// de-duplication key: a record with a given reference is committed at most
// once.
type NewTransaction struct {
	Type              TransactionType
	SourceName        string
	DestinationName   string
	Description       string
	InternalReference string
	CategoryName      string // empty means uncategorized
	Tags              []string
	Date              time.Time
	Amount            decimal.Decimal // unsigned
}

// Transaction is an existing ledger transaction, reduced to the fields the
// relay reads back: the group id plus its first split.
type Transaction struct {
	ID                string
	Description       string
	SourceName        string
	InternalReference string
}

// TransactionUpdate is a partial rewrite of an existing transaction's first
// split, used when a held transaction settles.
type TransactionUpdate struct {
	Description string
	SourceName  string
}

// NewAccount describes an asset account to create during bootstrap sync.
// The account number carries the Up account id so the two systems can be
// correlated later.
type NewAccount struct {
	Name           string
	AccountNumber  string
	Role           string
	OpeningBalance decimal.Decimal
}

// Wire types. Firefly wraps responses in a {"data": ...} envelope.

type apiEnvelope[T any] struct {
	Data T `json:"data"`
}

type apiTransactionGroup struct {
	ID         string `json:"id"`
	Attributes struct {
		Transactions []apiTransactionSplit `json:"transactions"`
	} `json:"attributes"`
}

type apiTransactionSplit struct {
	Type              string   `json:"type,omitempty"`
	Date              string   `json:"date,omitempty"`
	Amount            string   `json:"amount,omitempty"`
	Description       string   `json:"description,omitempty"`
	SourceName        string   `json:"source_name,omitempty"`
	DestinationName   string   `json:"destination_name,omitempty"`
	CategoryName      string   `json:"category_name,omitempty"`
	InternalReference string   `json:"internal_reference,omitempty"`
	Tags              []string `json:"tags,omitempty"`
}

type apiAccount struct {
	ID         string `json:"id"`
	Attributes struct {
		Name          string `json:"name"`
		AccountNumber string `json:"account_number"`
	} `json:"attributes"`
}

type apiCategory struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
}
