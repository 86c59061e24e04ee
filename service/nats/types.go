package nats

import (
	"time"

	"github.com/fireup-dev/fireup/service/firefly"
)

// CommitEvent represents a ledger commit published to NATS.
// It is published to the subject "commits.{type}" in JetStream after the
// reconciliation worker successfully creates a ledger transaction.
type CommitEvent struct {
	// Identity
	Reference string `json:"reference"` // the banking provider's transaction id
	LedgerID  string `json:"ledger_id"` // the id assigned by the ledger

	// Transaction details
	Type            string `json:"type"` // deposit, withdrawal, transfer
	SourceName      string `json:"source_name"`
	DestinationName string `json:"destination_name"`
	Description     string `json:"description"`
	CategoryName    string `json:"category_name,omitempty"`
	Amount          string `json:"amount"`

	// Timing information
	Date        time.Time `json:"date"`
	PublishedAt time.Time `json:"published_at"`
}

// FromNewTransaction converts a committed normalized transaction into a
// CommitEvent for publishing.
func FromNewTransaction(txn *firefly.NewTransaction, ledgerID string) *CommitEvent {
	return &CommitEvent{
		Reference:       txn.InternalReference,
		LedgerID:        ledgerID,
		Type:            string(txn.Type),
		SourceName:      txn.SourceName,
		DestinationName: txn.DestinationName,
		Description:     txn.Description,
		CategoryName:    txn.CategoryName,
		Amount:          txn.Amount.String(),
		Date:            txn.Date,
		PublishedAt:     time.Now().UTC(),
	}
}
