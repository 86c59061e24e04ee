package upbank

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses reported by the Up API.
const (
	StatusHeld    = "HELD"
	StatusSettled = "SETTLED"
)

// Account roles in Firefly terms, derived from the Up account type.
const (
	RoleSavingAsset  = "savingAsset"
	RoleDefaultAsset = "defaultAsset"
)

// Account is an Up account as the relay needs it: a display name with
// emoji stripped, a ledger role, and the current balance.
type Account struct {
	Name    string
	Role    string
	Balance decimal.Decimal
}

// Money is an amount with its currency code. The value is kept as the
// provider's string representation for display purposes.
type Money struct {
	Value        string
	CurrencyCode string
}

// Transaction is the provider-native transaction detail fetched on demand.
// It is immutable once fetched and never persisted by the relay.
type Transaction struct {
	ID                string
	AccountID         string
	TransferAccountID string // empty when the transaction is not a transfer
	Description       string
	RawText           string
	Message           string
	Status            string // HELD or SETTLED
	Amount            decimal.Decimal
	CurrencyCode      string
	ForeignAmount     *Money // nil when there is no foreign leg
	CategoryID        string // empty when uncategorized
	CreatedAt         time.Time
}

// Held reports whether the transaction funds are reserved but not settled.
func (t *Transaction) Held() bool {
	return t.Status == StatusHeld
}

// Wire types. The Up API wraps everything in a JSON:API style envelope.

type apiEnvelope[T any] struct {
	Data T `json:"data"`
}

type apiRelationship struct {
	Data *apiResourceID `json:"data"`
}

type apiResourceID struct {
	ID string `json:"id"`
}

type apiMoney struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currencyCode"`
}

type apiAccount struct {
	ID         string `json:"id"`
	Attributes struct {
		DisplayName string   `json:"displayName"`
		AccountType string   `json:"accountType"`
		Balance     apiMoney `json:"balance"`
	} `json:"attributes"`
}

type apiCategory struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
	Relationships struct {
		Parent apiRelationship `json:"parent"`
	} `json:"relationships"`
}

type apiTransaction struct {
	ID         string `json:"id"`
	Attributes struct {
		Description   string    `json:"description"`
		RawText       *string   `json:"rawText"`
		Message       *string   `json:"message"`
		Status        string    `json:"status"`
		Amount        apiMoney  `json:"amount"`
		ForeignAmount *apiMoney `json:"foreignAmount"`
		CreatedAt     time.Time `json:"createdAt"`
	} `json:"attributes"`
	Relationships struct {
		Account         apiRelationship `json:"account"`
		TransferAccount apiRelationship `json:"transferAccount"`
		Category        apiRelationship `json:"category"`
	} `json:"relationships"`
}

type apiWebhook struct {
	ID         string `json:"id"`
	Attributes struct {
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"attributes"`
}
