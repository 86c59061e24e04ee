package relay

import (
	"fmt"
	"strings"

	"github.com/fireup-dev/fireup/service/firefly"
	"github.com/fireup-dev/fireup/service/upbank"
)

// MarkerTag identifies ledger records created by this pipeline.
const MarkerTag = "FireUp"

// heldPrefix marks a transfer whose funds are reserved but not yet settled.
// SettledDescription strips it again when the settlement event arrives.
const heldPrefix = "[HELD] "

// transferRule labels a transfer by its provider description. Rules are
// checked in order; the first match wins. A suppressing rule means the
// transaction is the counterpart leg of a transfer already recorded from the
// other account's perspective, so recording it would duplicate.
type transferRule struct {
	prefix   string
	exact    bool
	label    string
	suppress bool
}

var transferRules = []transferRule{
	{prefix: "Quick save transfer to", suppress: true},
	{prefix: "Transfer to", suppress: true},
	{prefix: "Quick save transfer from", label: "Quick Save"},
	{prefix: "Transfer from", label: "Transfer"},
	{prefix: "Round Up", exact: true, label: "Round Up"},
	{prefix: "Cover from", label: "Cover"},
}

// Normalizer converts provider transactions into ledger records.
type Normalizer struct {
	resolver AccountResolver
}

// NewNormalizer creates a Normalizer backed by the given directory.
func NewNormalizer(resolver AccountResolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Normalize converts a raw provider transaction into the record to submit to
// the ledger. A (nil, nil) return means the transaction must not be recorded:
// either a zero-amount entry or the duplicate leg of an internal transfer.
func (n *Normalizer) Normalize(raw *upbank.Transaction) (*firefly.NewTransaction, error) {
	acct, ok := n.resolver.ResolveAccount(raw.AccountID)
	if !ok {
		return nil, fmt.Errorf("normalize %s: unknown account %q", raw.ID, raw.AccountID)
	}

	txn := &firefly.NewTransaction{
		InternalReference: raw.ID,
		Date:              raw.CreatedAt,
		Amount:            raw.Amount.Abs(),
		Tags:              []string{MarkerTag},
	}
	if raw.CategoryID != "" {
		if name, ok := n.resolver.ResolveCategory(raw.CategoryID); ok {
			txn.CategoryName = name
		}
	}

	if raw.TransferAccountID == "" {
		switch raw.Amount.Sign() {
		case 1:
			txn.Type = firefly.TypeDeposit
			txn.SourceName = raw.Description
			txn.DestinationName = acct.Name
		case -1:
			txn.Type = firefly.TypeWithdrawal
			txn.SourceName = acct.Name
			txn.DestinationName = raw.Description
		default:
			return nil, nil
		}
		txn.Description = raw.Description
		return txn, nil
	}

	transferAcct, ok := n.resolver.ResolveAccount(raw.TransferAccountID)
	if !ok {
		return nil, fmt.Errorf("normalize %s: unknown transfer account %q", raw.ID, raw.TransferAccountID)
	}

	label, suppress := transferLabel(raw)
	if suppress {
		return nil, nil
	}

	txn.Type = firefly.TypeTransfer
	txn.SourceName = transferAcct.Name
	txn.DestinationName = acct.Name
	txn.Description = transferDescription(raw, label)
	if label != "" {
		txn.Tags = append(txn.Tags, label)
	}
	return txn, nil
}

// transferLabel resolves the short label for a transfer from the rule table,
// falling back to the provider's raw text when no rule matches.
func transferLabel(raw *upbank.Transaction) (label string, suppress bool) {
	for _, rule := range transferRules {
		if rule.exact {
			if raw.Description != rule.prefix {
				continue
			}
		} else if !strings.HasPrefix(raw.Description, rule.prefix) {
			continue
		}
		return rule.label, rule.suppress
	}
	return raw.RawText, false
}

// transferDescription composes the ledger description for a transfer:
// optional held marker, label, parenthesized message, foreign amount.
// The message is parenthesized only when there is a label to set it off from.
func transferDescription(raw *upbank.Transaction, label string) string {
	desc := label
	if raw.Held() {
		desc = heldPrefix + label
	}
	if raw.Message != "" {
		msg := raw.Message
		if label != "" {
			msg = "(" + msg + ")"
		}
		desc = desc + " " + msg
	}
	if raw.ForeignAmount != nil {
		desc = desc + " " + raw.ForeignAmount.Value + " " + raw.ForeignAmount.CurrencyCode
	}
	return desc
}

// SettledDescription rewrites a held transaction's ledger description once
// it settles.
func SettledDescription(desc string) string {
	return strings.TrimPrefix(desc, heldPrefix)
}
