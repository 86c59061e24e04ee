// Package directory holds the in-memory snapshot mapping Up account and
// category ids to their ledger names. It is built during bootstrap sync and
// read on every webhook; refreshes swap in a complete new snapshot
// atomically so concurrent readers never observe a partially built mapping.
package directory

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// AccountInfo is what the relay knows about one Up account.
type AccountInfo struct {
	Name    string
	Role    string
	Balance decimal.Decimal
}

// Directory resolves provider ids to ledger names with O(1) lookups.
// The zero value is empty and usable.
type Directory struct {
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	accounts   map[string]AccountInfo
	categories map[string]string
}

// New creates an empty Directory.
func New() *Directory {
	d := &Directory{}
	d.snap.Store(&snapshot{
		accounts:   map[string]AccountInfo{},
		categories: map[string]string{},
	})
	return d
}

// Replace swaps in a complete new snapshot. The maps are owned by the
// Directory after the call and must not be mutated by the caller.
func (d *Directory) Replace(accounts map[string]AccountInfo, categories map[string]string) {
	if accounts == nil {
		accounts = map[string]AccountInfo{}
	}
	if categories == nil {
		categories = map[string]string{}
	}
	d.snap.Store(&snapshot{accounts: accounts, categories: categories})
}

// ResolveAccount looks up an Up account id.
func (d *Directory) ResolveAccount(id string) (AccountInfo, bool) {
	info, ok := d.snap.Load().accounts[id]
	return info, ok
}

// ResolveCategory looks up an Up category id, returning the ledger category
// name.
func (d *Directory) ResolveCategory(id string) (string, bool) {
	name, ok := d.snap.Load().categories[id]
	return name, ok
}

// AccountCount returns the number of known accounts.
func (d *Directory) AccountCount() int {
	return len(d.snap.Load().accounts)
}

// CategoryCount returns the number of known categories.
func (d *Directory) CategoryCount() int {
	return len(d.snap.Load().categories)
}
