package directory

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyDirectory(t *testing.T) {
	d := New()

	_, ok := d.ResolveAccount("acct-1")
	assert.False(t, ok)

	_, ok = d.ResolveCategory("takeaway")
	assert.False(t, ok)

	assert.Equal(t, 0, d.AccountCount())
	assert.Equal(t, 0, d.CategoryCount())
}

func TestReplaceAndResolve(t *testing.T) {
	d := New()
	d.Replace(
		map[string]AccountInfo{
			"acct-1": {Name: "Spending", Role: "defaultAsset", Balance: decimal.RequireFromString("10.00")},
		},
		map[string]string{"takeaway": "Takeaway"},
	)

	info, ok := d.ResolveAccount("acct-1")
	require.True(t, ok)
	assert.Equal(t, "Spending", info.Name)
	assert.Equal(t, "defaultAsset", info.Role)

	name, ok := d.ResolveCategory("takeaway")
	require.True(t, ok)
	assert.Equal(t, "Takeaway", name)
}

func TestReplace_SwapsWholeSnapshot(t *testing.T) {
	d := New()
	d.Replace(map[string]AccountInfo{"acct-1": {Name: "Spending"}}, nil)
	d.Replace(map[string]AccountInfo{"acct-2": {Name: "Savings"}}, nil)

	// Entries from the previous snapshot must be gone, not merged.
	_, ok := d.ResolveAccount("acct-1")
	assert.False(t, ok)

	info, ok := d.ResolveAccount("acct-2")
	require.True(t, ok)
	assert.Equal(t, "Savings", info.Name)
}

func TestReplace_NilMaps(t *testing.T) {
	d := New()
	d.Replace(nil, nil)

	_, ok := d.ResolveAccount("acct-1")
	assert.False(t, ok)
}

func TestConcurrentReadDuringReplace(t *testing.T) {
	d := New()
	d.Replace(map[string]AccountInfo{"acct-1": {Name: "Spending"}}, map[string]string{"c": "C"})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers hammer lookups while a writer swaps snapshots. Run with -race.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					if info, ok := d.ResolveAccount("acct-1"); ok {
						assert.NotEmpty(t, info.Name)
					}
					d.ResolveCategory("c")
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		d.Replace(map[string]AccountInfo{"acct-1": {Name: "Spending"}}, map[string]string{"c": "C"})
	}
	close(stop)
	wg.Wait()
}
