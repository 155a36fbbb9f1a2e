package workflow

import (
	"sync"
	"testing"

	"github.com/sahlretail/backoffice_backend/models"
	"github.com/stretchr/testify/require"
)

// NOTE: These tests are intentionally DB-free. They validate the serialization
// semantics the advisory locks are meant to provide:
// - a fixed acquisition order makes multi-account posting deadlock-free
// - per-account serialization keeps concurrent balance reads consistent
//
// Full DB integration tests require MySQL for GET_LOCK and belong in an
// environment that can run one.

func TestSortAccountsForLocking_FixedOrder(t *testing.T) {
	got := SortAccountsForLocking([]models.LedgerAccount{
		models.LedgerAccountShabka,
		models.LedgerAccountCash,
		models.LedgerAccountBank,
	})
	require.Equal(t, []models.LedgerAccount{
		models.LedgerAccountCash,
		models.LedgerAccountBank,
		models.LedgerAccountShabka,
	}, got)
}

func TestSortAccountsForLocking_Dedupes(t *testing.T) {
	got := SortAccountsForLocking([]models.LedgerAccount{
		models.LedgerAccountBank,
		models.LedgerAccountBank,
		models.LedgerAccountCash,
		models.LedgerAccountCash,
	})
	require.Equal(t, []models.LedgerAccount{
		models.LedgerAccountCash,
		models.LedgerAccountBank,
	}, got)
}

// fakePoster simulates the posting path: read last balance, compute, write.
// Serialized per account the way AcquireAccountPostingLocks serializes real
// postings.
type fakePoster struct {
	mu        sync.Mutex
	muByAcct  map[models.LedgerAccount]*sync.Mutex
	balances  map[models.LedgerAccount]int
	postTally int
}

func newFakePoster() *fakePoster {
	return &fakePoster{
		muByAcct: map[models.LedgerAccount]*sync.Mutex{},
		balances: map[models.LedgerAccount]int{},
	}
}

func (p *fakePoster) post(account models.LedgerAccount, amount int) {
	p.mu.Lock()
	am := p.muByAcct[account]
	if am == nil {
		am = &sync.Mutex{}
		p.muByAcct[account] = am
	}
	p.mu.Unlock()

	am.Lock()
	defer am.Unlock()

	// Read-modify-write, the sequence the real posting lock protects.
	last := p.balances[account]
	p.balances[account] = last + amount

	p.mu.Lock()
	p.postTally++
	p.mu.Unlock()
}

func TestPerAccountSerialization_NoLostUpdates(t *testing.T) {
	p := newFakePoster()
	const perAccount = 200

	var wg sync.WaitGroup
	for _, account := range models.AllLedgerAccounts {
		for i := 0; i < perAccount; i++ {
			wg.Add(1)
			go func(a models.LedgerAccount) {
				defer wg.Done()
				p.post(a, 1)
			}(account)
		}
	}
	wg.Wait()

	require.Equal(t, perAccount*len(models.AllLedgerAccounts), p.postTally)
	for _, account := range models.AllLedgerAccounts {
		require.Equal(t, perAccount, p.balances[account],
			"every increment must land; a lost update means the serialization broke")
	}
}
