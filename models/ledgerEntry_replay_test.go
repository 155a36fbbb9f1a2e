package models_test

import (
	"testing"
	"time"

	"github.com/sahlretail/backoffice_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// These tests are DB-free. They validate the replay core the persistence layer
// is built on: running balances are a pure function of the active entries in
// replay order, so recalculation after any edit reduces to a replay.

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

func TestNextRunningBalance(t *testing.T) {
	require.True(t, d("1000").Equal(models.NextRunningBalance(d("250"), models.LedgerEntryKindOpening, d("1000"))),
		"an opening entry resets the stream to its amount")
	require.True(t, d("1200").Equal(models.NextRunningBalance(d("1000"), models.LedgerEntryKindInflow, d("200"))))
	require.True(t, d("800").Equal(models.NextRunningBalance(d("1000"), models.LedgerEntryKindOutflow, d("200"))))
}

func TestComputeRunningBalances_ReplaysFromSeed(t *testing.T) {
	entries := []*models.LedgerEntry{
		{ID: 1, Kind: models.LedgerEntryKindOpening, Amount: d("1000"), EntryDate: day(1)},
		{ID: 2, Kind: models.LedgerEntryKindInflow, Amount: d("200"), EntryDate: day(2)},
		{ID: 3, Kind: models.LedgerEntryKindOutflow, Amount: d("50"), EntryDate: day(3)},
	}
	models.ComputeRunningBalances(decimal.Zero, entries)

	require.True(t, d("1000").Equal(entries[0].RunningBalance))
	require.True(t, d("1200").Equal(entries[1].RunningBalance))
	require.True(t, d("1150").Equal(entries[2].RunningBalance))
}

func TestSortEntriesForReplay_TieBreak(t *testing.T) {
	// Same date: the Opening entry replays first, then insertion order.
	entries := []*models.LedgerEntry{
		{ID: 3, Kind: models.LedgerEntryKindInflow, Amount: d("10"), EntryDate: day(5)},
		{ID: 2, Kind: models.LedgerEntryKindOpening, Amount: d("500"), EntryDate: day(5)},
		{ID: 1, Kind: models.LedgerEntryKindOutflow, Amount: d("5"), EntryDate: day(5)},
	}
	models.SortEntriesForReplay(entries)

	require.Equal(t, 2, entries[0].ID)
	require.Equal(t, 1, entries[1].ID)
	require.Equal(t, 3, entries[2].ID)
}

func TestSortEntriesForReplay_DateBeforeKind(t *testing.T) {
	entries := []*models.LedgerEntry{
		{ID: 1, Kind: models.LedgerEntryKindOpening, Amount: d("500"), EntryDate: day(9)},
		{ID: 2, Kind: models.LedgerEntryKindInflow, Amount: d("10"), EntryDate: day(2)},
	}
	models.SortEntriesForReplay(entries)
	require.Equal(t, 2, entries[0].ID, "an earlier date replays before a later Opening")
}

func TestReplay_SoftDeleteTransparency(t *testing.T) {
	// Opening 1000 -> Inflow 200 -> Outflow 50. Deleting the inflow and
	// replaying must equal a stream that never contained it.
	full := []*models.LedgerEntry{
		{ID: 1, Kind: models.LedgerEntryKindOpening, Amount: d("1000"), EntryDate: day(1)},
		{ID: 2, Kind: models.LedgerEntryKindInflow, Amount: d("200"), EntryDate: day(2)},
		{ID: 3, Kind: models.LedgerEntryKindOutflow, Amount: d("50"), EntryDate: day(3)},
	}
	models.ComputeRunningBalances(decimal.Zero, full)
	require.True(t, d("1150").Equal(full[2].RunningBalance))

	afterDelete := []*models.LedgerEntry{full[0], full[2]}
	models.ComputeRunningBalances(decimal.Zero, afterDelete)

	neverExisted := []*models.LedgerEntry{
		{ID: 1, Kind: models.LedgerEntryKindOpening, Amount: d("1000"), EntryDate: day(1)},
		{ID: 3, Kind: models.LedgerEntryKindOutflow, Amount: d("50"), EntryDate: day(3)},
	}
	models.ComputeRunningBalances(decimal.Zero, neverExisted)

	for i := range afterDelete {
		require.True(t, neverExisted[i].RunningBalance.Equal(afterDelete[i].RunningBalance))
	}
	require.True(t, d("950").Equal(afterDelete[1].RunningBalance))
}

func TestReplay_BackdatedInsertShiftsSuffix(t *testing.T) {
	entries := []*models.LedgerEntry{
		{ID: 1, Kind: models.LedgerEntryKindOpening, Amount: d("1000"), EntryDate: day(1)},
		{ID: 2, Kind: models.LedgerEntryKindOutflow, Amount: d("300"), EntryDate: day(10)},
		// Inserted later but dated between the two above.
		{ID: 3, Kind: models.LedgerEntryKindInflow, Amount: d("100"), EntryDate: day(5)},
	}
	models.SortEntriesForReplay(entries)
	models.ComputeRunningBalances(decimal.Zero, entries)

	require.Equal(t, 3, entries[1].ID)
	require.True(t, d("1100").Equal(entries[1].RunningBalance))
	require.True(t, d("800").Equal(entries[2].RunningBalance), "the later outflow rides on the backdated inflow")
}
