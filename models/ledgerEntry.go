package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry is one row of an account's running-balance stream.
//
// Ledger discipline:
// - entries are append-mostly: amount, kind, account and date never change after creation
// - corrections happen only through compensating entries, never by editing history
// - deletion is always soft; balances are restored by replaying the stream
type LedgerEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Account        LedgerAccount   `gorm:"type:enum('Cash','Bank','Shabka');not null;index;index:idx_le_acct_date,priority:1" json:"account"`
	Kind           LedgerEntryKind `gorm:"type:enum('Opening','Inflow','Outflow');not null" json:"kind"`
	EntryDate      time.Time       `gorm:"not null;index;index:idx_le_acct_date,priority:2" json:"entry_date"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	RunningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"running_balance"`
	Reference      string          `gorm:"size:255" json:"reference"`
	Status         RecordStatus    `gorm:"type:enum('active','deleted');not null;default:'active';index" json:"status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj LedgerEntry) GetId() int {
	return obj.ID
}

// Replay order: date ascending; an Opening entry sorts before other entries on
// the same date (it defines the baseline they build on); the auto-increment id
// is the insertion sequence and breaks remaining ties deterministically.
const ledgerReplayOrder = "entry_date ASC, (kind = 'Opening') DESC, id ASC"
const ledgerReplayOrderDesc = "entry_date DESC, (kind = 'Opening') ASC, id DESC"

// Ledger immutability guardrails:
// - amount, kind, account and entry date are frozen at creation
// - only running_balance (replay), reference text and status (soft delete) may change
// - rows are never hard-deleted

func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	allowed := map[string]bool{
		"RunningBalance": true,
		"Reference":      true,
		"Status":         true,
		"UpdatedAt":      true,
	}
	if tx == nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return nil
	}
	for _, f := range tx.Statement.Schema.Fields {
		if tx.Statement.Changed(f.Name) && !allowed[f.Name] {
			return errors.New("immutable ledger: only running balance, reference and status may be updated on ledger_entries")
		}
	}
	return nil
}

func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: ledger_entries cannot be hard-deleted; soft delete instead")
}

/* Pure replay core (no database access; exercised directly by the unit tests) */

// NextRunningBalance applies one entry on top of the previous balance.
// An Opening entry resets the stream to its amount.
func NextRunningBalance(prev decimal.Decimal, kind LedgerEntryKind, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case LedgerEntryKindOpening:
		return amount
	case LedgerEntryKindInflow:
		return prev.Add(amount)
	case LedgerEntryKindOutflow:
		return prev.Sub(amount)
	}
	return prev
}

// SortEntriesForReplay orders entries the way the stream is replayed:
// date ascending, Opening first among equal dates, then insertion id.
func SortEntriesForReplay(entries []*LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		aOpen := a.Kind == LedgerEntryKindOpening
		bOpen := b.Kind == LedgerEntryKindOpening
		if aOpen != bOpen {
			return aOpen
		}
		return a.ID < b.ID
	})
}

// ComputeRunningBalances replays entries (already in replay order) from seed
// and writes each recomputed balance back onto the slice.
func ComputeRunningBalances(seed decimal.Decimal, entries []*LedgerEntry) {
	running := seed
	for _, e := range entries {
		running = NextRunningBalance(running, e.Kind, e.Amount)
		e.RunningBalance = running
	}
}

/* Transaction-scoped operations (callers own the enclosing unit of work) */

// RecordLedgerEntry appends one entry to an account stream and restores the
// running-balance invariant, inside the caller's transaction. Backdated entries
// are handled by replaying the stream from the entry date forward.
func RecordLedgerEntry(tx *gorm.DB, account LedgerAccount, kind LedgerEntryKind, amount decimal.Decimal, entryDate time.Time, reference string) (*LedgerEntry, error) {

	if !account.Valid() {
		return nil, fmt.Errorf("invalid ledger account: %s", string(account))
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid ledger entry kind: %s", string(kind))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("ledger entry amount must be greater than zero")
	}
	if entryDate.IsZero() {
		entryDate = time.Now().UTC()
	}

	if kind == LedgerEntryKindOpening {
		var count int64
		err := tx.Model(&LedgerEntry{}).
			Where("account = ? AND kind = ? AND status = ?", account, LedgerEntryKindOpening, RecordStatusActive).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("an active opening entry already exists for account %s", string(account))
		}
	}

	entry := LedgerEntry{
		Account:   account,
		Kind:      kind,
		EntryDate: entryDate,
		Amount:    amount,
		Reference: reference,
		Status:    RecordStatusActive,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	// Replaying from the entry date computes this entry's balance and fixes
	// any later entries when the insert is backdated.
	if err := RecalculateBalances(tx, account, entryDate); err != nil {
		return nil, err
	}
	if err := tx.First(&entry, entry.ID).Error; err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%s entry of %v recorded on account %s.", string(kind), amount, string(account))
	if err := SaveAuditCreate(tx, RefTypeLedgerEntry, entry.ID, entry, description); err != nil {
		return nil, err
	}

	return &entry, nil
}

// SoftDeleteLedgerEntry marks an entry deleted and replays the stream so the
// remaining balances read as if the entry never existed.
func SoftDeleteLedgerEntry(tx *gorm.DB, id int) (*LedgerEntry, error) {

	var entry LedgerEntry
	if err := tx.First(&entry, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if entry.Status == RecordStatusDeleted {
		return nil, errors.New("ledger entry is already deleted")
	}
	if entry.Kind == LedgerEntryKindOpening {
		var later int64
		err := tx.Model(&LedgerEntry{}).
			Where("account = ? AND status = ? AND id <> ?", entry.Account, RecordStatusActive, entry.ID).
			Where("entry_date >= ?", entry.EntryDate).
			Count(&later).Error
		if err != nil {
			return nil, err
		}
		if later > 0 {
			return nil, errors.New("cannot delete opening entry while later active entries exist")
		}
	}

	before := entry
	if err := tx.Model(&entry).Update("status", RecordStatusDeleted).Error; err != nil {
		return nil, err
	}
	if err := RecalculateBalances(tx, entry.Account, entry.EntryDate); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%s entry of %v deleted from account %s.", string(entry.Kind), entry.Amount, string(entry.Account))
	if err := SaveAuditDelete(tx, RefTypeLedgerEntry, entry.ID, before, description); err != nil {
		return nil, err
	}

	return &entry, nil
}

// RestoreLedgerEntry reverses a soft delete and replays the stream.
func RestoreLedgerEntry(tx *gorm.DB, id int) (*LedgerEntry, error) {

	var entry LedgerEntry
	if err := tx.First(&entry, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if entry.Status != RecordStatusDeleted {
		return nil, errors.New("ledger entry is not deleted")
	}
	if entry.Kind == LedgerEntryKindOpening {
		var count int64
		err := tx.Model(&LedgerEntry{}).
			Where("account = ? AND kind = ? AND status = ?", entry.Account, LedgerEntryKindOpening, RecordStatusActive).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("an active opening entry already exists for account %s", string(entry.Account))
		}
	}

	before := entry
	if err := tx.Model(&entry).Update("status", RecordStatusActive).Error; err != nil {
		return nil, err
	}
	if err := RecalculateBalances(tx, entry.Account, entry.EntryDate); err != nil {
		return nil, err
	}
	if err := tx.First(&entry, entry.ID).Error; err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%s entry of %v restored on account %s.", string(entry.Kind), entry.Amount, string(entry.Account))
	if err := SaveAuditUpdate(tx, RefTypeLedgerEntry, entry.ID, before, entry, description); err != nil {
		return nil, err
	}

	return &entry, nil
}

// UpdateLedgerEntryReference edits the free-text reference. The only mutable
// field besides status and replayed balances.
func UpdateLedgerEntryReference(tx *gorm.DB, id int, reference string) (*LedgerEntry, error) {

	var entry LedgerEntry
	if err := tx.First(&entry, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	before := entry
	if err := tx.Model(&entry).Update("reference", reference).Error; err != nil {
		return nil, err
	}
	if err := SaveAuditUpdate(tx, RefTypeLedgerEntry, entry.ID, before, entry, "Ledger entry reference updated."); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RecalculateBalances replays every active entry of the account dated at or
// after fromDate, seeding from the last active entry strictly before it.
// O(n) in the suffix length; acceptable at observed volumes.
func RecalculateBalances(tx *gorm.DB, account LedgerAccount, fromDate time.Time) error {

	seed := decimal.Zero
	var prior LedgerEntry
	err := tx.Where("account = ? AND status = ? AND entry_date < ?", account, RecordStatusActive, fromDate).
		Order(ledgerReplayOrderDesc).
		First(&prior).Error
	if err == nil {
		seed = prior.RunningBalance
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var entries []*LedgerEntry
	err = tx.Where("account = ? AND status = ? AND entry_date >= ?", account, RecordStatusActive, fromDate).
		Order(ledgerReplayOrder).
		Find(&entries).Error
	if err != nil {
		return err
	}

	running := seed
	for _, e := range entries {
		running = NextRunningBalance(running, e.Kind, e.Amount)
		if e.RunningBalance.Equal(running) {
			continue
		}
		if err := tx.Model(&LedgerEntry{ID: e.ID}).Update("running_balance", running).Error; err != nil {
			return err
		}
	}
	return nil
}

// HasActiveOpeningEntry reports whether any of the given accounts has been
// seeded with an active Opening entry.
func HasActiveOpeningEntry(tx *gorm.DB, accounts ...LedgerAccount) (bool, error) {
	var count int64
	err := tx.Model(&LedgerEntry{}).
		Where("account IN ? AND kind = ? AND status = ?", accounts, LedgerEntryKindOpening, RecordStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

/* Queries */

func GetLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {
	return utils.FetchSingleModel[LedgerEntry](ctx, id)
}

// GetLedgerEntries returns an account's stream in replay order, optionally
// bounded by date range and status.
func GetLedgerEntries(ctx context.Context, account LedgerAccount, fromDate *time.Time, toDate *time.Time, status *RecordStatus) ([]*LedgerEntry, error) {

	if !account.Valid() {
		return nil, fmt.Errorf("invalid ledger account: %s", string(account))
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("account = ?", account)
	if fromDate != nil && toDate != nil {
		dbCtx = dbCtx.Where("entry_date BETWEEN ? AND ?", *fromDate, *toDate)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var results []*LedgerEntry
	err := dbCtx.Order(ledgerReplayOrder).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetAccountBalance returns the current balance of an account: the running
// balance of the chronologically last active entry, zero when the stream is
// empty.
func GetAccountBalance(ctx context.Context, account LedgerAccount) (decimal.Decimal, error) {

	if !account.Valid() {
		return decimal.Zero, fmt.Errorf("invalid ledger account: %s", string(account))
	}

	db := config.GetDB()
	var entry LedgerEntry
	err := db.WithContext(ctx).
		Where("account = ? AND status = ?", account, RecordStatusActive).
		Order(ledgerReplayOrderDesc).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return entry.RunningBalance, nil
}
