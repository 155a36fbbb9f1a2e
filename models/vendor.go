package models

import (
	"context"
	"sort"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vendor record-keeping (create/edit/contact details) lives outside the core;
// the core reads the opening balance that seeds the payable stream and owns
// the transaction rows beneath it.
type Vendor struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:255;not null;uniqueIndex" json:"name"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	Notes          string          `gorm:"type:text" json:"notes"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// VendorTransaction follows the same running-balance discipline as a ledger
// stream, scoped per vendor and seeded from the vendor's opening balance
// instead of an explicit Opening entry. A Purchase increases the payable, a
// Payment decreases it and owns a linked ledger outflow.
type VendorTransaction struct {
	ID              int                   `gorm:"primary_key" json:"id"`
	VendorId        int                   `gorm:"not null;index;index:idx_vt_vendor_date,priority:1" json:"vendor_id"`
	Kind            VendorTransactionKind `gorm:"type:enum('Purchase','Payment');not null" json:"kind"`
	TransactionDate time.Time             `gorm:"not null;index:idx_vt_vendor_date,priority:2" json:"transaction_date"`
	Amount          decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"amount"`
	RunningBalance  decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"running_balance"`
	Method          *PaymentMethod        `gorm:"type:enum('Cash','Bank','Shabka')" json:"method"`
	LedgerEntryId   int                   `gorm:"index" json:"ledger_entry_id"`
	Reference       string                `gorm:"size:255" json:"reference"`
	Status          RecordStatus          `gorm:"type:enum('active','deleted');not null;default:'active';index" json:"status"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Vendor) GetId() int {
	return obj.ID
}

func (obj VendorTransaction) GetId() int {
	return obj.ID
}

const vendorReplayOrder = "transaction_date ASC, id ASC"

type NewVendorTransaction struct {
	VendorId        int                   `json:"vendor_id" validate:"required"`
	Kind            VendorTransactionKind `json:"kind" validate:"required"`
	Amount          decimal.Decimal       `json:"amount" validate:"required"`
	Method          *PaymentMethod        `json:"method"`
	Reference       string                `json:"reference"`
	TransactionDate *time.Time            `json:"transaction_date"`
}

/* Pure replay core */

// NextVendorBalance applies one transaction on top of the previous payable
// balance.
func NextVendorBalance(prev decimal.Decimal, kind VendorTransactionKind, amount decimal.Decimal) decimal.Decimal {
	if kind == VendorTransactionKindPurchase {
		return prev.Add(amount)
	}
	return prev.Sub(amount)
}

// SortVendorTransactionsForReplay orders a vendor stream by date then
// insertion id.
func SortVendorTransactionsForReplay(txns []*VendorTransaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		a, b := txns[i], txns[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		return a.ID < b.ID
	})
}

// ComputeVendorRunningBalances replays transactions (already in replay order)
// from the vendor's opening balance and writes each recomputed balance back
// onto the slice.
func ComputeVendorRunningBalances(openingBalance decimal.Decimal, txns []*VendorTransaction) {
	running := openingBalance
	for _, t := range txns {
		running = NextVendorBalance(running, t.Kind, t.Amount)
		t.RunningBalance = running
	}
}

/* Transaction-scoped operations */

// ReplayVendorBalances rebuilds every active transaction's running balance for
// a vendor from the opening balance forward.
func ReplayVendorBalances(tx *gorm.DB, vendorId int) error {

	var vendor Vendor
	if err := tx.First(&vendor, vendorId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	var txns []*VendorTransaction
	err := tx.Where("vendor_id = ? AND status = ?", vendorId, RecordStatusActive).
		Order(vendorReplayOrder).
		Find(&txns).Error
	if err != nil {
		return err
	}

	running := vendor.OpeningBalance
	for _, t := range txns {
		running = NextVendorBalance(running, t.Kind, t.Amount)
		if t.RunningBalance.Equal(running) {
			continue
		}
		if err := tx.Model(&VendorTransaction{}).Where("id = ?", t.ID).
			Update("running_balance", running).Error; err != nil {
			return err
		}
	}
	return nil
}

// LastVendorBalance returns the vendor's current payable balance: the running
// balance of the last active transaction, or the opening balance when the
// stream is empty.
func LastVendorBalance(tx *gorm.DB, vendor *Vendor) (decimal.Decimal, error) {
	var last VendorTransaction
	err := tx.Where("vendor_id = ? AND status = ?", vendor.ID, RecordStatusActive).
		Order("transaction_date DESC, id DESC").
		First(&last).Error
	if err == nil {
		return last.RunningBalance, nil
	}
	if err == gorm.ErrRecordNotFound {
		return vendor.OpeningBalance, nil
	}
	return decimal.Zero, err
}

/* Queries */

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	return utils.FetchSingleModel[Vendor](ctx, id)
}

func GetVendorTransaction(ctx context.Context, id int) (*VendorTransaction, error) {
	return utils.FetchSingleModel[VendorTransaction](ctx, id)
}

func GetVendorTransactions(ctx context.Context, vendorId int, fromDate *time.Time, toDate *time.Time, status *RecordStatus) ([]*VendorTransaction, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if fromDate != nil && toDate != nil {
		dbCtx = dbCtx.Where("transaction_date BETWEEN ? AND ?", *fromDate, *toDate)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var results []*VendorTransaction
	err := dbCtx.Order(vendorReplayOrder).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
