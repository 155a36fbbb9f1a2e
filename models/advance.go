package models

import (
	"context"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Advance is a cash draw by a salesperson against a specific invoice. It is
// tied 1:1 to a ledger outflow at creation and a compensating inflow at
// recovery or deletion.
type Advance struct {
	ID            int             `gorm:"primary_key" json:"id"`
	SalesPersonId int             `gorm:"not null;index" json:"sales_person_id"`
	InvoiceId     int             `gorm:"not null;index" json:"invoice_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"type:enum('Cash','Bank','Shabka');not null" json:"payment_method"`
	LedgerEntryId int             `gorm:"index" json:"ledger_entry_id"`
	Recovered     bool            `gorm:"not null;default:false;index" json:"recovered"`
	Status        RecordStatus    `gorm:"type:enum('active','deleted');not null;default:'active';index" json:"status"`
	AdvanceDate   time.Time       `gorm:"not null;index" json:"advance_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Advance) GetId() int {
	return obj.ID
}

type NewAdvance struct {
	InvoiceId     int             `json:"invoice_id" validate:"required"`
	SalesPersonId int             `json:"sales_person_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required"`
	// Account optionally overrides the stream the outflow posts to; defaults to
	// the account matching the payment method.
	Account     *LedgerAccount `json:"account"`
	AdvanceDate *time.Time     `json:"advance_date"`
}

func GetAdvance(ctx context.Context, id int) (*Advance, error) {
	return utils.FetchSingleModel[Advance](ctx, id)
}

// ActiveAdvancesForInvoice returns the invoice's active advances, most recent
// first.
func ActiveAdvancesForInvoice(tx *gorm.DB, invoiceId int) ([]*Advance, error) {
	var results []*Advance
	err := tx.Where("invoice_id = ? AND status = ?", invoiceId, RecordStatusActive).
		Order("advance_date DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// UnrecoveredAdvancesForSalesPerson returns active, unrecovered advances for a
// salesperson within a date range.
func UnrecoveredAdvancesForSalesPerson(tx *gorm.DB, salesPersonId int, fromDate, toDate time.Time) ([]*Advance, error) {
	var results []*Advance
	err := tx.Where("sales_person_id = ? AND status = ? AND recovered = ?", salesPersonId, RecordStatusActive, false).
		Where("advance_date BETWEEN ? AND ?", fromDate, toDate).
		Order("advance_date ASC, id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetAdvances(ctx context.Context, invoiceId *int, salesPersonId *int, status *RecordStatus) ([]*Advance, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if invoiceId != nil && *invoiceId > 0 {
		dbCtx = dbCtx.Where("invoice_id = ?", *invoiceId)
	}
	if salesPersonId != nil && *salesPersonId > 0 {
		dbCtx = dbCtx.Where("sales_person_id = ?", *salesPersonId)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var results []*Advance
	err := dbCtx.Order("advance_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
