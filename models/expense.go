package models

import (
	"context"
	"errors"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// Expense is a general outgoing (or, with a negative amount, a reversal that
// returns money to the till). Every active expense owns exactly one ledger
// entry, reachable via LedgerEntryId; editing amount, date or payment type
// always replaces that entry instead of mutating it in place.
type Expense struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Category    ExpenseCategory `gorm:"size:64;not null;index" json:"category"`
	Description string          `gorm:"type:text" json:"description"`
	ExpenseDate time.Time       `gorm:"not null;index" json:"expense_date"`
	// Amount sign encodes direction: positive posts an outflow, negative posts
	// a compensating inflow.
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentType PaymentMethod   `gorm:"type:enum('Cash','Bank','Shabka');not null" json:"payment_type"`

	// Polymorphic payee: an Employee or a Vendor.
	PaidToKind *PayeeKind `gorm:"type:enum('Employee','Vendor')" json:"paid_to_kind"`
	PaidToId   int        `json:"paid_to_id"`

	// Optional link back to the record this expense settles (e.g. the invoice
	// whose commission it pays out).
	LinkedKind string `gorm:"size:64" json:"linked_kind"`
	LinkedId   int    `json:"linked_id"`

	LedgerEntryId int          `gorm:"index;not null" json:"ledger_entry_id"`
	Status        RecordStatus `gorm:"type:enum('active','deleted');not null;default:'active';index" json:"status"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Expense) GetId() int {
	return obj.ID
}

type NewExpense struct {
	Category    ExpenseCategory `json:"category" validate:"required"`
	Description string          `json:"description"`
	ExpenseDate *time.Time      `json:"expense_date"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	PaymentType PaymentMethod   `json:"payment_type" validate:"required"`
	PaidToKind  *PayeeKind      `json:"paid_to_kind"`
	PaidToId    int             `json:"paid_to_id"`
	LinkedKind  string          `json:"linked_kind"`
	LinkedId    int             `json:"linked_id"`
}

// validate input for both create & update.
func (input *NewExpense) Validate() error {
	if input.Category == "" {
		return errors.New("expense category is required")
	}
	if input.Amount.IsZero() {
		return errors.New("expense amount cannot be zero")
	}
	if !input.PaymentType.Valid() {
		return errors.New("invalid expense payment type")
	}
	if input.PaidToId > 0 && (input.PaidToKind == nil || !input.PaidToKind.Valid()) {
		return errors.New("paid-to kind is required when a payee is set")
	}
	if input.PaidToKind != nil && input.PaidToId <= 0 {
		return errors.New("paid-to id is required when a payee kind is set")
	}
	return nil
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	return utils.FetchSingleModel[Expense](ctx, id)
}

func GetExpenses(ctx context.Context, category *ExpenseCategory, fromDate *time.Time, toDate *time.Time, status *RecordStatus) ([]*Expense, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if category != nil && *category != "" {
		dbCtx = dbCtx.Where("category = ?", *category)
	}
	if fromDate != nil && toDate != nil {
		dbCtx = dbCtx.Where("expense_date BETWEEN ? AND ?", *fromDate, *toDate)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var results []*Expense
	err := dbCtx.Order("expense_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
