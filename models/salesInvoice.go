package models

import (
	"context"
	"errors"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Invoice struct {
	ID            int    `gorm:"primary_key" json:"id"`
	InvoiceNumber string `gorm:"size:64;not null;index" json:"invoice_number"`
	// ActiveNumber mirrors InvoiceNumber while the invoice is alive and goes
	// NULL on deletion, so its unique index enforces number uniqueness over
	// non-deleted invoices only (MySQL unique indexes skip NULL rows).
	ActiveNumber  *string   `gorm:"size:64;uniqueIndex" json:"-"`
	InvoiceDate   time.Time `gorm:"not null;index" json:"invoice_date"`
	CustomerName  string    `gorm:"size:255" json:"customer_name"`
	SalesPersonId int       `gorm:"not null;index" json:"sales_person_id"`

	Items    []InvoiceItem    `gorm:"foreignKey:InvoiceId" json:"items"`
	Payments []InvoicePayment `gorm:"foreignKey:InvoiceId" json:"payments"`

	SubTotal    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sub_total"`
	TotalVat    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_vat"`
	GrandTotal  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"grand_total"`
	TotalCost   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	TotalProfit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_profit"`

	CommissionThresholdPct decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"commission_threshold_pct"`
	CommissionRatePct      decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"commission_rate_pct"`
	CommissionEligible     bool            `gorm:"not null;default:false" json:"commission_eligible"`
	CommissionAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_amount"`
	CommissionPaid         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_paid"`
	CommissionBalanceDue   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_balance_due"`

	// AdvanceTaken is the outstanding sum of active advances drawn against this
	// invoice; LastAdvanceTaken is the amount of the most recent one (nil when none).
	AdvanceTaken     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"advance_taken"`
	LastAdvanceTaken *decimal.Decimal `gorm:"type:decimal(20,4)" json:"last_advance_taken"`

	Status    InvoiceStatus `gorm:"type:enum('Unpaid','PartiallyPaid','Paid','Deleted');not null;default:'Unpaid';index" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	VatAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vat_amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// InvoicePayment rows are immutable once created. A wrong payment is corrected
// by an explicit reversal, which removes the row and posts a compensating
// ledger entry; the original inflow entry is never touched.
type InvoicePayment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	PaymentId     string          `gorm:"size:36;uniqueIndex;not null" json:"payment_id"`
	InvoiceId     int             `gorm:"not null;index" json:"invoice_id"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method        PaymentMethod   `gorm:"type:enum('Cash','Bank','Shabka');not null" json:"method"`
	LedgerEntryId int             `gorm:"index" json:"ledger_entry_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (p *InvoicePayment) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("payments are immutable: reverse the payment instead")
}

// BeforeCreate stamps the uniqueness discriminator.
func (obj *Invoice) BeforeCreate(tx *gorm.DB) error {
	if obj.Status != InvoiceStatusDeleted {
		number := obj.InvoiceNumber
		obj.ActiveNumber = &number
	}
	return nil
}

func (obj Invoice) GetId() int {
	return obj.ID
}

type NewInvoiceItem struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	VatAmount   decimal.Decimal `json:"vat_amount"`
}

type NewInvoicePayment struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Method      PaymentMethod   `json:"method" validate:"required"`
	PaymentDate *time.Time      `json:"payment_date"`
}

type NewInvoice struct {
	InvoiceNumber string              `json:"invoice_number" validate:"required"`
	InvoiceDate   time.Time           `json:"invoice_date" validate:"required"`
	CustomerName  string              `json:"customer_name"`
	SalesPersonId int                 `json:"sales_person_id" validate:"required"`
	Items         []NewInvoiceItem    `json:"items" validate:"required,min=1,dive"`
	Payments      []NewInvoicePayment `json:"payments" validate:"dive"`

	// Optional overrides; defaults come from the salesperson's configuration.
	CommissionThresholdPct *decimal.Decimal `json:"commission_threshold_pct"`
	CommissionRatePct      *decimal.Decimal `json:"commission_rate_pct"`
}

// UpdateInvoiceInput deliberately has no status or payments fields: both are
// derived and can never be set directly.
type UpdateInvoiceInput struct {
	InvoiceDate   *time.Time       `json:"invoice_date"`
	CustomerName  *string          `json:"customer_name"`
	SalesPersonId *int             `json:"sales_person_id"`
	Items         []NewInvoiceItem `json:"items" validate:"omitempty,min=1,dive"`
}

type InvoiceTotals struct {
	SubTotal    decimal.Decimal `json:"sub_total"`
	TotalVat    decimal.Decimal `json:"total_vat"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

/* Pure derivations */

// ValidateInvoiceItems enforces the item-level business invariants.
func ValidateInvoiceItems(items []NewInvoiceItem) error {
	if len(items) == 0 {
		return errors.New("invoice requires at least one item")
	}
	for _, item := range items {
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return errors.New("item quantity must be greater than zero")
		}
		if item.UnitPrice.IsNegative() {
			return errors.New("item unit price cannot be negative")
		}
		if item.UnitCost.IsNegative() {
			return errors.New("item unit cost cannot be negative")
		}
		if item.VatAmount.IsNegative() {
			return errors.New("item VAT cannot be negative")
		}
	}
	return nil
}

// CalculateInvoiceTotals derives the invoice totals from its items.
func CalculateInvoiceTotals(items []NewInvoiceItem) InvoiceTotals {
	var totals InvoiceTotals
	for _, item := range items {
		lineTotal := item.Quantity.Mul(item.UnitPrice)
		lineCost := item.Quantity.Mul(item.UnitCost)
		totals.SubTotal = totals.SubTotal.Add(lineTotal)
		totals.TotalVat = totals.TotalVat.Add(item.VatAmount)
		totals.TotalCost = totals.TotalCost.Add(lineCost)
	}
	totals.GrandTotal = totals.SubTotal.Add(totals.TotalVat)
	totals.TotalProfit = totals.SubTotal.Sub(totals.TotalCost)
	return totals
}

// DeriveInvoiceStatus is the single source of truth for payment status:
// Paid iff the paid sum covers the grand total, Unpaid iff nothing is paid,
// PartiallyPaid otherwise. The terminal Deleted state is set elsewhere.
func DeriveInvoiceStatus(paidTotal, grandTotal decimal.Decimal) InvoiceStatus {
	paid := utils.RoundAmount(paidTotal)
	grand := utils.RoundAmount(grandTotal)
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return InvoiceStatusUnpaid
	case paid.GreaterThanOrEqual(grand):
		return InvoiceStatusPaid
	default:
		return InvoiceStatusPartiallyPaid
	}
}

// PaidTotal sums the invoice's payments.
func (inv *Invoice) PaidTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range inv.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// OutstandingAmount is what remains payable, at 2dp.
func (inv *Invoice) OutstandingAmount() decimal.Decimal {
	return utils.RoundAmount(inv.GrandTotal).Sub(utils.RoundAmount(inv.PaidTotal()))
}

/* Queries */

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	return utils.FetchSingleModel[Invoice](ctx, id, "Items", "Payments")
}

func GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error) {
	db := config.GetDB()
	var result Invoice
	err := db.WithContext(ctx).
		Preload("Items").Preload("Payments").
		Where("invoice_number = ? AND status <> ?", invoiceNumber, InvoiceStatusDeleted).
		First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// InvoiceNumberInUse reports whether a non-deleted invoice already carries
// this number. The check runs on the caller's transaction; the unique index
// on ActiveNumber backs it at the database level for writes that race past.
func InvoiceNumberInUse(tx *gorm.DB, invoiceNumber string) (bool, error) {
	var count int64
	err := tx.Model(&Invoice{}).
		Where("invoice_number = ? AND status <> ?", invoiceNumber, InvoiceStatusDeleted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func GetInvoices(ctx context.Context, salesPersonId *int, status *InvoiceStatus, fromDate *time.Time, toDate *time.Time) ([]*Invoice, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Preload("Payments")
	if salesPersonId != nil && *salesPersonId > 0 {
		dbCtx = dbCtx.Where("sales_person_id = ?", *salesPersonId)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if fromDate != nil && toDate != nil {
		dbCtx = dbCtx.Where("invoice_date BETWEEN ? AND ?", *fromDate, *toDate)
	}

	var results []*Invoice
	err := dbCtx.Order("invoice_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
