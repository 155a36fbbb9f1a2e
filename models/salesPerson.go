package models

import (
	"context"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesPerson carries the financial state the coordinator maintains: aggregate
// commission totals, base salary for payroll, and the default commission
// configuration stamped onto new invoices. Employee record-keeping (hire data,
// contacts) lives outside the core.
type SalesPerson struct {
	ID   int    `gorm:"primary_key" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`

	BaseSalary             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_salary"`
	CommissionThresholdPct decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"commission_threshold_pct"`
	CommissionRatePct      decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"commission_rate_pct"`

	// Aggregates, mutated only by the coordinator.
	CommissionEarned decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_earned"`
	CommissionPaid   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_paid"`

	IsActive  *bool     `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj SalesPerson) GetId() int {
	return obj.ID
}

func GetSalesPerson(ctx context.Context, id int) (*SalesPerson, error) {
	return utils.FetchSingleModel[SalesPerson](ctx, id)
}

// ActiveSalesPersons lists the salespeople payroll runs over.
func ActiveSalesPersons(ctx context.Context) ([]*SalesPerson, error) {
	db := config.GetDB()
	var results []*SalesPerson
	err := db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// AdjustCommissionTotals applies deltas to the salesperson aggregates inside
// the caller's transaction and records the change in the audit trail.
func AdjustCommissionTotals(tx *gorm.DB, salesPersonId int, earnedDelta, paidDelta decimal.Decimal, description string) error {

	var sp SalesPerson
	if err := tx.First(&sp, salesPersonId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	before := sp
	updates := map[string]interface{}{
		"CommissionEarned": sp.CommissionEarned.Add(earnedDelta),
		"CommissionPaid":   sp.CommissionPaid.Add(paidDelta),
	}
	if err := tx.Model(&sp).Updates(updates).Error; err != nil {
		return err
	}
	if err := tx.First(&sp, salesPersonId).Error; err != nil {
		return err
	}
	return SaveAuditUpdate(tx, RefTypeSalesPerson, sp.ID, before, sp, description)
}
