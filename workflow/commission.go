package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/models"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// CommissionAssessment is the outcome of evaluating one invoice against its
// commission configuration.
type CommissionAssessment struct {
	ProfitMarginPct decimal.Decimal `json:"profit_margin_pct"`
	Eligible        bool            `json:"eligible"`
	Amount          decimal.Decimal `json:"amount"`
}

// ComputeCommission evaluates commission for an invoice's profit figures.
// The margin is profit over cost; a zero or negative cost yields a zero
// margin, so free-of-cost invoices never earn commission by accident.
func ComputeCommission(totalCost, totalProfit, thresholdPct, ratePct decimal.Decimal) CommissionAssessment {
	var result CommissionAssessment
	if totalCost.GreaterThan(decimal.Zero) {
		result.ProfitMarginPct = totalProfit.Div(totalCost).Mul(oneHundred)
	}
	result.Eligible = totalProfit.GreaterThan(decimal.Zero) &&
		result.ProfitMarginPct.GreaterThanOrEqual(thresholdPct)
	if result.Eligible {
		result.Amount = utils.RoundAmount(totalProfit.Mul(ratePct).Div(oneHundred))
	} else {
		result.Amount = decimal.Zero
	}
	return result
}

// assessInvoiceCommission stamps a fresh assessment onto the invoice struct
// (not persisted) and returns the earned delta versus what was stored.
func assessInvoiceCommission(inv *models.Invoice) decimal.Decimal {
	previous := inv.CommissionAmount
	assessment := ComputeCommission(inv.TotalCost, inv.TotalProfit, inv.CommissionThresholdPct, inv.CommissionRatePct)
	inv.CommissionEligible = assessment.Eligible
	inv.CommissionAmount = assessment.Amount
	inv.CommissionBalanceDue = assessment.Amount.Sub(inv.CommissionPaid)
	return assessment.Amount.Sub(previous)
}

// payInvoiceCommissionTx pays out part or all of the commission due on one
// invoice: a Commissions expense (with its ledger outflow), the invoice's
// paid/balance counters, and the salesperson's paid aggregate, all in the
// caller's transaction. Callers must hold the posting lock for the account
// behind the payment method.
func payInvoiceCommissionTx(tx *gorm.DB, inv *models.Invoice, amount decimal.Decimal, method models.PaymentMethod, payDate time.Time) (*models.Expense, error) {

	if !inv.CommissionEligible {
		return nil, errors.New("invoice is not eligible for commission")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("commission payment must be greater than zero")
	}
	due := utils.RoundAmount(inv.CommissionBalanceDue)
	if utils.RoundAmount(amount).GreaterThan(due) {
		return nil, fmt.Errorf("commission payment %s exceeds balance due %s", amount.StringFixed(2), due.StringFixed(2))
	}

	payeeKind := models.PayeeKindEmployee
	expense, err := createExpenseTx(tx, models.NewExpense{
		Category:    models.ExpenseCategoryCommissions,
		Description: fmt.Sprintf("Commission payout for invoice %s", inv.InvoiceNumber),
		ExpenseDate: &payDate,
		Amount:      amount,
		PaymentType: method,
		PaidToKind:  &payeeKind,
		PaidToId:    inv.SalesPersonId,
		LinkedKind:  models.RefTypeInvoice,
		LinkedId:    inv.ID,
	})
	if err != nil {
		return nil, err
	}

	before := *inv
	inv.CommissionPaid = inv.CommissionPaid.Add(amount)
	inv.CommissionBalanceDue = inv.CommissionAmount.Sub(inv.CommissionPaid)
	err = tx.Model(inv).Updates(map[string]interface{}{
		"CommissionPaid":       inv.CommissionPaid,
		"CommissionBalanceDue": inv.CommissionBalanceDue,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := models.SaveAuditUpdate(tx, models.RefTypeInvoice, inv.ID, before, inv, fmt.Sprintf("Commission of %s paid on invoice %s.", amount.StringFixed(2), inv.InvoiceNumber)); err != nil {
		return nil, err
	}

	err = models.AdjustCommissionTotals(tx, inv.SalesPersonId, decimal.Zero, amount,
		fmt.Sprintf("Commission paid: %s on invoice %s.", amount.StringFixed(2), inv.InvoiceNumber))
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateCommissionPayment pays commission due on a single invoice outside a
// payroll run.
func UpdateCommissionPayment(ctx context.Context, invoiceId int, amount decimal.Decimal, method models.PaymentMethod) (*models.Expense, error) {

	account, err := models.AccountForMethod(method)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var expense *models.Expense
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, account)

		if err := beginIdempotency(ctx, txCtx, "UpdateCommissionPayment"); err != nil {
			return err
		}

		var inv models.Invoice
		if err := txCtx.First(&inv, invoiceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if inv.Status == models.InvoiceStatusDeleted {
			return errors.New("cannot pay commission on a deleted invoice")
		}

		var err error
		expense, err = payInvoiceCommissionTx(txCtx, &inv, amount, method, time.Now())
		return err
	})
	if err != nil {
		config.LogError(config.GetLogger(), "commission.go", "UpdateCommissionPayment", "Transaction", invoiceId, err)
		return nil, err
	}
	return expense, nil
}
