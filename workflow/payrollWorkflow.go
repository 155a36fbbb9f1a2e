package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmployeePayrollResult is the outcome for one salesperson in a payroll run.
// A non-empty Error means that employee's whole settlement rolled back.
type EmployeePayrollResult struct {
	SalesPersonId     int             `json:"sales_person_id"`
	Name              string          `json:"name"`
	BaseSalary        decimal.Decimal `json:"base_salary"`
	CommissionPaid    decimal.Decimal `json:"commission_paid"`
	AdvancesRecovered decimal.Decimal `json:"advances_recovered"`
	NetPaid           decimal.Decimal `json:"net_paid"`
	Error             string          `json:"error,omitempty"`
}

type PayrollRunResult struct {
	Month   int                     `json:"month"`
	Year    int                     `json:"year"`
	Results []EmployeePayrollResult `json:"results"`
}

func payrollPeriod(month, year int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return from, to
}

// RunPayroll settles one month for every active salesperson: outstanding
// commission on the period's invoices, base salary, and recovery of the
// period's advances. Each employee runs in their own transaction; one
// employee's failure rolls back only their writes and is reported in the
// result list, the batch carries on.
func RunPayroll(ctx context.Context, month, year int) (*PayrollRunResult, error) {

	if month < 1 || month > 12 {
		return nil, errors.New("month must be between 1 and 12")
	}
	salesPersons, err := models.ActiveSalesPersons(ctx)
	if err != nil {
		return nil, err
	}

	return settleAll(month, year, salesPersons, func(sp *models.SalesPerson) EmployeePayrollResult {
		return settleEmployee(ctx, sp, month, year)
	}), nil
}

// settleAll folds one settlement per salesperson into the run result. A
// failed settlement is recorded and the loop carries on to the next employee.
func settleAll(month, year int, salesPersons []*models.SalesPerson, settle func(*models.SalesPerson) EmployeePayrollResult) *PayrollRunResult {
	run := &PayrollRunResult{Month: month, Year: year}
	for _, sp := range salesPersons {
		run.Results = append(run.Results, settle(sp))
	}
	return run
}

// markSettlementFailed records a rolled-back settlement: the employee's whole
// transaction was undone, so every amount in the result reverts to zero.
func markSettlementFailed(result *EmployeePayrollResult, err error) {
	result.CommissionPaid = decimal.Zero
	result.AdvancesRecovered = decimal.Zero
	result.NetPaid = decimal.Zero
	result.Error = err.Error()
}

func settleEmployee(ctx context.Context, sp *models.SalesPerson, month, year int) EmployeePayrollResult {

	result := EmployeePayrollResult{
		SalesPersonId: sp.ID,
		Name:          sp.Name,
		BaseSalary:    sp.BaseSalary,
	}
	from, to := payrollPeriod(month, year)
	payDate := to.Truncate(24 * time.Hour)

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)

		// Payroll pays out in cash.
		if err := AcquireAccountPostingLocks(txCtx, models.LedgerAccountCash); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, models.LedgerAccountCash)

		var invoices []*models.Invoice
		err := txCtx.Where("sales_person_id = ? AND status <> ?", sp.ID, models.InvoiceStatusDeleted).
			Where("invoice_date BETWEEN ? AND ?", from, to).
			Where("commission_balance_due > 0").
			Order("invoice_date ASC, id ASC").
			Find(&invoices).Error
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			due := inv.CommissionBalanceDue
			if _, err := payInvoiceCommissionTx(txCtx, inv, due, models.PaymentMethodCash, payDate); err != nil {
				return err
			}
			result.CommissionPaid = result.CommissionPaid.Add(due)
		}

		payeeKind := models.PayeeKindEmployee
		if sp.BaseSalary.GreaterThan(decimal.Zero) {
			salary := models.NewExpense{
				Category:    models.ExpenseCategorySalaries,
				Description: fmt.Sprintf("Base salary %d/%d for %s", month, year, sp.Name),
				ExpenseDate: &payDate,
				Amount:      sp.BaseSalary,
				PaymentType: models.PaymentMethodCash,
				PaidToKind:  &payeeKind,
				PaidToId:    sp.ID,
			}
			if _, err := createExpenseTx(txCtx, salary); err != nil {
				return err
			}
		}

		advances, err := models.UnrecoveredAdvancesForSalesPerson(txCtx, sp.ID, from, to)
		if err != nil {
			return err
		}
		recovered := decimal.Zero
		for _, adv := range advances {
			var inv models.Invoice
			if err := txCtx.First(&inv, adv.InvoiceId).Error; err != nil {
				return err
			}
			reference := fmt.Sprintf("Advance of %s recovered in payroll %d/%d.", adv.Amount.StringFixed(2), month, year)
			// The money comes back through one aggregated expense below, not
			// one inflow per advance.
			if err := recoverAdvanceTx(txCtx, &inv, adv, false, reference); err != nil {
				return err
			}
			recovered = recovered.Add(adv.Amount)
		}
		if recovered.GreaterThan(decimal.Zero) {
			recovery := models.NewExpense{
				Category:    models.ExpenseCategoryAdvancesRecovered,
				Description: fmt.Sprintf("Advances recovered %d/%d from %s", month, year, sp.Name),
				ExpenseDate: &payDate,
				Amount:      recovered.Neg(),
				PaymentType: models.PaymentMethodCash,
				PaidToKind:  &payeeKind,
				PaidToId:    sp.ID,
			}
			if _, err := createExpenseTx(txCtx, recovery); err != nil {
				return err
			}
		}

		result.AdvancesRecovered = recovered
		result.NetPaid = result.BaseSalary.Add(result.CommissionPaid).Sub(recovered)
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "payrollWorkflow.go", "RunPayroll", "SettleEmployee", sp.ID, err)
		markSettlementFailed(&result, err)
	}
	return result
}
