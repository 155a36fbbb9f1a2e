package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/models"
	"gorm.io/gorm"
)

// createExpenseTx posts one expense and its owning ledger entry inside an
// already-open transaction. A positive amount is money leaving the till
// (Outflow); a negative amount is a reversal flowing back in (Inflow).
// Callers must already hold the posting lock for the expense's account.
func createExpenseTx(tx *gorm.DB, input models.NewExpense) (*models.Expense, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	account, err := models.AccountForMethod(input.PaymentType)
	if err != nil {
		return nil, err
	}

	expenseDate := time.Now()
	if input.ExpenseDate != nil {
		expenseDate = *input.ExpenseDate
	}

	kind := models.LedgerEntryKindOutflow
	ledgerAmount := input.Amount
	if input.Amount.IsNegative() {
		kind = models.LedgerEntryKindInflow
		ledgerAmount = input.Amount.Neg()
	}

	reference := fmt.Sprintf("Expense (%s)", input.Category)
	if input.Description != "" {
		reference = fmt.Sprintf("Expense (%s): %s", input.Category, input.Description)
	}
	entry, err := models.RecordLedgerEntry(tx, account, kind, ledgerAmount, expenseDate, reference)
	if err != nil {
		return nil, err
	}

	expense := models.Expense{
		Category:      input.Category,
		Description:   input.Description,
		ExpenseDate:   expenseDate,
		Amount:        input.Amount,
		PaymentType:   input.PaymentType,
		PaidToKind:    input.PaidToKind,
		PaidToId:      input.PaidToId,
		LinkedKind:    input.LinkedKind,
		LinkedId:      input.LinkedId,
		LedgerEntryId: entry.ID,
		Status:        models.RecordStatusActive,
	}
	if err := tx.Create(&expense).Error; err != nil {
		return nil, err
	}
	if err := models.SaveAuditCreate(tx, models.RefTypeExpense, expense.ID, expense, fmt.Sprintf("Expense recorded: %s %s.", input.Category, input.Amount.StringFixed(2))); err != nil {
		return nil, err
	}
	return &expense, nil
}

// deleteExpenseTx soft-deletes an expense and the ledger entry it owns.
// Callers must already hold the posting lock for the expense's account.
func deleteExpenseTx(tx *gorm.DB, expense *models.Expense) error {
	if expense.Status == models.RecordStatusDeleted {
		return errors.New("expense is already deleted")
	}

	before := *expense
	expense.Status = models.RecordStatusDeleted
	err := tx.Model(expense).Update("status", models.RecordStatusDeleted).Error
	if err != nil {
		return err
	}
	if _, err := models.SoftDeleteLedgerEntry(tx, expense.LedgerEntryId); err != nil {
		return err
	}
	return models.SaveAuditDelete(tx, models.RefTypeExpense, expense.ID, before, fmt.Sprintf("Expense deleted: %s %s.", expense.Category, expense.Amount.StringFixed(2)))
}

func RecordExpense(ctx context.Context, input models.NewExpense) (*models.Expense, error) {

	account, err := models.AccountForMethod(input.PaymentType)
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

		if err := beginIdempotency(ctx, txCtx, "RecordExpense"); err != nil {
			return err
		}

		var err error
		expense, err = createExpenseTx(txCtx, input)
		return err
	})
	if err != nil {
		config.LogError(config.GetLogger(), "expenseWorkflow.go", "RecordExpense", "Transaction", input, err)
		return nil, err
	}
	return expense, nil
}

// UpdateExpense edits an expense. Changes to the amount, date or payment type
// cannot touch the posted ledger entry, so the old entry is soft-deleted and a
// fresh one posted in its place; descriptive fields are updated in place.
func UpdateExpense(ctx context.Context, id int, input models.NewExpense) (*models.Expense, error) {

	existing, err := models.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.RecordStatusDeleted {
		return nil, errors.New("cannot update a deleted expense")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	oldAccount, err := models.AccountForMethod(existing.PaymentType)
	if err != nil {
		return nil, err
	}
	newAccount, err := models.AccountForMethod(input.PaymentType)
	if err != nil {
		return nil, err
	}

	repost := !existing.Amount.Equal(input.Amount) ||
		existing.PaymentType != input.PaymentType ||
		(input.ExpenseDate != nil && !existing.ExpenseDate.Equal(*input.ExpenseDate))

	db := config.GetDB()
	var expense *models.Expense
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, oldAccount, newAccount); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, oldAccount, newAccount)

		if err := beginIdempotency(ctx, txCtx, "UpdateExpense"); err != nil {
			return err
		}

		before := *existing
		if repost {
			if err := deleteExpenseTx(txCtx, existing); err != nil {
				return err
			}
			var err error
			expense, err = createExpenseTx(txCtx, input)
			return err
		}

		existing.Category = input.Category
		existing.Description = input.Description
		existing.PaidToKind = input.PaidToKind
		existing.PaidToId = input.PaidToId
		existing.LinkedKind = input.LinkedKind
		existing.LinkedId = input.LinkedId
		if err := txCtx.Save(existing).Error; err != nil {
			return err
		}
		expense = existing
		return models.SaveAuditUpdate(txCtx, models.RefTypeExpense, existing.ID, before, existing, "Expense details updated.")
	})
	if err != nil {
		config.LogError(config.GetLogger(), "expenseWorkflow.go", "UpdateExpense", "Transaction", input, err)
		return nil, err
	}
	return expense, nil
}

func DeleteExpense(ctx context.Context, id int) error {

	existing, err := models.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	account, err := models.AccountForMethod(existing.PaymentType)
	if err != nil {
		return err
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, account)

		if err := beginIdempotency(ctx, txCtx, "DeleteExpense"); err != nil {
			return err
		}

		return deleteExpenseTx(txCtx, existing)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "expenseWorkflow.go", "DeleteExpense", "Transaction", id, err)
		return err
	}
	return nil
}
