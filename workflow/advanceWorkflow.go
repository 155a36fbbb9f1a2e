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

// advanceAccount resolves the stream an advance was posted to by reading its
// owning ledger entry, so reversals always land on the right account even
// when the original posting overrode the method's default.
func advanceAccount(tx *gorm.DB, adv *models.Advance) (models.LedgerAccount, error) {
	var entry models.LedgerEntry
	if err := tx.First(&entry, adv.LedgerEntryId).Error; err != nil {
		return "", utils.ErrorRecordNotFound
	}
	return entry.Account, nil
}

// refreshInvoiceAdvanceCountersTx recomputes the invoice's outstanding advance
// sum and the amount of the most recent outstanding advance (nil when none).
// No audit row of its own: the counters are derived state, and the advance
// mutation that moved them already carries the audit record.
func refreshInvoiceAdvanceCountersTx(tx *gorm.DB, inv *models.Invoice) error {
	advances, err := models.ActiveAdvancesForInvoice(tx, inv.ID)
	if err != nil {
		return err
	}

	taken := decimal.Zero
	var last *decimal.Decimal
	for _, adv := range advances {
		if adv.Recovered {
			continue
		}
		taken = taken.Add(adv.Amount)
		if last == nil {
			amount := adv.Amount
			last = &amount
		}
	}

	inv.AdvanceTaken = taken
	inv.LastAdvanceTaken = last
	return tx.Model(inv).Updates(map[string]interface{}{
		"AdvanceTaken":     taken,
		"LastAdvanceTaken": last,
	}).Error
}

// recoverAdvanceTx marks one advance as recovered. When postEntry is set a
// compensating inflow returns the money to the advance's account; payroll
// passes false because it settles all of an employee's advances through a
// single aggregated expense instead. Callers must hold the posting lock for
// the advance's account.
func recoverAdvanceTx(tx *gorm.DB, inv *models.Invoice, adv *models.Advance, postEntry bool, reference string) error {
	if adv.Status == models.RecordStatusDeleted {
		return errors.New("cannot recover a deleted advance")
	}
	if adv.Recovered {
		return errors.New("advance is already recovered")
	}

	if postEntry {
		account, err := advanceAccount(tx, adv)
		if err != nil {
			return err
		}
		if _, err := models.RecordLedgerEntry(tx, account, models.LedgerEntryKindInflow, adv.Amount, time.Now(), reference); err != nil {
			return err
		}
	}

	before := *adv
	adv.Recovered = true
	if err := tx.Model(adv).Update("recovered", true).Error; err != nil {
		return err
	}
	if err := models.SaveAuditUpdate(tx, models.RefTypeAdvance, adv.ID, before, adv, reference); err != nil {
		return err
	}
	return refreshInvoiceAdvanceCountersTx(tx, inv)
}

// closeAdvanceTx soft-deletes an advance. An outstanding (unrecovered) advance
// gets a compensating inflow; a recovered one was already settled, so only the
// row is closed. Callers must hold the posting lock for the advance's account.
func closeAdvanceTx(tx *gorm.DB, inv *models.Invoice, adv *models.Advance, reason string) error {
	if adv.Status == models.RecordStatusDeleted {
		return errors.New("advance is already deleted")
	}

	if !adv.Recovered {
		account, err := advanceAccount(tx, adv)
		if err != nil {
			return err
		}
		reference := fmt.Sprintf("Advance reversal on invoice %s: %s", inv.InvoiceNumber, reason)
		if _, err := models.RecordLedgerEntry(tx, account, models.LedgerEntryKindInflow, adv.Amount, time.Now(), reference); err != nil {
			return err
		}
	}

	before := *adv
	adv.Status = models.RecordStatusDeleted
	if err := tx.Model(adv).Update("status", models.RecordStatusDeleted).Error; err != nil {
		return err
	}
	if err := models.SaveAuditDelete(tx, models.RefTypeAdvance, adv.ID, before, fmt.Sprintf("Advance of %s deleted: %s", adv.Amount.StringFixed(2), reason)); err != nil {
		return err
	}
	return refreshInvoiceAdvanceCountersTx(tx, inv)
}

// RecordAdvance hands cash to a salesperson against an invoice: an outflow on
// the chosen account plus the advance record and the invoice's counters, all
// in one unit of work.
func RecordAdvance(ctx context.Context, input models.NewAdvance) (*models.Advance, error) {

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("advance amount must be greater than zero")
	}

	account, err := models.AccountForMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if input.Account != nil {
		if !input.Account.Valid() {
			return nil, errors.New("invalid ledger account")
		}
		account = *input.Account
	}

	db := config.GetDB()
	var advance *models.Advance
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, account)

		if err := beginIdempotency(ctx, txCtx, "RecordAdvance"); err != nil {
			return err
		}

		var inv models.Invoice
		if err := txCtx.First(&inv, input.InvoiceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if inv.Status == models.InvoiceStatusDeleted {
			return errors.New("cannot record an advance against a deleted invoice")
		}
		var sp models.SalesPerson
		if err := txCtx.First(&sp, input.SalesPersonId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		advanceDate := time.Now()
		if input.AdvanceDate != nil {
			advanceDate = *input.AdvanceDate
		}

		reference := fmt.Sprintf("Advance to %s against invoice %s", sp.Name, inv.InvoiceNumber)
		entry, err := models.RecordLedgerEntry(txCtx, account, models.LedgerEntryKindOutflow, input.Amount, advanceDate, reference)
		if err != nil {
			return err
		}

		adv := models.Advance{
			SalesPersonId: input.SalesPersonId,
			InvoiceId:     input.InvoiceId,
			Amount:        input.Amount,
			PaymentMethod: input.PaymentMethod,
			LedgerEntryId: entry.ID,
			Status:        models.RecordStatusActive,
			AdvanceDate:   advanceDate,
		}
		if err := txCtx.Create(&adv).Error; err != nil {
			return err
		}
		if err := models.SaveAuditCreate(txCtx, models.RefTypeAdvance, adv.ID, adv, reference+"."); err != nil {
			return err
		}
		if err := refreshInvoiceAdvanceCountersTx(txCtx, &inv); err != nil {
			return err
		}

		advance = &adv
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "advanceWorkflow.go", "RecordAdvance", "Transaction", input, err)
		return nil, err
	}
	return advance, nil
}

func RecoverAdvance(ctx context.Context, id int) (*models.Advance, error) {
	return settleAdvance(ctx, id, "RecoverAdvance", func(tx *gorm.DB, inv *models.Invoice, adv *models.Advance) error {
		reference := fmt.Sprintf("Advance of %s recovered on invoice %s.", adv.Amount.StringFixed(2), inv.InvoiceNumber)
		return recoverAdvanceTx(tx, inv, adv, true, reference)
	})
}

func DeleteAdvance(ctx context.Context, id int) (*models.Advance, error) {
	return settleAdvance(ctx, id, "DeleteAdvance", func(tx *gorm.DB, inv *models.Invoice, adv *models.Advance) error {
		return closeAdvanceTx(tx, inv, adv, "Advance deleted")
	})
}

func settleAdvance(ctx context.Context, id int, handlerName string, settle func(tx *gorm.DB, inv *models.Invoice, adv *models.Advance) error) (*models.Advance, error) {

	existing, err := models.GetAdvance(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var advance *models.Advance
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)

		account, err := advanceAccount(txCtx, existing)
		if err != nil {
			return err
		}
		if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, account)

		if err := beginIdempotency(ctx, txCtx, handlerName); err != nil {
			return err
		}

		var adv models.Advance
		if err := txCtx.First(&adv, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		var inv models.Invoice
		if err := txCtx.First(&inv, adv.InvoiceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if err := settle(txCtx, &inv, &adv); err != nil {
			return err
		}
		advance = &adv
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "advanceWorkflow.go", handlerName, "Transaction", id, err)
		return nil, err
	}
	return advance, nil
}
