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

// AddVendorTransaction appends to a vendor's payable stream. A Purchase only
// moves the payable balance; a Payment additionally posts a ledger outflow on
// the account behind the mandatory method and links it back.
func AddVendorTransaction(ctx context.Context, input models.NewVendorTransaction) (*models.VendorTransaction, error) {

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("vendor transaction amount must be greater than zero")
	}
	if !input.Kind.Valid() {
		return nil, errors.New("invalid vendor transaction kind")
	}

	var account models.LedgerAccount
	if input.Kind == models.VendorTransactionKindPayment {
		if input.Method == nil {
			return nil, errors.New("a payment method is required for vendor payments")
		}
		var err error
		account, err = models.AccountForMethod(*input.Method)
		if err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	var result *models.VendorTransaction
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)

		if account != "" {
			if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
				return err
			}
			defer ReleaseAccountPostingLocks(txCtx, account)
		}
		if err := AcquireVendorPostingLock(txCtx, input.VendorId); err != nil {
			return err
		}
		defer ReleaseVendorPostingLock(txCtx, input.VendorId)

		if err := beginIdempotency(ctx, txCtx, "AddVendorTransaction"); err != nil {
			return err
		}

		var vendor models.Vendor
		if err := txCtx.First(&vendor, input.VendorId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		transactionDate := time.Now()
		if input.TransactionDate != nil {
			transactionDate = *input.TransactionDate
		}

		var ledgerEntryId int
		if input.Kind == models.VendorTransactionKindPayment {
			reference := fmt.Sprintf("Payment to vendor %s", vendor.Name)
			if input.Reference != "" {
				reference = fmt.Sprintf("Payment to vendor %s: %s", vendor.Name, input.Reference)
			}
			entry, err := models.RecordLedgerEntry(txCtx, account, models.LedgerEntryKindOutflow, input.Amount, transactionDate, reference)
			if err != nil {
				return err
			}
			ledgerEntryId = entry.ID
		}

		vt := models.VendorTransaction{
			VendorId:        input.VendorId,
			Kind:            input.Kind,
			TransactionDate: transactionDate,
			Amount:          input.Amount,
			Method:          input.Method,
			LedgerEntryId:   ledgerEntryId,
			Reference:       input.Reference,
			Status:          models.RecordStatusActive,
		}
		if err := txCtx.Create(&vt).Error; err != nil {
			return err
		}
		// Replay rather than append: a backdated transaction shifts every
		// balance after it.
		if err := models.ReplayVendorBalances(txCtx, input.VendorId); err != nil {
			return err
		}
		if err := txCtx.First(&vt, vt.ID).Error; err != nil {
			return err
		}
		if err := models.SaveAuditCreate(txCtx, models.RefTypeVendorTransaction, vt.ID, vt, fmt.Sprintf("%s of %s recorded for vendor %s.", vt.Kind, vt.Amount.StringFixed(2), vendor.Name)); err != nil {
			return err
		}

		result = &vt
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "vendorWorkflow.go", "AddVendorTransaction", "Transaction", input, err)
		return nil, err
	}
	return result, nil
}

// DeleteVendorTransaction soft-deletes one vendor transaction, reverses its
// linked ledger entry when it was a Payment, and replays the vendor's
// remaining stream from the opening balance.
func DeleteVendorTransaction(ctx context.Context, id int) error {

	existing, err := models.GetVendorTransaction(ctx, id)
	if err != nil {
		return err
	}

	var account models.LedgerAccount
	if existing.Kind == models.VendorTransactionKindPayment && existing.Method != nil {
		account, err = models.AccountForMethod(*existing.Method)
		if err != nil {
			return err
		}
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)

		if account != "" {
			if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
				return err
			}
			defer ReleaseAccountPostingLocks(txCtx, account)
		}
		if err := AcquireVendorPostingLock(txCtx, existing.VendorId); err != nil {
			return err
		}
		defer ReleaseVendorPostingLock(txCtx, existing.VendorId)

		if err := beginIdempotency(ctx, txCtx, "DeleteVendorTransaction"); err != nil {
			return err
		}

		var vt models.VendorTransaction
		if err := txCtx.First(&vt, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if vt.Status == models.RecordStatusDeleted {
			return errors.New("vendor transaction is already deleted")
		}

		before := vt
		vt.Status = models.RecordStatusDeleted
		if err := txCtx.Model(&vt).Update("status", models.RecordStatusDeleted).Error; err != nil {
			return err
		}
		if vt.Kind == models.VendorTransactionKindPayment && vt.LedgerEntryId > 0 {
			if _, err := models.SoftDeleteLedgerEntry(txCtx, vt.LedgerEntryId); err != nil {
				return err
			}
		}
		if err := models.ReplayVendorBalances(txCtx, vt.VendorId); err != nil {
			return err
		}
		return models.SaveAuditDelete(txCtx, models.RefTypeVendorTransaction, vt.ID, before, fmt.Sprintf("%s of %s deleted.", vt.Kind, vt.Amount.StringFixed(2)))
	})
	if err != nil {
		config.LogError(config.GetLogger(), "vendorWorkflow.go", "DeleteVendorTransaction", "Transaction", id, err)
		return err
	}
	return nil
}
