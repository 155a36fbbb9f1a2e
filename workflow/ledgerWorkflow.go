package workflow

import (
	"context"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Public ledger operations. Each runs as one atomic unit of work holding the
// account's posting lock; the audit record is written inside the same unit.

func RecordLedgerEntry(ctx context.Context, account models.LedgerAccount, kind models.LedgerEntryKind, amount decimal.Decimal, entryDate time.Time, reference string) (*models.LedgerEntry, error) {

	db := config.GetDB()
	var entry *models.LedgerEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, account)

		if err := beginIdempotency(ctx, txCtx, "RecordLedgerEntry"); err != nil {
			return err
		}

		var err error
		entry, err = models.RecordLedgerEntry(txCtx, account, kind, amount, entryDate, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func DeleteLedgerEntry(ctx context.Context, id int) (*models.LedgerEntry, error) {

	existing, err := models.GetLedgerEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var entry *models.LedgerEntry
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, existing.Account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, existing.Account)

		if err := beginIdempotency(ctx, txCtx, "DeleteLedgerEntry"); err != nil {
			return err
		}

		var err error
		entry, err = models.SoftDeleteLedgerEntry(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func RestoreLedgerEntry(ctx context.Context, id int) (*models.LedgerEntry, error) {

	existing, err := models.GetLedgerEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var entry *models.LedgerEntry
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, existing.Account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, existing.Account)

		if err := beginIdempotency(ctx, txCtx, "RestoreLedgerEntry"); err != nil {
			return err
		}

		var err error
		entry, err = models.RestoreLedgerEntry(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func UpdateLedgerEntryReference(ctx context.Context, id int, reference string) (*models.LedgerEntry, error) {

	db := config.GetDB()
	var entry *models.LedgerEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := beginIdempotency(ctx, txCtx, "UpdateLedgerEntryReference"); err != nil {
			return err
		}

		var err error
		entry, err = models.UpdateLedgerEntryReference(txCtx, id, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
