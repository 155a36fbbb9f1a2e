package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/models"
	"github.com/sahlretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// addInvoicePaymentTx appends one payment to the invoice: the inflow ledger
// entry first, then the payment row pointing at it, then the derived status.
// Callers must hold the posting lock for the payment's account.
func addInvoicePaymentTx(tx *gorm.DB, inv *models.Invoice, input models.NewInvoicePayment) (*models.InvoicePayment, error) {

	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("payment amount must be greater than zero")
	}
	if !input.Method.Valid() {
		return nil, errors.New("invalid payment method")
	}
	if inv.Status == models.InvoiceStatusDeleted {
		return nil, errors.New("cannot add a payment to a deleted invoice")
	}
	outstanding := inv.OutstandingAmount()
	if utils.RoundAmount(input.Amount).GreaterThan(outstanding) {
		return nil, fmt.Errorf("payment %s exceeds outstanding amount %s", input.Amount.StringFixed(2), outstanding.StringFixed(2))
	}

	account, err := models.AccountForMethod(input.Method)
	if err != nil {
		return nil, err
	}

	paymentDate := time.Now()
	if input.PaymentDate != nil {
		paymentDate = *input.PaymentDate
	}

	reference := fmt.Sprintf("Payment for invoice %s", inv.InvoiceNumber)
	entry, err := models.RecordLedgerEntry(tx, account, models.LedgerEntryKindInflow, input.Amount, paymentDate, reference)
	if err != nil {
		return nil, err
	}

	payment := models.InvoicePayment{
		PaymentId:     uuid.NewString(),
		InvoiceId:     inv.ID,
		PaymentDate:   paymentDate,
		Amount:        input.Amount,
		Method:        input.Method,
		LedgerEntryId: entry.ID,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, err
	}
	if err := models.SaveAuditCreate(tx, models.RefTypeInvoicePayment, payment.ID, payment, fmt.Sprintf("Payment of %s (%s) added to invoice %s.", input.Amount.StringFixed(2), input.Method, inv.InvoiceNumber)); err != nil {
		return nil, err
	}

	inv.Payments = append(inv.Payments, payment)
	if err := refreshInvoiceStatusTx(tx, inv); err != nil {
		return nil, err
	}
	return &payment, nil
}

// reverseInvoicePaymentTx undoes one payment: the row is removed, a
// compensating outflow is posted carrying the reason, and the invoice status
// is re-derived from what remains. The original inflow entry is never touched.
func reverseInvoicePaymentTx(tx *gorm.DB, inv *models.Invoice, payment *models.InvoicePayment, reason string) error {

	if reason == "" {
		return errors.New("a reversal reason is required")
	}

	account, err := models.AccountForMethod(payment.Method)
	if err != nil {
		return err
	}

	reference := fmt.Sprintf("Reversal of payment %s on invoice %s: %s", payment.PaymentId, inv.InvoiceNumber, reason)
	if _, err := models.RecordLedgerEntry(tx, account, models.LedgerEntryKindOutflow, payment.Amount, time.Now(), reference); err != nil {
		return err
	}

	before := *payment
	if err := tx.Delete(&models.InvoicePayment{}, payment.ID).Error; err != nil {
		return err
	}
	if err := models.SaveAuditDelete(tx, models.RefTypeInvoicePayment, payment.ID, before, fmt.Sprintf("Payment of %s reversed on invoice %s: %s", payment.Amount.StringFixed(2), inv.InvoiceNumber, reason)); err != nil {
		return err
	}

	remaining := inv.Payments[:0]
	for _, p := range inv.Payments {
		if p.ID != payment.ID {
			remaining = append(remaining, p)
		}
	}
	inv.Payments = remaining
	return refreshInvoiceStatusTx(tx, inv)
}

// refreshInvoiceStatusTx re-derives and persists the invoice status from the
// in-memory payment list. No audit row of its own: the status is derived
// state, and the payment mutation that moved it already carries the audit
// record for the whole change.
func refreshInvoiceStatusTx(tx *gorm.DB, inv *models.Invoice) error {
	status := models.DeriveInvoiceStatus(inv.PaidTotal(), inv.GrandTotal)
	if status == inv.Status {
		return nil
	}
	inv.Status = status
	return tx.Model(inv).Update("status", status).Error
}

// paymentAccounts collects the distinct accounts behind a set of payment
// inputs, for lock acquisition.
func paymentAccounts(methods []models.PaymentMethod) ([]models.LedgerAccount, error) {
	var accounts []models.LedgerAccount
	for _, m := range methods {
		account, err := models.AccountForMethod(m)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func CreateInvoice(ctx context.Context, input models.NewInvoice) (*models.Invoice, error) {

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := models.ValidateInvoiceItems(input.Items); err != nil {
		return nil, err
	}
	totals := models.CalculateInvoiceTotals(input.Items)
	if totals.GrandTotal.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("invoice grand total must be greater than zero")
	}

	salesPerson, err := models.GetSalesPerson(ctx, input.SalesPersonId)
	if err != nil {
		return nil, err
	}

	thresholdPct := salesPerson.CommissionThresholdPct
	if input.CommissionThresholdPct != nil {
		thresholdPct = *input.CommissionThresholdPct
	}
	ratePct := salesPerson.CommissionRatePct
	if input.CommissionRatePct != nil {
		ratePct = *input.CommissionRatePct
	}

	var methods []models.PaymentMethod
	for _, p := range input.Payments {
		methods = append(methods, p.Method)
	}
	accounts, err := paymentAccounts(methods)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var invoice *models.Invoice
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, accounts...); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, accounts...)

		if err := beginIdempotency(ctx, txCtx, "CreateInvoice"); err != nil {
			return err
		}

		opened, err := models.HasActiveOpeningEntry(txCtx, models.LedgerAccountCash, models.LedgerAccountBank)
		if err != nil {
			return err
		}
		if !opened {
			return errors.New("an opening ledger entry (Cash or Bank) is required before invoices can be created")
		}
		inUse, err := models.InvoiceNumberInUse(txCtx, input.InvoiceNumber)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("invoice number %s already exists", input.InvoiceNumber)
		}

		inv := models.Invoice{
			InvoiceNumber:          input.InvoiceNumber,
			InvoiceDate:            input.InvoiceDate,
			CustomerName:           input.CustomerName,
			SalesPersonId:          input.SalesPersonId,
			SubTotal:               totals.SubTotal,
			TotalVat:               totals.TotalVat,
			GrandTotal:             totals.GrandTotal,
			TotalCost:              totals.TotalCost,
			TotalProfit:            totals.TotalProfit,
			CommissionThresholdPct: thresholdPct,
			CommissionRatePct:      ratePct,
			Status:                 models.InvoiceStatusUnpaid,
		}
		earnedDelta := assessInvoiceCommission(&inv)

		for _, item := range input.Items {
			inv.Items = append(inv.Items, models.InvoiceItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				UnitCost:    item.UnitCost,
				VatAmount:   item.VatAmount,
			})
		}
		if err := txCtx.Create(&inv).Error; err != nil {
			// A racing create that slipped past the read check lands on the
			// ActiveNumber unique index instead.
			if isDuplicateKeyErr(err) {
				return fmt.Errorf("invoice number %s already exists", input.InvoiceNumber)
			}
			return err
		}
		if err := models.SaveAuditCreate(txCtx, models.RefTypeInvoice, inv.ID, inv, fmt.Sprintf("Invoice %s created for %s.", inv.InvoiceNumber, inv.GrandTotal.StringFixed(2))); err != nil {
			return err
		}
		if earnedDelta.Sign() != 0 {
			err = models.AdjustCommissionTotals(txCtx, inv.SalesPersonId, earnedDelta, decimal.Zero,
				fmt.Sprintf("Commission earned on invoice %s.", inv.InvoiceNumber))
			if err != nil {
				return err
			}
		}

		for _, p := range input.Payments {
			if _, err := addInvoicePaymentTx(txCtx, &inv, p); err != nil {
				return err
			}
		}

		invoice = &inv
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "invoiceWorkflow.go", "CreateInvoice", "Transaction", input.InvoiceNumber, err)
		return nil, err
	}
	return invoice, nil
}

func AddInvoicePayment(ctx context.Context, invoiceId int, input models.NewInvoicePayment) (*models.InvoicePayment, error) {

	account, err := models.AccountForMethod(input.Method)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var payment *models.InvoicePayment
	err = db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)
		if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, account)

		if err := beginIdempotency(ctx, txCtx, "AddInvoicePayment"); err != nil {
			return err
		}

		var inv models.Invoice
		if err := txCtx.Preload("Payments").First(&inv, invoiceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		var err error
		payment, err = addInvoicePaymentTx(txCtx, &inv, input)
		return err
	})
	if err != nil {
		config.LogError(config.GetLogger(), "invoiceWorkflow.go", "AddInvoicePayment", "Transaction", invoiceId, err)
		return nil, err
	}
	return payment, nil
}

func ReverseInvoicePayment(ctx context.Context, invoiceId int, paymentId string, reason string) error {

	if reason == "" {
		return errors.New("a reversal reason is required")
	}

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)

		var inv models.Invoice
		if err := txCtx.Preload("Payments").First(&inv, invoiceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		var payment *models.InvoicePayment
		for i := range inv.Payments {
			if inv.Payments[i].PaymentId == paymentId {
				payment = &inv.Payments[i]
				break
			}
		}
		if payment == nil {
			return utils.ErrorRecordNotFound
		}

		account, err := models.AccountForMethod(payment.Method)
		if err != nil {
			return err
		}
		if err := AcquireAccountPostingLocks(txCtx, account); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, account)

		if err := beginIdempotency(ctx, txCtx, "ReverseInvoicePayment"); err != nil {
			return err
		}

		return reverseInvoicePaymentTx(txCtx, &inv, payment, reason)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "invoiceWorkflow.go", "ReverseInvoicePayment", "Transaction", paymentId, err)
		return err
	}
	return nil
}

// UpdateInvoice edits a financially virgin invoice: permitted only while no
// payment has been taken and no commission paid out.
func UpdateInvoice(ctx context.Context, invoiceId int, input models.UpdateInvoiceInput) (*models.Invoice, error) {

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var invoice *models.Invoice
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)

		if err := beginIdempotency(ctx, txCtx, "UpdateInvoice"); err != nil {
			return err
		}

		var inv models.Invoice
		if err := txCtx.Preload("Items").Preload("Payments").First(&inv, invoiceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if inv.Status == models.InvoiceStatusDeleted {
			return errors.New("cannot update a deleted invoice")
		}
		if len(inv.Payments) > 0 {
			return errors.New("cannot update an invoice that already has payments")
		}
		if inv.CommissionPaid.GreaterThan(decimal.Zero) {
			return errors.New("cannot update an invoice whose commission has been paid")
		}

		before := inv
		if input.InvoiceDate != nil {
			inv.InvoiceDate = *input.InvoiceDate
		}
		if input.CustomerName != nil {
			inv.CustomerName = *input.CustomerName
		}
		if input.SalesPersonId != nil && *input.SalesPersonId != inv.SalesPersonId {
			if err := utils.ValidateResourceId[models.SalesPerson](ctx, *input.SalesPersonId); err != nil {
				return err
			}
			// Move the earned commission from the old salesperson to the new one.
			if inv.CommissionAmount.Sign() != 0 {
				err := models.AdjustCommissionTotals(txCtx, inv.SalesPersonId, inv.CommissionAmount.Neg(), decimal.Zero,
					fmt.Sprintf("Invoice %s reassigned away.", inv.InvoiceNumber))
				if err != nil {
					return err
				}
				err = models.AdjustCommissionTotals(txCtx, *input.SalesPersonId, inv.CommissionAmount, decimal.Zero,
					fmt.Sprintf("Invoice %s reassigned in.", inv.InvoiceNumber))
				if err != nil {
					return err
				}
			}
			inv.SalesPersonId = *input.SalesPersonId
		}

		if len(input.Items) > 0 {
			if err := models.ValidateInvoiceItems(input.Items); err != nil {
				return err
			}
			totals := models.CalculateInvoiceTotals(input.Items)
			if totals.GrandTotal.LessThanOrEqual(decimal.Zero) {
				return errors.New("invoice grand total must be greater than zero")
			}
			if utils.RoundAmount(totals.GrandTotal).LessThan(utils.RoundAmount(inv.PaidTotal())) {
				return errors.New("new grand total is below the amount already paid")
			}

			if err := txCtx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
				return err
			}
			inv.Items = nil
			for _, item := range input.Items {
				inv.Items = append(inv.Items, models.InvoiceItem{
					InvoiceId:   inv.ID,
					Description: item.Description,
					Quantity:    item.Quantity,
					UnitPrice:   item.UnitPrice,
					UnitCost:    item.UnitCost,
					VatAmount:   item.VatAmount,
				})
			}
			if err := txCtx.Create(&inv.Items).Error; err != nil {
				return err
			}

			inv.SubTotal = totals.SubTotal
			inv.TotalVat = totals.TotalVat
			inv.GrandTotal = totals.GrandTotal
			inv.TotalCost = totals.TotalCost
			inv.TotalProfit = totals.TotalProfit
			earnedDelta := assessInvoiceCommission(&inv)
			if earnedDelta.Sign() != 0 {
				err := models.AdjustCommissionTotals(txCtx, inv.SalesPersonId, earnedDelta, decimal.Zero,
					fmt.Sprintf("Commission reassessed on invoice %s.", inv.InvoiceNumber))
				if err != nil {
					return err
				}
			}
		}

		err := txCtx.Omit("Items", "Payments").Save(&inv).Error
		if err != nil {
			return err
		}
		if err := models.SaveAuditUpdate(txCtx, models.RefTypeInvoice, inv.ID, before, inv, fmt.Sprintf("Invoice %s updated.", inv.InvoiceNumber)); err != nil {
			return err
		}
		invoice = &inv
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "invoiceWorkflow.go", "UpdateInvoice", "Transaction", invoiceId, err)
		return nil, err
	}
	return invoice, nil
}

// DeleteInvoice tears an invoice down in one unit of work: every payment is
// reversed with a compensating outflow, every active advance is closed with a
// compensating inflow, any paid commission is clawed back through a negative
// Commissions expense, the earned commission leaves the salesperson's
// aggregates, and the invoice moves to its terminal Deleted status.
func DeleteInvoice(ctx context.Context, invoiceId int) error {

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := tx.WithContext(ctx)

		// Teardown can touch every account, so take all posting locks up front.
		if err := AcquireAccountPostingLocks(txCtx, models.AllLedgerAccounts...); err != nil {
			return err
		}
		defer ReleaseAccountPostingLocks(txCtx, models.AllLedgerAccounts...)

		if err := beginIdempotency(ctx, txCtx, "DeleteInvoice"); err != nil {
			return err
		}

		var inv models.Invoice
		if err := txCtx.Preload("Payments").First(&inv, invoiceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if inv.Status == models.InvoiceStatusDeleted {
			return errors.New("invoice is already deleted")
		}

		for len(inv.Payments) > 0 {
			payment := inv.Payments[len(inv.Payments)-1]
			if err := reverseInvoicePaymentTx(txCtx, &inv, &payment, "Invoice deleted"); err != nil {
				return err
			}
		}

		advances, err := models.ActiveAdvancesForInvoice(txCtx, inv.ID)
		if err != nil {
			return err
		}
		for _, adv := range advances {
			if err := closeAdvanceTx(txCtx, &inv, adv, "Invoice deleted"); err != nil {
				return err
			}
		}

		if inv.CommissionPaid.GreaterThan(decimal.Zero) {
			payeeKind := models.PayeeKindEmployee
			clawback := models.NewExpense{
				Category:    models.ExpenseCategoryCommissions,
				Description: fmt.Sprintf("Commission clawback for deleted invoice %s", inv.InvoiceNumber),
				Amount:      inv.CommissionPaid.Neg(),
				PaymentType: models.PaymentMethodCash,
				PaidToKind:  &payeeKind,
				PaidToId:    inv.SalesPersonId,
				LinkedKind:  models.RefTypeInvoice,
				LinkedId:    inv.ID,
			}
			if _, err := createExpenseTx(txCtx, clawback); err != nil {
				return err
			}
		}
		if inv.CommissionAmount.Sign() != 0 || inv.CommissionPaid.Sign() != 0 {
			err := models.AdjustCommissionTotals(txCtx, inv.SalesPersonId, inv.CommissionAmount.Neg(), inv.CommissionPaid.Neg(),
				fmt.Sprintf("Commission reversed for deleted invoice %s.", inv.InvoiceNumber))
			if err != nil {
				return err
			}
		}

		before := inv
		inv.Status = models.InvoiceStatusDeleted
		inv.ActiveNumber = nil
		// Releasing ActiveNumber frees the invoice number for reuse.
		err = txCtx.Model(&inv).Updates(map[string]interface{}{
			"status":        models.InvoiceStatusDeleted,
			"active_number": nil,
		}).Error
		if err != nil {
			return err
		}
		return models.SaveAuditDelete(txCtx, models.RefTypeInvoice, inv.ID, before, fmt.Sprintf("Invoice %s deleted.", inv.InvoiceNumber))
	})
	if err != nil {
		config.LogError(config.GetLogger(), "invoiceWorkflow.go", "DeleteInvoice", "Transaction", invoiceId, err)
		return err
	}
	return nil
}
