package workflow_test

import (
	"testing"
	"time"

	"github.com/sahlretail/backoffice_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

// A payment reversal followed by an equal re-payment must restore both the
// invoice status and the account balance, with the original inflow untouched
// and the correction visible as a compensating outflow in the stream.
func TestPaymentReversalRoundTrip(t *testing.T) {
	inv := models.Invoice{
		GrandTotal: d("300"),
		Status:     models.InvoiceStatusUnpaid,
	}
	payment := models.InvoicePayment{PaymentId: "a3f1", Amount: d("300"), Method: models.PaymentMethodCash}

	// Payment taken: invoice fully paid, balance up by the amount.
	inv.Payments = append(inv.Payments, payment)
	require.Equal(t, models.InvoiceStatusPaid, models.DeriveInvoiceStatus(inv.PaidTotal(), inv.GrandTotal))

	entries := []*models.LedgerEntry{
		{ID: 1, Kind: models.LedgerEntryKindOpening, Amount: d("1000"), EntryDate: day(1)},
		{ID: 2, Kind: models.LedgerEntryKindInflow, Amount: payment.Amount, EntryDate: day(2)},
	}
	models.ComputeRunningBalances(decimal.Zero, entries)
	paidBalance := entries[len(entries)-1].RunningBalance
	require.True(t, d("1300").Equal(paidBalance))

	// Reversal: the payment row goes away, a compensating outflow posts, the
	// original inflow stays in the stream.
	inv.Payments = inv.Payments[:0]
	entries = append(entries, &models.LedgerEntry{
		ID: 3, Kind: models.LedgerEntryKindOutflow, Amount: payment.Amount, EntryDate: day(3),
	})
	models.ComputeRunningBalances(decimal.Zero, entries)

	require.Equal(t, models.InvoiceStatusUnpaid, models.DeriveInvoiceStatus(inv.PaidTotal(), inv.GrandTotal))
	require.True(t, d("1000").Equal(entries[len(entries)-1].RunningBalance),
		"the compensating outflow restores the pre-payment balance")
	require.True(t, d("1300").Equal(entries[1].RunningBalance), "the original inflow is untouched")

	// Equal re-payment: status and balance land where the first payment left them.
	inv.Payments = append(inv.Payments, models.InvoicePayment{PaymentId: "b7c2", Amount: d("300"), Method: models.PaymentMethodCash})
	entries = append(entries, &models.LedgerEntry{
		ID: 4, Kind: models.LedgerEntryKindInflow, Amount: d("300"), EntryDate: day(4),
	})
	models.ComputeRunningBalances(decimal.Zero, entries)

	require.Equal(t, models.InvoiceStatusPaid, models.DeriveInvoiceStatus(inv.PaidTotal(), inv.GrandTotal))
	require.True(t, paidBalance.Equal(entries[len(entries)-1].RunningBalance))
	require.True(t, inv.OutstandingAmount().IsZero())
}
