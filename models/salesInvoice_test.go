package models_test

import (
	"testing"

	"github.com/sahlretail/backoffice_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func item(qty, price, cost, vat string) models.NewInvoiceItem {
	return models.NewInvoiceItem{
		Description: "item",
		Quantity:    d(qty),
		UnitPrice:   d(price),
		UnitCost:    d(cost),
		VatAmount:   d(vat),
	}
}

func TestValidateInvoiceItems(t *testing.T) {
	require.Error(t, models.ValidateInvoiceItems(nil))
	require.Error(t, models.ValidateInvoiceItems([]models.NewInvoiceItem{item("0", "100", "0", "0")}))
	require.Error(t, models.ValidateInvoiceItems([]models.NewInvoiceItem{item("1", "-1", "0", "0")}))
	require.Error(t, models.ValidateInvoiceItems([]models.NewInvoiceItem{item("1", "100", "-5", "0")}))
	require.Error(t, models.ValidateInvoiceItems([]models.NewInvoiceItem{item("1", "100", "0", "-1")}))
	require.NoError(t, models.ValidateInvoiceItems([]models.NewInvoiceItem{item("2", "100", "60", "5")}))
}

func TestCalculateInvoiceTotals(t *testing.T) {
	totals := models.CalculateInvoiceTotals([]models.NewInvoiceItem{
		item("2", "100", "60", "10"),
		item("1", "50", "20", "2.5"),
	})

	require.True(t, d("250").Equal(totals.SubTotal))
	require.True(t, d("12.5").Equal(totals.TotalVat))
	require.True(t, d("262.5").Equal(totals.GrandTotal))
	require.True(t, d("140").Equal(totals.TotalCost))
	require.True(t, d("110").Equal(totals.TotalProfit), "profit is pre-VAT revenue minus cost")
}

func TestDeriveInvoiceStatus(t *testing.T) {
	grand := d("200")

	require.Equal(t, models.InvoiceStatusUnpaid, models.DeriveInvoiceStatus(decimal.Zero, grand))
	require.Equal(t, models.InvoiceStatusPartiallyPaid, models.DeriveInvoiceStatus(d("0.01"), grand))
	require.Equal(t, models.InvoiceStatusPartiallyPaid, models.DeriveInvoiceStatus(d("199.99"), grand))
	require.Equal(t, models.InvoiceStatusPaid, models.DeriveInvoiceStatus(d("200"), grand))
	require.Equal(t, models.InvoiceStatusPaid, models.DeriveInvoiceStatus(d("200.004"), grand), "comparison happens at 2dp")
}

func TestActiveNumberStampedOnCreate(t *testing.T) {
	inv := models.Invoice{InvoiceNumber: "INV-100", Status: models.InvoiceStatusUnpaid}
	require.NoError(t, inv.BeforeCreate(nil))
	require.NotNil(t, inv.ActiveNumber)
	require.Equal(t, "INV-100", *inv.ActiveNumber)

	// A deleted invoice carries NULL, so its number is free for reuse under
	// the unique index.
	deleted := models.Invoice{InvoiceNumber: "INV-100", Status: models.InvoiceStatusDeleted}
	require.NoError(t, deleted.BeforeCreate(nil))
	require.Nil(t, deleted.ActiveNumber)
}

func TestOutstandingAmount(t *testing.T) {
	inv := models.Invoice{
		GrandTotal: d("200"),
		Payments: []models.InvoicePayment{
			{Amount: d("120.555")},
			{Amount: d("29.40")},
		},
	}
	require.True(t, d("149.955").Equal(inv.PaidTotal()))
	// 149.955 rounds to 149.96 before subtraction.
	require.True(t, d("50.04").Equal(inv.OutstandingAmount()))
}
