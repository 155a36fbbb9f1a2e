package models_test

import (
	"testing"

	"github.com/sahlretail/backoffice_backend/models"
	"github.com/stretchr/testify/require"
)

func TestNextVendorBalance(t *testing.T) {
	require.True(t, d("1500").Equal(models.NextVendorBalance(d("1000"), models.VendorTransactionKindPurchase, d("500"))))
	require.True(t, d("700").Equal(models.NextVendorBalance(d("1000"), models.VendorTransactionKindPayment, d("300"))))
}

func TestComputeVendorRunningBalances_SeededFromOpening(t *testing.T) {
	txns := []*models.VendorTransaction{
		{ID: 1, Kind: models.VendorTransactionKindPurchase, Amount: d("400"), TransactionDate: day(1)},
		{ID: 2, Kind: models.VendorTransactionKindPayment, Amount: d("250"), TransactionDate: day(2)},
		{ID: 3, Kind: models.VendorTransactionKindPurchase, Amount: d("100"), TransactionDate: day(3)},
	}
	models.ComputeVendorRunningBalances(d("1000"), txns)

	require.True(t, d("1400").Equal(txns[0].RunningBalance))
	require.True(t, d("1150").Equal(txns[1].RunningBalance))
	require.True(t, d("1250").Equal(txns[2].RunningBalance))
}

func TestSortVendorTransactionsForReplay(t *testing.T) {
	txns := []*models.VendorTransaction{
		{ID: 3, TransactionDate: day(2)},
		{ID: 1, TransactionDate: day(2)},
		{ID: 2, TransactionDate: day(1)},
	}
	models.SortVendorTransactionsForReplay(txns)

	require.Equal(t, 2, txns[0].ID)
	require.Equal(t, 1, txns[1].ID)
	require.Equal(t, 3, txns[2].ID)
}
