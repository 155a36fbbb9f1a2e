package models_test

import (
	"testing"

	"github.com/sahlretail/backoffice_backend/models"
	"github.com/stretchr/testify/require"
)

func TestNewExpenseValidate(t *testing.T) {
	valid := models.NewExpense{
		Category:    models.ExpenseCategoryGeneral,
		Amount:      d("50"),
		PaymentType: models.PaymentMethodCash,
	}
	require.NoError(t, valid.Validate())

	missingCategory := valid
	missingCategory.Category = ""
	require.Error(t, missingCategory.Validate())

	zeroAmount := valid
	zeroAmount.Amount = d("0")
	require.Error(t, zeroAmount.Validate())

	negative := valid
	negative.Amount = d("-50")
	require.NoError(t, negative.Validate(), "negative amounts are reversals, not errors")

	badMethod := valid
	badMethod.PaymentType = "Cheque"
	require.Error(t, badMethod.Validate())

	payeeWithoutKind := valid
	payeeWithoutKind.PaidToId = 7
	require.Error(t, payeeWithoutKind.Validate())

	kindWithoutPayee := valid
	kind := models.PayeeKindEmployee
	kindWithoutPayee.PaidToKind = &kind
	require.Error(t, kindWithoutPayee.Validate())

	fullPayee := valid
	fullPayee.PaidToKind = &kind
	fullPayee.PaidToId = 7
	require.NoError(t, fullPayee.Validate())
}
