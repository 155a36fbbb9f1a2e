package workflow_test

import (
	"testing"

	"github.com/sahlretail/backoffice_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeCommission_ZeroCostNeverEligible(t *testing.T) {
	// A costless invoice has no meaningful margin: margin stays 0 and can
	// only clear a 0% threshold if profit is positive and threshold is 0.
	result := workflow.ComputeCommission(decimal.Zero, d("100"), d("10"), d("5"))
	require.False(t, result.Eligible)
	require.True(t, result.Amount.IsZero())
	require.True(t, result.ProfitMarginPct.IsZero())
}

func TestComputeCommission_ThresholdBoundary(t *testing.T) {
	// cost 100, profit 25 -> margin exactly 25%.
	at := workflow.ComputeCommission(d("100"), d("25"), d("25"), d("10"))
	require.True(t, at.Eligible, "margin equal to the threshold qualifies")
	require.True(t, d("2.50").Equal(at.Amount))

	below := workflow.ComputeCommission(d("100"), d("24.99"), d("25"), d("10"))
	require.False(t, below.Eligible)
	require.True(t, below.Amount.IsZero())
}

func TestComputeCommission_AmountIsProfitTimesRate(t *testing.T) {
	result := workflow.ComputeCommission(d("400"), d("200"), d("20"), d("7.5"))
	require.True(t, d("50").Equal(result.ProfitMarginPct))
	require.True(t, result.Eligible)
	require.True(t, d("15").Equal(result.Amount))
}

func TestComputeCommission_LossNeverEligible(t *testing.T) {
	result := workflow.ComputeCommission(d("100"), d("-10"), d("-50"), d("10"))
	require.False(t, result.Eligible, "a loss earns nothing regardless of threshold")
	require.True(t, result.Amount.IsZero())
}
