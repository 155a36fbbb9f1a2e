package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSameAmount(t *testing.T) {
	a := decimal.RequireFromString("10.004")
	b := decimal.RequireFromString("10.001")
	require.True(t, SameAmount(a, b), "amounts compare at 2 decimal places")

	c := decimal.RequireFromString("10.005")
	require.False(t, SameAmount(b, c))
}

func TestUniqueSlice(t *testing.T) {
	require.Equal(t, []int{3, 1, 2}, UniqueSlice([]int{3, 1, 3, 2, 1}))
	require.Equal(t, []string{"Cash", "Bank"}, UniqueSlice([]string{"Cash", "Bank", "Cash"}))
}
