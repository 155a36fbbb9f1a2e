package utils

import (
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundAmount rounds a monetary amount to 2 decimal places. All amount
// comparisons against limits (grand total, balance due) happen at 2dp.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// SameAmount reports whether two amounts are equal at 2 decimal places.
func SameAmount(a, b decimal.Decimal) bool {
	return RoundAmount(a).Equal(RoundAmount(b))
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func GetTypeName[T any]() string {
	var v T
	name := reflect.TypeOf(v).String()
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
