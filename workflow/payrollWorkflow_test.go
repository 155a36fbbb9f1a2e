package workflow

import (
	"errors"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sahlretail/backoffice_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPayrollPeriod(t *testing.T) {
	from, to := payrollPeriod(2, 2026)

	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local), from)
	require.Equal(t, 28, to.Day())
	require.Equal(t, time.February, to.Month())
	require.True(t, to.Before(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)))

	from, to = payrollPeriod(12, 2025)
	require.Equal(t, time.December, from.Month())
	require.Equal(t, 31, to.Day())
	require.Equal(t, 2025, to.Year())
}

func TestSettleAllContinuesPastFailure(t *testing.T) {
	salesPersons := []*models.SalesPerson{
		{ID: 1, Name: "Amal"},
		{ID: 2, Name: "Badr"},
		{ID: 3, Name: "Carim"},
	}

	// One employee's settlement rolls back; the others must land untouched.
	settle := func(sp *models.SalesPerson) EmployeePayrollResult {
		result := EmployeePayrollResult{
			SalesPersonId:  sp.ID,
			Name:           sp.Name,
			BaseSalary:     decimal.NewFromInt(1000),
			CommissionPaid: decimal.NewFromInt(50),
			NetPaid:        decimal.NewFromInt(1050),
		}
		if sp.ID == 2 {
			markSettlementFailed(&result, errors.New("cash account has no opening entry"))
		}
		return result
	}

	run := settleAll(7, 2026, salesPersons, settle)

	require.Equal(t, 7, run.Month)
	require.Equal(t, 2026, run.Year)
	require.Len(t, run.Results, 3)

	failed := run.Results[1]
	require.Equal(t, 2, failed.SalesPersonId)
	require.NotEmpty(t, failed.Error)
	require.True(t, failed.CommissionPaid.IsZero())
	require.True(t, failed.AdvancesRecovered.IsZero())
	require.True(t, failed.NetPaid.IsZero(), "nothing was paid out for a rolled-back settlement")

	for _, i := range []int{0, 2} {
		require.Empty(t, run.Results[i].Error)
		require.True(t, decimal.NewFromInt(1050).Equal(run.Results[i].NetPaid))
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	require.False(t, isDuplicateKeyErr(nil))
	require.False(t, isDuplicateKeyErr(errors.New("boom")))
	require.False(t, isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1054}))
	require.True(t, isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1062}))
}
