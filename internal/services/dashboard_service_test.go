package services

import (
	"context"
	"testing"

	"bankloan/internal/models"

	"github.com/stretchr/testify/require"
)

func TestCustomerDashboard(t *testing.T) {
	f := loanFixture(t)
	ctx := context.Background()
	active := activeLoan(t, f, models.ProductGeneral, 120000, models.GeneralDetails{LoanType: models.GeneralPersonal})
	apply(t, f, ApplyRequest{Product: models.ProductVehicle, Principal: 1000000, TenureMonths: 12, Details: vehicleDetails()})
	deposit(t, f, "alice", "ACC100", 500)

	dash, err := f.dashboards.Customer(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), dash.LoansByProduct[models.ProductGeneral])
	require.Equal(t, int64(1), dash.LoansByProduct[models.ProductVehicle])
	require.Equal(t, active.Outstanding, dash.TotalOutstanding)
	require.Equal(t, active.EMI, dash.MonthlyEMI)
	require.Equal(t, int64(120500), dash.TotalBalance)
	require.Len(t, dash.RecentActivity, 2)
	require.Equal(t, "ACC100", dash.RecentActivity[0].AccountNumber)
	require.Equal(t, int64(500), dash.RecentActivity[0].Amount)
}

func TestOfficerDashboard(t *testing.T) {
	f := loanFixture(t)
	ctx := context.Background()
	activeLoan(t, f, models.ProductGeneral, 120000, models.GeneralDetails{LoanType: models.GeneralPersonal})
	apply(t, f, ApplyRequest{Product: models.ProductVehicle, Principal: 1000000, TenureMonths: 12, Details: vehicleDetails()})

	_, err := f.dashboards.Officer(ctx, "alice")
	require.ErrorIs(t, err, ErrMissingCapability)

	dash, err := f.dashboards.Officer(ctx, "olga")
	require.NoError(t, err)
	require.Equal(t, int64(1), dash.PendingByProduct[models.ProductVehicle])
	require.Equal(t, int64(120000), dash.TotalDisbursed)
	require.Equal(t, int64(1), dash.StatusDistribution[models.LoanActive])
	require.Equal(t, int64(1), dash.StatusDistribution[models.LoanPending])
	require.Equal(t, int64(1), dash.ApprovedLast30Days)
}

func TestAdminDashboardAndListings(t *testing.T) {
	f := loanFixture(t)
	ctx := context.Background()
	activeLoan(t, f, models.ProductGeneral, 120000, models.GeneralDetails{LoanType: models.GeneralPersonal})
	apply(t, f, ApplyRequest{Product: models.ProductVehicle, Principal: 1000000, TenureMonths: 12, Details: vehicleDetails()})

	_, err := f.dashboards.Admin(ctx, "olga")
	require.ErrorIs(t, err, ErrMissingCapability)

	dash, err := f.dashboards.Admin(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, int64(4), dash.Customers)
	require.Equal(t, int64(2), dash.Accounts)
	require.Equal(t, int64(120000), dash.Portfolio)
	require.Equal(t, int64(120000), dash.TotalOutstanding)

	customers, err := f.dashboards.Customers(ctx, "root", 0, 2)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	_, err = f.dashboards.Customers(ctx, "alice", 0, 2)
	require.ErrorIs(t, err, ErrAccessDenied)

	trail, err := f.dashboards.AuditTrail(ctx, "root", 0, 50)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	_, err = f.dashboards.AuditTrail(ctx, "olga", 0, 50)
	require.ErrorIs(t, err, ErrMissingCapability)
}
