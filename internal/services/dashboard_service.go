package services

import (
	"context"
	"time"

	"bankloan/internal/models"
	"bankloan/internal/store"

	"golang.org/x/sync/errgroup"
)

const (
	recentActivitySize = 10
	approvalWindow     = 30 * 24 * time.Hour
)

type LoanStatsReader interface {
	Stats(ctx context.Context, customerID string) ([]store.LoanStat, error)
	CountApprovedBy(ctx context.Context, officerID string, since time.Time) (int64, error)
}

type BalanceReader interface {
	TotalBalance(ctx context.Context, customerID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type ActivityReader interface {
	RecentForCustomer(ctx context.Context, customerID string, limit int) ([]store.Activity, error)
}

type CustomerDirectory interface {
	List(ctx context.Context, limit, offset int) ([]models.Customer, error)
	Count(ctx context.Context) (int64, error)
}

type AuditReader interface {
	List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error)
}

type CustomerDashboard struct {
	LoansByProduct   map[models.ProductType]int64 `json:"loans_by_product"`
	TotalOutstanding int64                        `json:"total_outstanding"`
	MonthlyEMI       int64                        `json:"monthly_emi"`
	TotalBalance     int64                        `json:"total_balance"`
	RecentActivity   []store.Activity             `json:"recent_activity"`
}

type OfficerDashboard struct {
	PendingByProduct   map[models.ProductType]int64 `json:"pending_by_product"`
	TotalDisbursed     int64                        `json:"total_disbursed"`
	StatusDistribution map[models.LoanStatus]int64  `json:"status_distribution"`
	ApprovedLast30Days int64                        `json:"approved_last_30_days"`
}

type AdminDashboard struct {
	Customers        int64                        `json:"customers"`
	Accounts         int64                        `json:"accounts"`
	LoansByProduct   map[models.ProductType]int64 `json:"loans_by_product"`
	Portfolio        int64                        `json:"portfolio"`
	TotalOutstanding int64                        `json:"total_outstanding"`
}

type DashboardService struct {
	roles      RoleStore
	loans      LoanStatsReader
	balances   BalanceReader
	activity   ActivityReader
	customers  CustomerDirectory
	auditTrail AuditReader
	now        func() time.Time
}

func NewDashboardService(roles RoleStore, loans LoanStatsReader, balances BalanceReader, activity ActivityReader, customers CustomerDirectory, auditTrail AuditReader) *DashboardService {
	return &DashboardService{
		roles:      roles,
		loans:      loans,
		balances:   balances,
		activity:   activity,
		customers:  customers,
		auditTrail: auditTrail,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *DashboardService) Customer(ctx context.Context, customerID string) (CustomerDashboard, error) {
	var (
		stats    []store.LoanStat
		balance  int64
		activity []store.Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.loans.Stats(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = s.balances.TotalBalance(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = s.activity.RecentForCustomer(gctx, customerID, recentActivitySize)
		return err
	})
	if err := g.Wait(); err != nil {
		return CustomerDashboard{}, err
	}
	out := CustomerDashboard{
		LoansByProduct: map[models.ProductType]int64{},
		TotalBalance:   balance,
		RecentActivity: activity,
	}
	for _, st := range stats {
		out.LoansByProduct[st.Product] += st.Count
		if repaying(st.Status) {
			out.TotalOutstanding += st.Outstanding
		}
		if st.Status == models.LoanActive {
			out.MonthlyEMI += st.EMI
		}
	}
	return out, nil
}

func (s *DashboardService) Officer(ctx context.Context, officerID string) (OfficerDashboard, error) {
	if _, err := requireCapability(ctx, s.roles, officerID, models.CapOfficerReports); err != nil {
		return OfficerDashboard{}, err
	}
	var (
		stats    []store.LoanStat
		approved int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.loans.Stats(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		approved, err = s.loans.CountApprovedBy(gctx, officerID, s.now().Add(-approvalWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		return OfficerDashboard{}, err
	}
	out := OfficerDashboard{
		PendingByProduct:   map[models.ProductType]int64{},
		StatusDistribution: map[models.LoanStatus]int64{},
		ApprovedLast30Days: approved,
	}
	for _, st := range stats {
		if st.Status == models.LoanPending {
			out.PendingByProduct[st.Product] += st.Count
		}
		out.StatusDistribution[st.Status] += st.Count
		out.TotalDisbursed += st.Disbursed
	}
	return out, nil
}

func (s *DashboardService) Admin(ctx context.Context, adminID string) (AdminDashboard, error) {
	if _, err := requireCapability(ctx, s.roles, adminID, models.CapAdminReports); err != nil {
		return AdminDashboard{}, err
	}
	var (
		stats     []store.LoanStat
		customers int64
		accounts  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.loans.Stats(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = s.customers.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = s.balances.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return AdminDashboard{}, err
	}
	out := AdminDashboard{
		Customers:      customers,
		Accounts:       accounts,
		LoansByProduct: map[models.ProductType]int64{},
	}
	for _, st := range stats {
		out.LoansByProduct[st.Product] += st.Count
		if st.Status != models.LoanPending && st.Status != models.LoanRejected {
			out.Portfolio += st.Principal
		}
		if repaying(st.Status) {
			out.TotalOutstanding += st.Outstanding
		}
	}
	return out, nil
}

func (s *DashboardService) Customers(ctx context.Context, adminID string, page, size int) ([]models.Customer, error) {
	if _, err := requireCapability(ctx, s.roles, adminID, models.CapAdminReports); err != nil {
		return nil, err
	}
	page, size = normalizePage(page, size)
	return s.customers.List(ctx, size, page*size)
}

func (s *DashboardService) AuditTrail(ctx context.Context, adminID string, page, size int) ([]models.AuditEntry, error) {
	if _, err := requireCapability(ctx, s.roles, adminID, models.CapViewAudit); err != nil {
		return nil, err
	}
	page, size = normalizePage(page, size)
	return s.auditTrail.List(ctx, size, page*size)
}

// repaying reports whether loans in status owe money to the bank.
func repaying(status models.LoanStatus) bool {
	return status == models.LoanActive || status == models.LoanDisbursed
}
