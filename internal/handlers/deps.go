package handlers

import (
	"context"
	"time"

	"bankloan/internal/models"
	"bankloan/internal/services"
	"bankloan/internal/store"
)

type LedgerService interface {
	CreateAccount(ctx context.Context, customerID string) (services.AccountSummary, error)
	Deposit(ctx context.Context, req services.MoneyRequest) (services.AccountSummary, error)
	Withdraw(ctx context.Context, req services.MoneyRequest) (services.AccountSummary, error)
	Transfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
	Balance(ctx context.Context, customerID, number string) (services.AccountSummary, error)
	MiniStatement(ctx context.Context, customerID, number string) ([]models.Transaction, error)
	ListAccounts(ctx context.Context, customerID string) ([]services.AccountSummary, error)
	History(ctx context.Context, customerID string, q services.HistoryQuery) (services.TransactionPage, error)
	Annotate(ctx context.Context, customerID, transactionID string, description, category *string) (models.Transaction, error)
	SelfCheck(ctx context.Context, customerID string) ([]store.BalanceCheck, error)
	Reconcile(ctx context.Context, actorID string) ([]store.BalanceCheck, error)
}

type StatementService interface {
	Generate(ctx context.Context, customerID, number string, from, to time.Time, format services.StatementFormat) ([]byte, error)
}

type LoanService interface {
	Apply(ctx context.Context, req services.ApplyRequest) (models.Loan, error)
	Approve(ctx context.Context, actorID, loanID string) (models.Loan, error)
	Reject(ctx context.Context, actorID, loanID, reason string) (models.Loan, error)
	Disburse(ctx context.Context, actorID, loanID string) (models.Loan, error)
	PayInstallment(ctx context.Context, customerID, loanID string, amount int64) (models.Installment, models.Loan, error)
	Renew(ctx context.Context, customerID, loanID string, additional int64, tenureMonths int) (models.Loan, error)
	Close(ctx context.Context, customerID, loanID string) (models.Loan, error)
	Get(ctx context.Context, actorID, loanID string) (models.Loan, error)
	ListMine(ctx context.Context, customerID string) ([]models.Loan, error)
	Installments(ctx context.Context, actorID, loanID string) ([]models.Installment, error)
	ListPending(ctx context.Context, actorID string, page, size int) ([]models.Loan, error)
	ListAll(ctx context.Context, actorID string, status models.LoanStatus, page, size int) ([]models.Loan, error)
}

type CustomerService interface {
	Register(ctx context.Context, reg services.Registration) (models.Customer, error)
	RegisterStaff(ctx context.Context, actorID string, reg services.Registration, role models.Role) (models.Customer, error)
	Authenticate(ctx context.Context, email, password string) (models.Customer, error)
	Profile(ctx context.Context, customerID string) (models.Customer, error)
	UpdateProfile(ctx context.Context, customerID string, p store.ProfileUpdate) (models.Customer, error)
	ChangePassword(ctx context.Context, customerID, current, next string) error
}

type DashboardService interface {
	Customer(ctx context.Context, customerID string) (services.CustomerDashboard, error)
	Officer(ctx context.Context, officerID string) (services.OfficerDashboard, error)
	Admin(ctx context.Context, adminID string) (services.AdminDashboard, error)
	Customers(ctx context.Context, adminID string, page, size int) ([]models.Customer, error)
	AuditTrail(ctx context.Context, adminID string, page, size int) ([]models.AuditEntry, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Enabled() bool
	Ping(ctx context.Context) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Services struct {
	Ledger     LedgerService
	Statements StatementService
	Loans      LoanService
	Customers  CustomerService
	Dashboards DashboardService
}
