package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankloan/internal/auth"
	"bankloan/internal/config"
	"bankloan/internal/models"
	"bankloan/internal/services"
	"bankloan/internal/store"
	"bankloan/internal/websocket"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "secret"

type stubLedger struct {
	createAccountFn func(ctx context.Context, customerID string) (services.AccountSummary, error)
	depositFn       func(ctx context.Context, req services.MoneyRequest) (services.AccountSummary, error)
	withdrawFn      func(ctx context.Context, req services.MoneyRequest) (services.AccountSummary, error)
	transferFn      func(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
	balanceFn       func(ctx context.Context, customerID, number string) (services.AccountSummary, error)
	miniFn          func(ctx context.Context, customerID, number string) ([]models.Transaction, error)
	listFn          func(ctx context.Context, customerID string) ([]services.AccountSummary, error)
	historyFn       func(ctx context.Context, customerID string, q services.HistoryQuery) (services.TransactionPage, error)
	annotateFn      func(ctx context.Context, customerID, id string, description, category *string) (models.Transaction, error)
	selfCheckFn     func(ctx context.Context, customerID string) ([]store.BalanceCheck, error)
	reconcileFn     func(ctx context.Context, actorID string) ([]store.BalanceCheck, error)
}

func (s stubLedger) CreateAccount(ctx context.Context, customerID string) (services.AccountSummary, error) {
	if s.createAccountFn == nil {
		return services.AccountSummary{}, nil
	}
	return s.createAccountFn(ctx, customerID)
}

func (s stubLedger) Deposit(ctx context.Context, req services.MoneyRequest) (services.AccountSummary, error) {
	if s.depositFn == nil {
		return services.AccountSummary{}, nil
	}
	return s.depositFn(ctx, req)
}

func (s stubLedger) Withdraw(ctx context.Context, req services.MoneyRequest) (services.AccountSummary, error) {
	if s.withdrawFn == nil {
		return services.AccountSummary{}, nil
	}
	return s.withdrawFn(ctx, req)
}

func (s stubLedger) Transfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error) {
	if s.transferFn == nil {
		return services.TransferResult{}, nil
	}
	return s.transferFn(ctx, req)
}

func (s stubLedger) Balance(ctx context.Context, customerID, number string) (services.AccountSummary, error) {
	if s.balanceFn == nil {
		return services.AccountSummary{}, nil
	}
	return s.balanceFn(ctx, customerID, number)
}

func (s stubLedger) MiniStatement(ctx context.Context, customerID, number string) ([]models.Transaction, error) {
	if s.miniFn == nil {
		return nil, nil
	}
	return s.miniFn(ctx, customerID, number)
}

func (s stubLedger) ListAccounts(ctx context.Context, customerID string) ([]services.AccountSummary, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, customerID)
}

func (s stubLedger) History(ctx context.Context, customerID string, q services.HistoryQuery) (services.TransactionPage, error) {
	if s.historyFn == nil {
		return services.TransactionPage{}, nil
	}
	return s.historyFn(ctx, customerID, q)
}

func (s stubLedger) Annotate(ctx context.Context, customerID, id string, description, category *string) (models.Transaction, error) {
	if s.annotateFn == nil {
		return models.Transaction{}, nil
	}
	return s.annotateFn(ctx, customerID, id, description, category)
}

func (s stubLedger) SelfCheck(ctx context.Context, customerID string) ([]store.BalanceCheck, error) {
	if s.selfCheckFn == nil {
		return nil, nil
	}
	return s.selfCheckFn(ctx, customerID)
}

func (s stubLedger) Reconcile(ctx context.Context, actorID string) ([]store.BalanceCheck, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx, actorID)
}

type stubStatements struct {
	generateFn func(ctx context.Context, customerID, number string, from, to time.Time, format services.StatementFormat) ([]byte, error)
}

func (s stubStatements) Generate(ctx context.Context, customerID, number string, from, to time.Time, format services.StatementFormat) ([]byte, error) {
	if s.generateFn == nil {
		return nil, nil
	}
	return s.generateFn(ctx, customerID, number, from, to, format)
}

type stubLoans struct {
	applyFn        func(ctx context.Context, req services.ApplyRequest) (models.Loan, error)
	approveFn      func(ctx context.Context, actorID, loanID string) (models.Loan, error)
	rejectFn       func(ctx context.Context, actorID, loanID, reason string) (models.Loan, error)
	disburseFn     func(ctx context.Context, actorID, loanID string) (models.Loan, error)
	payFn          func(ctx context.Context, customerID, loanID string, amount int64) (models.Installment, models.Loan, error)
	renewFn        func(ctx context.Context, customerID, loanID string, additional int64, tenure int) (models.Loan, error)
	closeFn        func(ctx context.Context, customerID, loanID string) (models.Loan, error)
	getFn          func(ctx context.Context, actorID, loanID string) (models.Loan, error)
	listMineFn     func(ctx context.Context, customerID string) ([]models.Loan, error)
	installmentsFn func(ctx context.Context, actorID, loanID string) ([]models.Installment, error)
	listPendingFn  func(ctx context.Context, actorID string, page, size int) ([]models.Loan, error)
	listAllFn      func(ctx context.Context, actorID string, status models.LoanStatus, page, size int) ([]models.Loan, error)
}

func (s stubLoans) Apply(ctx context.Context, req services.ApplyRequest) (models.Loan, error) {
	if s.applyFn == nil {
		return models.Loan{}, nil
	}
	return s.applyFn(ctx, req)
}

func (s stubLoans) Approve(ctx context.Context, actorID, loanID string) (models.Loan, error) {
	if s.approveFn == nil {
		return models.Loan{}, nil
	}
	return s.approveFn(ctx, actorID, loanID)
}

func (s stubLoans) Reject(ctx context.Context, actorID, loanID, reason string) (models.Loan, error) {
	if s.rejectFn == nil {
		return models.Loan{}, nil
	}
	return s.rejectFn(ctx, actorID, loanID, reason)
}

func (s stubLoans) Disburse(ctx context.Context, actorID, loanID string) (models.Loan, error) {
	if s.disburseFn == nil {
		return models.Loan{}, nil
	}
	return s.disburseFn(ctx, actorID, loanID)
}

func (s stubLoans) PayInstallment(ctx context.Context, customerID, loanID string, amount int64) (models.Installment, models.Loan, error) {
	if s.payFn == nil {
		return models.Installment{}, models.Loan{}, nil
	}
	return s.payFn(ctx, customerID, loanID, amount)
}

func (s stubLoans) Renew(ctx context.Context, customerID, loanID string, additional int64, tenure int) (models.Loan, error) {
	if s.renewFn == nil {
		return models.Loan{}, nil
	}
	return s.renewFn(ctx, customerID, loanID, additional, tenure)
}

func (s stubLoans) Close(ctx context.Context, customerID, loanID string) (models.Loan, error) {
	if s.closeFn == nil {
		return models.Loan{}, nil
	}
	return s.closeFn(ctx, customerID, loanID)
}

func (s stubLoans) Get(ctx context.Context, actorID, loanID string) (models.Loan, error) {
	if s.getFn == nil {
		return models.Loan{}, nil
	}
	return s.getFn(ctx, actorID, loanID)
}

func (s stubLoans) ListMine(ctx context.Context, customerID string) ([]models.Loan, error) {
	if s.listMineFn == nil {
		return nil, nil
	}
	return s.listMineFn(ctx, customerID)
}

func (s stubLoans) Installments(ctx context.Context, actorID, loanID string) ([]models.Installment, error) {
	if s.installmentsFn == nil {
		return nil, nil
	}
	return s.installmentsFn(ctx, actorID, loanID)
}

func (s stubLoans) ListPending(ctx context.Context, actorID string, page, size int) ([]models.Loan, error) {
	if s.listPendingFn == nil {
		return nil, nil
	}
	return s.listPendingFn(ctx, actorID, page, size)
}

func (s stubLoans) ListAll(ctx context.Context, actorID string, status models.LoanStatus, page, size int) ([]models.Loan, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, actorID, status, page, size)
}

type stubCustomers struct {
	registerFn       func(ctx context.Context, reg services.Registration) (models.Customer, error)
	registerStaffFn  func(ctx context.Context, actorID string, reg services.Registration, role models.Role) (models.Customer, error)
	authenticateFn   func(ctx context.Context, email, password string) (models.Customer, error)
	profileFn        func(ctx context.Context, customerID string) (models.Customer, error)
	updateProfileFn  func(ctx context.Context, customerID string, p store.ProfileUpdate) (models.Customer, error)
	changePasswordFn func(ctx context.Context, customerID, current, next string) error
}

func (s stubCustomers) Register(ctx context.Context, reg services.Registration) (models.Customer, error) {
	if s.registerFn == nil {
		return models.Customer{}, nil
	}
	return s.registerFn(ctx, reg)
}

func (s stubCustomers) RegisterStaff(ctx context.Context, actorID string, reg services.Registration, role models.Role) (models.Customer, error) {
	if s.registerStaffFn == nil {
		return models.Customer{}, nil
	}
	return s.registerStaffFn(ctx, actorID, reg, role)
}

func (s stubCustomers) Authenticate(ctx context.Context, email, password string) (models.Customer, error) {
	if s.authenticateFn == nil {
		return models.Customer{}, nil
	}
	return s.authenticateFn(ctx, email, password)
}

func (s stubCustomers) Profile(ctx context.Context, customerID string) (models.Customer, error) {
	if s.profileFn == nil {
		return models.Customer{ID: customerID, Role: models.RoleUser}, nil
	}
	return s.profileFn(ctx, customerID)
}

func (s stubCustomers) UpdateProfile(ctx context.Context, customerID string, p store.ProfileUpdate) (models.Customer, error) {
	if s.updateProfileFn == nil {
		return models.Customer{}, nil
	}
	return s.updateProfileFn(ctx, customerID, p)
}

func (s stubCustomers) ChangePassword(ctx context.Context, customerID, current, next string) error {
	if s.changePasswordFn == nil {
		return nil
	}
	return s.changePasswordFn(ctx, customerID, current, next)
}

type stubDashboards struct {
	customerFn  func(ctx context.Context, customerID string) (services.CustomerDashboard, error)
	officerFn   func(ctx context.Context, officerID string) (services.OfficerDashboard, error)
	adminFn     func(ctx context.Context, adminID string) (services.AdminDashboard, error)
	customersFn func(ctx context.Context, adminID string, page, size int) ([]models.Customer, error)
	auditFn     func(ctx context.Context, adminID string, page, size int) ([]models.AuditEntry, error)
}

func (s stubDashboards) Customer(ctx context.Context, customerID string) (services.CustomerDashboard, error) {
	if s.customerFn == nil {
		return services.CustomerDashboard{}, nil
	}
	return s.customerFn(ctx, customerID)
}

func (s stubDashboards) Officer(ctx context.Context, officerID string) (services.OfficerDashboard, error) {
	if s.officerFn == nil {
		return services.OfficerDashboard{}, nil
	}
	return s.officerFn(ctx, officerID)
}

func (s stubDashboards) Admin(ctx context.Context, adminID string) (services.AdminDashboard, error) {
	if s.adminFn == nil {
		return services.AdminDashboard{}, nil
	}
	return s.adminFn(ctx, adminID)
}

func (s stubDashboards) Customers(ctx context.Context, adminID string, page, size int) ([]models.Customer, error) {
	if s.customersFn == nil {
		return nil, nil
	}
	return s.customersFn(ctx, adminID, page, size)
}

func (s stubDashboards) AuditTrail(ctx context.Context, adminID string, page, size int) ([]models.AuditEntry, error) {
	if s.auditFn == nil {
		return nil, nil
	}
	return s.auditFn(ctx, adminID, page, size)
}

// stubRoles maps customer ids to roles; unknown ids are plain users.
type stubRoles map[string]models.Role

func (s stubRoles) GetRole(_ context.Context, customerID string) (models.Role, error) {
	if role, ok := s[customerID]; ok {
		return role, nil
	}
	return models.RoleUser, nil
}

type stubPinger struct {
	err error
}

func (s stubPinger) PingContext(context.Context) error {
	return s.err
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		AuthRateLimit:  100,
	}
}

func fillServices(svc Services) Services {
	if svc.Ledger == nil {
		svc.Ledger = stubLedger{}
	}
	if svc.Statements == nil {
		svc.Statements = stubStatements{}
	}
	if svc.Loans == nil {
		svc.Loans = stubLoans{}
	}
	if svc.Customers == nil {
		svc.Customers = stubCustomers{}
	}
	if svc.Dashboards == nil {
		svc.Dashboards = stubDashboards{}
	}
	return svc
}

func newTestHandler(svc Services, roles stubRoles) *Handler {
	return New(testConfig(), zap.NewNop(), fillServices(svc), roles, nil, nil, websocket.NewHub(), nil)
}

func tokenFor(t *testing.T, customerID string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, customerID, time.Minute)
	require.NoError(t, err)
	return token
}

// serve dispatches through the full router; an empty customerID sends no token.
func serve(t *testing.T, h http.Handler, method, path, body, customerID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if customerID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, customerID))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func authedRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
