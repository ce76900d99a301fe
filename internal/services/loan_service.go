package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bankloan/internal/db"
	"bankloan/internal/models"
	"bankloan/internal/money"
	"bankloan/internal/observability"
	"bankloan/internal/store"
	"bankloan/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxRateDecimals = 4

type LoanStore interface {
	Create(ctx context.Context, tx store.Execer, l models.Loan) error
	GetByID(ctx context.Context, id string) (models.Loan, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Loan, error)
	Update(ctx context.Context, tx store.Execer, l models.Loan) error
	ListByCustomer(ctx context.Context, customerID string) ([]models.Loan, error)
	List(ctx context.Context, status models.LoanStatus, limit, offset int) ([]models.Loan, error)
}

type InstallmentStore interface {
	Create(ctx context.Context, tx store.Execer, in models.Installment) error
	CountByLoan(ctx context.Context, tx store.Getter, loanID string) (int, error)
	ListByLoan(ctx context.Context, loanID string) ([]models.Installment, error)
}

type ApplyRequest struct {
	CustomerID    string
	Product       models.ProductType
	Principal     int64
	InterestRate  decimal.Decimal
	TenureMonths  int
	AccountNumber string
	Details       models.ProductDetails
}

type LoanService struct {
	txRunner     db.TxRunner
	loans        LoanStore
	installments InstallmentStore
	accounts     AccountStore
	transactions TransactionStore
	roles        RoleStore
	audit        AuditStore
	hub          BalanceHub
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

func NewLoanService(txRunner db.TxRunner, loans LoanStore, installments InstallmentStore, accounts AccountStore, transactions TransactionStore, roles RoleStore, audit AuditStore, hub BalanceHub, metrics *observability.Metrics, logger *zap.Logger) *LoanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanService{
		txRunner:     txRunner,
		loans:        loans,
		installments: installments,
		accounts:     accounts,
		transactions: transactions,
		roles:        roles,
		audit:        audit,
		hub:          hub,
		metrics:      metrics,
		logger:       logger.Named("loans"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

var loanTransitions = map[models.LoanStatus][]models.LoanStatus{
	models.LoanPending:   {models.LoanApproved, models.LoanRejected},
	models.LoanApproved:  {models.LoanDisbursed, models.LoanActive},
	models.LoanDisbursed: {models.LoanDisbursed, models.LoanActive},
	models.LoanActive:    {models.LoanClosed},
}

// transition is the only place a loan changes status.
func transition(l *models.Loan, to models.LoanStatus) error {
	if l.Status == models.LoanClosed && to == models.LoanClosed {
		return ErrLoanAlreadyClosed
	}
	for _, next := range loanTransitions[l.Status] {
		if next == to {
			l.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, l.Status, to)
}

func validateTerms(principal int64, rate decimal.Decimal, tenure int) error {
	if principal <= 0 {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidLoanTerms)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative", ErrInvalidLoanTerms)
	}
	if !rate.Equal(rate.Round(maxRateDecimals)) {
		return fmt.Errorf("%w: interest rate allows at most %d decimals", ErrInvalidLoanTerms, maxRateDecimals)
	}
	if tenure < 1 || tenure > money.MaxTenureMonths {
		return fmt.Errorf("%w: tenure must be between 1 and %d months", ErrInvalidLoanTerms, money.MaxTenureMonths)
	}
	return nil
}

func (s *LoanService) Apply(ctx context.Context, req ApplyRequest) (models.Loan, error) {
	if err := validateTerms(req.Principal, req.InterestRate, req.TenureMonths); err != nil {
		return models.Loan{}, err
	}
	policy, err := policyFor(req.Product)
	if err != nil {
		return models.Loan{}, err
	}
	if req.Details == nil || req.Details.Product() != req.Product {
		return models.Loan{}, fmt.Errorf("%w: details do not match product %s", ErrInvalidDetails, req.Product)
	}
	if err := validator.Struct(req.Details); err != nil {
		return models.Loan{}, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	if err := policy.validate(req, req.Details); err != nil {
		return models.Loan{}, err
	}
	loan := models.Loan{
		ID:           uuid.NewString(),
		CustomerID:   req.CustomerID,
		Product:      req.Product,
		Principal:    req.Principal,
		InterestRate: req.InterestRate,
		TenureMonths: req.TenureMonths,
		Status:       models.LoanPending,
		Outstanding:  req.Principal,
		AppliedAt:    s.now(),
	}
	if req.AccountNumber != "" {
		account, err := s.accounts.GetByNumber(ctx, req.AccountNumber)
		if err != nil {
			return models.Loan{}, notFound(err, ErrAccountNotFound)
		}
		if account.CustomerID != req.CustomerID {
			return models.Loan{}, ErrUnauthorizedAccount
		}
		if account.Status != models.AccountActive {
			return models.Loan{}, ErrAccountInactive
		}
		loan.AccountID = &account.ID
	}
	loan.EMI, err = money.EMI(loan.Principal, loan.InterestRate, loan.TenureMonths)
	if err != nil {
		return models.Loan{}, fmt.Errorf("%w: %v", ErrInvalidLoanTerms, err)
	}
	loan.RawDetails, err = models.EncodeDetails(policy.prepare(req.Details))
	if err != nil {
		return models.Loan{}, err
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.loans.Create(ctx, tx, loan); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.CustomerID, "loan.apply", "loan", loan.ID, auditData(map[string]string{
			"product":   string(loan.Product),
			"principal": money.FormatMinor(loan.Principal),
		}))
	})
	if err != nil {
		return models.Loan{}, err
	}
	s.metrics.LoanTransition(string(loan.Product), "NEW", string(models.LoanPending))
	s.logger.Info("loan applied", zap.String("loan_id", loan.ID), zap.String("product", string(loan.Product)))
	return loan, nil
}

func (s *LoanService) Approve(ctx context.Context, actorID, loanID string) (models.Loan, error) {
	if _, err := requireCapability(ctx, s.roles, actorID, models.CapReviewLoans); err != nil {
		return models.Loan{}, err
	}
	return s.mutate(ctx, actorID, loanID, "loan.approve", func(tx *sqlx.Tx, loan *models.Loan) error {
		if loan.Status != models.LoanPending {
			return ErrLoanNotPending
		}
		policy, details, err := s.policyAndDetails(*loan)
		if err != nil {
			return err
		}
		now := s.now()
		amount, date := policy.firstTranche(*loan, details, now)
		if err := transition(loan, models.LoanApproved); err != nil {
			return err
		}
		loan.ApprovedAt = &now
		loan.ApprovedBy = &actorID
		loan.NextDisbursementAmount = &amount
		loan.NextDisbursementDate = &date
		return nil
	})
}

func (s *LoanService) Reject(ctx context.Context, actorID, loanID, reason string) (models.Loan, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Loan{}, ErrReasonRequired
	}
	if _, err := requireCapability(ctx, s.roles, actorID, models.CapReviewLoans); err != nil {
		return models.Loan{}, err
	}
	return s.mutate(ctx, actorID, loanID, "loan.reject", func(tx *sqlx.Tx, loan *models.Loan) error {
		if loan.Status != models.LoanPending {
			return ErrLoanNotPending
		}
		if err := transition(loan, models.LoanRejected); err != nil {
			return err
		}
		loan.RejectionReason = &reason
		return nil
	})
}

// Disburse pays the next tranche into the funding account. The credit is a
// regular DEPOSIT so the account balance keeps matching its log.
func (s *LoanService) Disburse(ctx context.Context, actorID, loanID string) (models.Loan, error) {
	if _, err := requireCapability(ctx, s.roles, actorID, models.CapReviewLoans); err != nil {
		return models.Loan{}, err
	}
	var credited models.Account
	loan, err := s.mutate(ctx, actorID, loanID, "loan.disburse", func(tx *sqlx.Tx, loan *models.Loan) error {
		if loan.Status != models.LoanApproved && loan.Status != models.LoanDisbursed {
			return ErrLoanNotDisbursable
		}
		if loan.AccountID == nil {
			return ErrFundingAccount
		}
		policy, details, err := s.policyAndDetails(*loan)
		if err != nil {
			return err
		}
		remaining := loan.Principal - loan.DisbursedAmount
		tranche := remaining
		if loan.NextDisbursementAmount != nil && *loan.NextDisbursementAmount < remaining {
			tranche = *loan.NextDisbursementAmount
		}
		if tranche <= 0 {
			return ErrLoanNotDisbursable
		}
		account, err := s.accounts.GetByIDForUpdate(ctx, tx, *loan.AccountID)
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		if account.Status != models.AccountActive {
			return ErrAccountInactive
		}
		now := s.now()
		if account.Balance, err = credit(account.Balance, tranche); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, account.ID, account.Balance); err != nil {
			return err
		}
		description := "loan disbursement " + loan.ID
		if err := s.transactions.Append(ctx, tx, models.Transaction{
			ID:          uuid.NewString(),
			AccountID:   account.ID,
			Type:        models.TxDeposit,
			Amount:      tranche,
			Description: &description,
			OccurredAt:  now,
		}); err != nil {
			return err
		}
		credited = account
		loan.DisbursedAmount += tranche
		if loan.DisbursedAt == nil {
			loan.DisbursedAt = &now
		}
		if loan.Principal-loan.DisbursedAmount > 0 {
			amount, date := nextTranche(policy, *loan, details, now)
			loan.NextDisbursementAmount = &amount
			loan.NextDisbursementDate = &date
			return transition(loan, models.LoanDisbursed)
		}
		start, settled := policy.activate(details, now)
		raw, err := models.EncodeDetails(settled)
		if err != nil {
			return err
		}
		loan.RawDetails = raw
		loan.NextDisbursementAmount = nil
		loan.NextDisbursementDate = nil
		loan.EMIStartDate = &start
		return transition(loan, models.LoanActive)
	})
	if err != nil {
		return models.Loan{}, err
	}
	if s.hub != nil {
		s.hub.BroadcastBalance(credited.CustomerID, balanceUpdate(credited))
	}
	return loan, nil
}

// PayInstallment accepts exactly one EMI, or the remaining outstanding when
// it is smaller than the EMI.
func (s *LoanService) PayInstallment(ctx context.Context, customerID, loanID string, amount int64) (models.Installment, models.Loan, error) {
	if amount <= 0 {
		return models.Installment{}, models.Loan{}, ErrInvalidAmount
	}
	var paid models.Installment
	loan, err := s.mutate(ctx, customerID, loanID, "loan.pay_installment", func(tx *sqlx.Tx, loan *models.Loan) error {
		if loan.CustomerID != customerID {
			return ErrUnauthorizedLoan
		}
		if loan.Status != models.LoanActive {
			return ErrLoanNotActive
		}
		now := s.now()
		if loan.EMIStartDate == nil || now.Before(*loan.EMIStartDate) {
			return ErrEMINotStarted
		}
		expected := loan.EMI
		if loan.Outstanding <= loan.EMI {
			expected = loan.Outstanding
		}
		if amount != expected {
			return fmt.Errorf("%w: expected %s", ErrAmountMismatch, money.FormatMinor(expected))
		}
		count, err := s.installments.CountByLoan(ctx, tx, loan.ID)
		if err != nil {
			return err
		}
		paid = models.Installment{
			ID:         uuid.NewString(),
			LoanID:     loan.ID,
			Product:    loan.Product,
			Sequence:   count + 1,
			Amount:     expected,
			DueDate:    loan.EMIStartDate.AddDate(0, count, 0),
			PaidDate:   &now,
			PaidAmount: &amount,
			Status:     models.InstallmentPaid,
		}
		if err := s.installments.Create(ctx, tx, paid); err != nil {
			return err
		}
		loan.Outstanding -= amount
		if loan.Outstanding == 0 {
			loan.ClosedAt = &now
			return transition(loan, models.LoanClosed)
		}
		return nil
	})
	if err != nil {
		return models.Installment{}, models.Loan{}, err
	}
	s.metrics.InstallmentPaid(string(loan.Product))
	return paid, loan, nil
}

// Renew tops up an active loan: the additional amount joins the outstanding
// balance, which becomes the new principal over the new tenure.
func (s *LoanService) Renew(ctx context.Context, customerID, loanID string, additional int64, tenureMonths int) (models.Loan, error) {
	if additional <= 0 {
		return models.Loan{}, ErrInvalidAmount
	}
	if tenureMonths < 1 || tenureMonths > money.MaxTenureMonths {
		return models.Loan{}, fmt.Errorf("%w: tenure must be between 1 and %d months", ErrInvalidLoanTerms, money.MaxTenureMonths)
	}
	return s.mutate(ctx, customerID, loanID, "loan.renew", func(tx *sqlx.Tx, loan *models.Loan) error {
		if loan.CustomerID != customerID {
			return ErrUnauthorizedLoan
		}
		if loan.Status != models.LoanActive {
			return ErrLoanNotActive
		}
		principal := loan.Outstanding + additional
		emi, err := money.EMI(principal, loan.InterestRate, tenureMonths)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLoanTerms, err)
		}
		loan.Principal = principal
		loan.Outstanding = principal
		loan.TenureMonths = tenureMonths
		loan.EMI = emi
		return nil
	})
}

func (s *LoanService) Close(ctx context.Context, customerID, loanID string) (models.Loan, error) {
	return s.mutate(ctx, customerID, loanID, "loan.close", func(tx *sqlx.Tx, loan *models.Loan) error {
		if loan.CustomerID != customerID {
			return ErrUnauthorizedLoan
		}
		if loan.Status == models.LoanClosed {
			return ErrLoanAlreadyClosed
		}
		if loan.Outstanding != 0 {
			return ErrOutstandingBalance
		}
		now := s.now()
		loan.ClosedAt = &now
		return transition(loan, models.LoanClosed)
	})
}

// mutate locks the loan, applies fn and persists the result with an audit
// row in the same transaction.
func (s *LoanService) mutate(ctx context.Context, actorID, loanID, action string, fn func(tx *sqlx.Tx, loan *models.Loan) error) (models.Loan, error) {
	var before models.LoanStatus
	var loan models.Loan
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.loans.GetForUpdate(ctx, tx, loanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		before = loan.Status
		if err := fn(tx, &loan); err != nil {
			return err
		}
		if err := s.loans.Update(ctx, tx, loan); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, action, "loan", loan.ID, auditData(map[string]string{
			"from":        string(before),
			"to":          string(loan.Status),
			"outstanding": money.FormatMinor(loan.Outstanding),
		}))
	})
	if err != nil {
		return models.Loan{}, err
	}
	if before != loan.Status || loan.Status == models.LoanDisbursed {
		s.metrics.LoanTransition(string(loan.Product), string(before), string(loan.Status))
	}
	s.logger.Info(action,
		zap.String("loan_id", loan.ID),
		zap.String("actor_id", actorID),
		zap.String("from", string(before)),
		zap.String("to", string(loan.Status)),
	)
	return loan, nil
}

func (s *LoanService) policyAndDetails(loan models.Loan) (productPolicy, models.ProductDetails, error) {
	policy, err := policyFor(loan.Product)
	if err != nil {
		return nil, nil, err
	}
	details, err := loan.Details()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	return policy, details, nil
}

// Get returns a loan to its owner or to staff allowed to see every loan.
func (s *LoanService) Get(ctx context.Context, actorID, loanID string) (models.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return models.Loan{}, notFound(err, ErrLoanNotFound)
	}
	if loan.CustomerID == actorID {
		return loan, nil
	}
	if _, err := requireCapability(ctx, s.roles, actorID, models.CapViewAllLoans); err != nil {
		if errors.Is(err, ErrMissingCapability) {
			return models.Loan{}, ErrUnauthorizedLoan
		}
		return models.Loan{}, err
	}
	return loan, nil
}

func (s *LoanService) ListMine(ctx context.Context, customerID string) ([]models.Loan, error) {
	return s.loans.ListByCustomer(ctx, customerID)
}

func (s *LoanService) Installments(ctx context.Context, actorID, loanID string) ([]models.Installment, error) {
	if _, err := s.Get(ctx, actorID, loanID); err != nil {
		return nil, err
	}
	return s.installments.ListByLoan(ctx, loanID)
}

func (s *LoanService) ListPending(ctx context.Context, actorID string, page, size int) ([]models.Loan, error) {
	return s.ListAll(ctx, actorID, models.LoanPending, page, size)
}

func (s *LoanService) ListAll(ctx context.Context, actorID string, status models.LoanStatus, page, size int) ([]models.Loan, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown loan status %q", ErrValidation, status)
	}
	if _, err := requireCapability(ctx, s.roles, actorID, models.CapViewAllLoans); err != nil {
		return nil, err
	}
	page, size = normalizePage(page, size)
	return s.loans.List(ctx, status, size, page*size)
}
