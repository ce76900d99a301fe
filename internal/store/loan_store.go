package store

import (
	"context"
	"time"

	"bankloan/internal/models"
)

type LoanStore struct {
	db DB
}

func NewLoanStore(db DB) *LoanStore {
	return &LoanStore{db: db}
}

const loanColumns = `id, customer_id, product, account_id, principal, interest_rate, tenure_months, emi, status,
		       outstanding, disbursed_amount, next_disbursement_amount, next_disbursement_date, applied_at,
		       approved_at, approved_by, disbursed_at, emi_start_date, closed_at, rejection_reason, details`

func (s *LoanStore) Create(ctx context.Context, tx Execer, l models.Loan) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loans (id, customer_id, product, account_id, principal, interest_rate, tenure_months, emi,
		                   status, outstanding, applied_at, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, l.ID, l.CustomerID, l.Product, l.AccountID, l.Principal, l.InterestRate, l.TenureMonths, l.EMI,
		l.Status, l.Outstanding, l.AppliedAt, string(l.RawDetails))
	return err
}

func (s *LoanStore) GetByID(ctx context.Context, id string) (models.Loan, error) {
	var row models.Loan
	err := s.db.GetContext(ctx, &row, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	if err != nil {
		return models.Loan{}, err
	}
	return row, nil
}

func (s *LoanStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.Loan, error) {
	var row models.Loan
	err := tx.GetContext(ctx, &row, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.Loan{}, err
	}
	return row, nil
}

// Update persists every mutable column of the loan.
func (s *LoanStore) Update(ctx context.Context, tx Execer, l models.Loan) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET principal = $1, tenure_months = $2, emi = $3, status = $4, outstanding = $5,
		    disbursed_amount = $6, next_disbursement_amount = $7, next_disbursement_date = $8,
		    approved_at = $9, approved_by = $10, disbursed_at = $11, emi_start_date = $12,
		    closed_at = $13, rejection_reason = $14, details = $15, updated_at = NOW()
		WHERE id = $16
	`, l.Principal, l.TenureMonths, l.EMI, l.Status, l.Outstanding,
		l.DisbursedAmount, l.NextDisbursementAmount, l.NextDisbursementDate,
		l.ApprovedAt, l.ApprovedBy, l.DisbursedAt, l.EMIStartDate,
		l.ClosedAt, l.RejectionReason, string(l.RawDetails), l.ID)
	return err
}

func (s *LoanStore) ListByCustomer(ctx context.Context, customerID string) ([]models.Loan, error) {
	var rows []models.Loan
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE customer_id = $1
		ORDER BY applied_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List pages through loans, optionally restricted to one status. Pending
// queues read oldest first, every other listing newest first.
func (s *LoanStore) List(ctx context.Context, status models.LoanStatus, limit, offset int) ([]models.Loan, error) {
	order := "DESC"
	if status == models.LoanPending {
		order = "ASC"
	}
	var rows []models.Loan
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE ($1 = '' OR status = $1)
		ORDER BY applied_at `+order+`
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type LoanStat struct {
	Product     models.ProductType `db:"product" json:"product"`
	Status      models.LoanStatus  `db:"status" json:"status"`
	Count       int64              `db:"count" json:"count"`
	Principal   int64              `db:"principal" json:"principal"`
	Outstanding int64              `db:"outstanding" json:"outstanding"`
	Disbursed   int64              `db:"disbursed" json:"disbursed"`
	EMI         int64              `db:"emi" json:"emi"`
}

// Stats groups loans by product and status, for one customer or for the
// whole book when customerID is empty.
func (s *LoanStore) Stats(ctx context.Context, customerID string) ([]LoanStat, error) {
	var rows []LoanStat
	err := s.db.SelectContext(ctx, &rows, `
		SELECT product, status, COUNT(*) AS count,
		       COALESCE(SUM(principal), 0) AS principal,
		       COALESCE(SUM(outstanding), 0) AS outstanding,
		       COALESCE(SUM(disbursed_amount), 0) AS disbursed,
		       COALESCE(SUM(emi), 0) AS emi
		FROM loans
		WHERE ($1 = '' OR customer_id = $1)
		GROUP BY product, status
		ORDER BY product, status
	`, customerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LoanStore) CountApprovedBy(ctx context.Context, officerID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		FROM loans
		WHERE approved_by = $1 AND approved_at >= $2
	`, officerID, since)
	return n, err
}
