package store

import (
	"context"

	"bankloan/internal/models"
)

type InstallmentStore struct {
	db DB
}

func NewInstallmentStore(db DB) *InstallmentStore {
	return &InstallmentStore{db: db}
}

func (s *InstallmentStore) Create(ctx context.Context, tx Execer, in models.Installment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO installments (id, loan_id, product, sequence, amount, due_date, paid_date, paid_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, in.ID, in.LoanID, in.Product, in.Sequence, in.Amount, in.DueDate, in.PaidDate, in.PaidAmount, in.Status)
	return err
}

// CountByLoan reads through tx so the count observes the locked loan.
func (s *InstallmentStore) CountByLoan(ctx context.Context, tx Getter, loanID string) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM installments WHERE loan_id = $1`, loanID)
	return n, err
}

func (s *InstallmentStore) ListByLoan(ctx context.Context, loanID string) ([]models.Installment, error) {
	var rows []models.Installment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, loan_id, product, sequence, amount, due_date, paid_date, paid_amount, status
		FROM installments
		WHERE loan_id = $1
		ORDER BY sequence
	`, loanID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
