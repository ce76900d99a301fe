package store

import (
	"context"

	"bankloan/internal/models"
)

type AccountStore struct {
	db DB
}

// BalanceCheck compares the stored balance with the signed fold of the
// account's transaction log.
type BalanceCheck struct {
	ID                string `db:"id" json:"id"`
	CustomerID        string `db:"customer_id" json:"customer_id"`
	Number            string `db:"account_number" json:"account_number"`
	StoredBalance     int64  `db:"stored_balance" json:"stored_balance"`
	CalculatedBalance int64  `db:"calculated_balance" json:"calculated_balance"`
	Difference        int64  `db:"difference" json:"difference"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, customer_id, account_number, balance, status, created_at`

func (s *AccountStore) Create(ctx context.Context, tx Execer, a models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, customer_id, account_number, balance, status)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.CustomerID, a.Number, a.Balance, a.Status)
	return err
}

func (s *AccountStore) GetByNumber(ctx context.Context, number string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, number string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE
	`, number)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByIDForUpdate(ctx context.Context, tx Getter, id string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, id string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, id)
	return err
}

func (s *AccountStore) ListByCustomer(ctx context.Context, customerID string) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE customer_id = $1
		ORDER BY created_at
	`, customerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reconcile returns balance checks for one customer, or for every account
// when customerID is empty.
func (s *AccountStore) Reconcile(ctx context.Context, customerID string) ([]BalanceCheck, error) {
	var rows []BalanceCheck
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id,
		       a.customer_id,
		       a.account_number,
		       a.balance AS stored_balance,
		       COALESCE(SUM(CASE WHEN t.type IN ('DEPOSIT', 'TRANSFER_IN') THEN t.amount ELSE -t.amount END), 0) AS calculated_balance,
		       a.balance - COALESCE(SUM(CASE WHEN t.type IN ('DEPOSIT', 'TRANSFER_IN') THEN t.amount ELSE -t.amount END), 0) AS difference
		FROM accounts a
		LEFT JOIN transactions t ON t.account_id = a.id
		WHERE ($1 = '' OR a.customer_id = $1)
		GROUP BY a.id, a.customer_id, a.account_number, a.balance
		ORDER BY a.account_number
	`, customerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) TotalBalance(ctx context.Context, customerID string) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE customer_id = $1`, customerID)
	return total, err
}

func (s *AccountStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM accounts`)
	return n, err
}
