package store

import (
	"context"
	"strconv"
	"time"

	"bankloan/internal/models"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `id, account_id, type, amount, ref_account_id, description, category, client_request_id, occurred_at`

// Append writes a log entry. Entries are never updated except for their
// description and category.
func (s *TransactionStore) Append(ctx context.Context, tx Execer, t models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, type, amount, ref_account_id, description, category, client_request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.AccountID, t.Type, t.Amount, t.RefAccountID, t.Description, t.Category, t.ClientRequestID, t.OccurredAt)
	return err
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) Recent(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListBefore returns every entry strictly before the cutoff, oldest first.
func (s *TransactionStore) ListBefore(ctx context.Context, accountID string, before time.Time) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1 AND occurred_at < $2
		ORDER BY occurred_at, id
	`, accountID, before)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListBetween returns entries in [from, to), oldest first.
func (s *TransactionStore) ListBetween(ctx context.Context, accountID string, from, to time.Time) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at, id
	`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type TransactionFilter struct {
	AccountID string
	From      *time.Time
	To        *time.Time
	MinAmount *int64
	MaxAmount *int64
	Type      models.TransactionType
	Category  string
	Limit     int
	Offset    int
}

// Search lists entries newest first and returns the total match count.
func (s *TransactionStore) Search(ctx context.Context, f TransactionFilter) ([]models.Transaction, int64, error) {
	where := ` WHERE account_id = $1`
	args := []any{f.AccountID}
	add := func(clause string, value any) {
		args = append(args, value)
		where += " AND " + clause + " $" + strconv.Itoa(len(args))
	}
	if f.From != nil {
		add("occurred_at >=", *f.From)
	}
	if f.To != nil {
		add("occurred_at <", *f.To)
	}
	if f.MinAmount != nil {
		add("amount >=", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		add("amount <=", *f.MaxAmount)
	}
	if f.Type != "" {
		add("type =", f.Type)
	}
	if f.Category != "" {
		add("category =", f.Category)
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY occurred_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	var rows []models.Transaction
	if err := s.db.SelectContext(ctx, &rows, query, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *TransactionStore) UpdateDescription(ctx context.Context, tx Execer, id, description string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE transactions SET description = $1 WHERE id = $2`, description, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TransactionStore) UpdateCategory(ctx context.Context, tx Execer, id, category string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE transactions SET category = $1 WHERE id = $2`, category, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type Activity struct {
	models.Transaction
	AccountNumber string `db:"account_number" json:"account_number"`
}

func (s *TransactionStore) RecentForCustomer(ctx context.Context, customerID string, limit int) ([]Activity, error) {
	var rows []Activity
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.account_id, t.type, t.amount, t.ref_account_id, t.description, t.category,
		       t.client_request_id, t.occurred_at, a.account_number
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.customer_id = $1
		ORDER BY t.occurred_at DESC, t.id DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
