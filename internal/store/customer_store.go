package store

import (
	"context"
	"time"

	"bankloan/internal/models"
)

type CustomerStore struct {
	db DB
}

func NewCustomerStore(db DB) *CustomerStore {
	return &CustomerStore{db: db}
}

const customerColumns = `id, email, password_hash, name, role, phone, address, date_of_birth, created_at`

func (s *CustomerStore) Create(ctx context.Context, tx Execer, c models.Customer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO customers (id, email, password_hash, name, role, phone, address, date_of_birth)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Email, c.PasswordHash, c.Name, c.Role, c.Phone, c.Address, c.DateOfBirth)
	return err
}

func (s *CustomerStore) GetByEmail(ctx context.Context, email string) (models.Customer, error) {
	var row models.Customer
	err := s.db.GetContext(ctx, &row, `SELECT `+customerColumns+` FROM customers WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return models.Customer{}, err
	}
	return row, nil
}

func (s *CustomerStore) GetByID(ctx context.Context, id string) (models.Customer, error) {
	var row models.Customer
	err := s.db.GetContext(ctx, &row, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if err != nil {
		return models.Customer{}, err
	}
	return row, nil
}

func (s *CustomerStore) GetRole(ctx context.Context, id string) (models.Role, error) {
	var role models.Role
	if err := s.db.GetContext(ctx, &role, `SELECT role FROM customers WHERE id = $1`, id); err != nil {
		return "", err
	}
	return role, nil
}

// HasAnyAdmin reads through q so the check shares the caller's serializable
// transaction with the insert that depends on it.
func (s *CustomerStore) HasAnyAdmin(ctx context.Context, q Getter) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM customers WHERE role = 'ADMIN')`)
	return exists, err
}

type ProfileUpdate struct {
	Name        string
	Phone       *string
	Address     *string
	DateOfBirth *time.Time
}

func (s *CustomerStore) UpdateProfile(ctx context.Context, tx Execer, id string, p ProfileUpdate) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET name = $1, phone = $2, address = $3, date_of_birth = $4, updated_at = NOW()
		WHERE id = $5
	`, p.Name, p.Phone, p.Address, p.DateOfBirth, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *CustomerStore) UpdatePassword(ctx context.Context, tx Execer, id, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`, passwordHash, id)
	return err
}

func (s *CustomerStore) List(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	var rows []models.Customer
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+customerColumns+`
		FROM customers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CustomerStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM customers`)
	return n, err
}
