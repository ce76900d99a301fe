package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bankloan/internal/auth"
	"bankloan/internal/db"
	"bankloan/internal/models"
	"bankloan/internal/store"
	"bankloan/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type CustomerStore interface {
	RoleStore
	Create(ctx context.Context, tx store.Execer, c models.Customer) error
	GetByEmail(ctx context.Context, email string) (models.Customer, error)
	GetByID(ctx context.Context, id string) (models.Customer, error)
	HasAnyAdmin(ctx context.Context, q store.Getter) (bool, error)
	UpdateProfile(ctx context.Context, tx store.Execer, id string, p store.ProfileUpdate) (int64, error)
	UpdatePassword(ctx context.Context, tx store.Execer, id, passwordHash string) error
}

type Registration struct {
	Email       string
	Password    string
	Name        string
	Phone       *string
	Address     *string
	DateOfBirth *time.Time
}

type CustomerService struct {
	txRunner  db.TxRunner
	customers CustomerStore
	audit     AuditStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewCustomerService(txRunner db.TxRunner, customers CustomerStore, audit AuditStore, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{
		txRunner:  txRunner,
		customers: customers,
		audit:     audit,
		logger:    logger.Named("customers"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a USER. The first customer of an empty system becomes
// ADMIN so the deployment can bootstrap its staff.
func (s *CustomerService) Register(ctx context.Context, reg Registration) (models.Customer, error) {
	return s.create(ctx, "", reg, "")
}

// RegisterStaff lets an administrator create ADMIN or LOAN_OFFICER customers.
func (s *CustomerService) RegisterStaff(ctx context.Context, actorID string, reg Registration, role models.Role) (models.Customer, error) {
	if role != models.RoleAdmin && role != models.RoleLoanOfficer {
		return models.Customer{}, ErrInvalidRole
	}
	if _, err := requireCapability(ctx, s.customers, actorID, models.CapManageStaff); err != nil {
		return models.Customer{}, err
	}
	return s.create(ctx, actorID, reg, role)
}

func (s *CustomerService) create(ctx context.Context, actorID string, reg Registration, role models.Role) (models.Customer, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	if err := validator.ValidateEmail(reg.Email); err != nil {
		return models.Customer{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validator.ValidateName(reg.Name); err != nil {
		return models.Customer{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validator.ValidatePassword(reg.Password); err != nil {
		return models.Customer{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.checkBirthDate(reg.DateOfBirth); err != nil {
		return models.Customer{}, err
	}
	if _, err := s.customers.GetByEmail(ctx, reg.Email); err == nil {
		return models.Customer{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return models.Customer{}, err
	}
	customer := models.Customer{
		ID:           uuid.NewString(),
		Email:        reg.Email,
		PasswordHash: hash,
		Name:         reg.Name,
		Role:         role,
		Phone:        reg.Phone,
		Address:      reg.Address,
		DateOfBirth:  reg.DateOfBirth,
		CreatedAt:    s.now(),
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if customer.Role == "" {
			customer.Role = models.RoleUser
			hasAdmin, err := s.customers.HasAnyAdmin(ctx, tx)
			if err != nil {
				return err
			}
			if !hasAdmin {
				customer.Role = models.RoleAdmin
			}
		}
		if err := s.customers.Create(ctx, tx, customer); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		actor := actorID
		if actor == "" {
			actor = customer.ID
		}
		return s.audit.Log(ctx, tx, actor, "customer.register", "customer", customer.ID, auditData(map[string]string{
			"role": string(customer.Role),
		}))
	})
	if err != nil {
		return models.Customer{}, err
	}
	s.logger.Info("customer registered", zap.String("customer_id", customer.ID), zap.String("role", string(customer.Role)))
	return customer, nil
}

func (s *CustomerService) Authenticate(ctx context.Context, email, password string) (models.Customer, error) {
	customer, err := s.customers.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Customer{}, ErrInvalidCredentials
		}
		return models.Customer{}, err
	}
	if !auth.CheckPassword(customer.PasswordHash, password) {
		return models.Customer{}, ErrInvalidCredentials
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.audit.Log(ctx, tx, customer.ID, "customer.login", "customer", customer.ID, "")
	})
	if err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *CustomerService) Profile(ctx context.Context, customerID string) (models.Customer, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return models.Customer{}, notFound(err, ErrCustomerNotFound)
	}
	return customer, nil
}

func (s *CustomerService) UpdateProfile(ctx context.Context, customerID string, p store.ProfileUpdate) (models.Customer, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validator.ValidateName(p.Name); err != nil {
		return models.Customer{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.checkBirthDate(p.DateOfBirth); err != nil {
		return models.Customer{}, err
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.customers.UpdateProfile(ctx, tx, customerID, p)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrCustomerNotFound
		}
		return s.audit.Log(ctx, tx, customerID, "customer.update_profile", "customer", customerID, "")
	})
	if err != nil {
		return models.Customer{}, err
	}
	return s.Profile(ctx, customerID)
}

func (s *CustomerService) ChangePassword(ctx context.Context, customerID, current, next string) error {
	customer, err := s.Profile(ctx, customerID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(customer.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := validator.ValidatePassword(next); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.customers.UpdatePassword(ctx, tx, customerID, hash); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, customerID, "customer.change_password", "customer", customerID, "")
	})
}

func (s *CustomerService) checkBirthDate(dob *time.Time) error {
	if dob != nil && dob.After(s.now()) {
		return fmt.Errorf("%w: date of birth is in the future", ErrValidation)
	}
	return nil
}
