package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"bankloan/internal/db"
	"bankloan/internal/models"
	"bankloan/internal/money"
	"bankloan/internal/observability"
	"bankloan/internal/store"
	"bankloan/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	miniStatementSize = 5
	maxPageSize       = 100
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, a models.Account) error
	GetByNumber(ctx context.Context, number string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, number string) (models.Account, error)
	GetByIDForUpdate(ctx context.Context, tx store.Getter, id string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, id string, balance int64) error
	ListByCustomer(ctx context.Context, customerID string) ([]models.Account, error)
	Reconcile(ctx context.Context, customerID string) ([]store.BalanceCheck, error)
}

type TransactionStore interface {
	Append(ctx context.Context, tx store.Execer, t models.Transaction) error
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	Recent(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)
	ListBefore(ctx context.Context, accountID string, before time.Time) ([]models.Transaction, error)
	ListBetween(ctx context.Context, accountID string, from, to time.Time) ([]models.Transaction, error)
	Search(ctx context.Context, f store.TransactionFilter) ([]models.Transaction, int64, error)
	UpdateDescription(ctx context.Context, tx store.Execer, id, description string) (int64, error)
	UpdateCategory(ctx context.Context, tx store.Execer, id, category string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(customerID string, update websocket.BalanceUpdate)
}

type AccountSummary struct {
	ID            string               `json:"id"`
	AccountNumber string               `json:"account_number"`
	Balance       int64                `json:"balance"`
	Status        models.AccountStatus `json:"status"`
}

func summarize(a models.Account) AccountSummary {
	return AccountSummary{ID: a.ID, AccountNumber: a.Number, Balance: a.Balance, Status: a.Status}
}

type LedgerService struct {
	txRunner     db.TxRunner
	accounts     AccountStore
	transactions TransactionStore
	roles        RoleStore
	audit        AuditStore
	hub          BalanceHub
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

func NewLedgerService(txRunner db.TxRunner, accounts AccountStore, transactions TransactionStore, roles RoleStore, audit AuditStore, hub BalanceHub, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		txRunner:     txRunner,
		accounts:     accounts,
		transactions: transactions,
		roles:        roles,
		audit:        audit,
		hub:          hub,
		metrics:      metrics,
		logger:       logger.Named("ledger"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *LedgerService) CreateAccount(ctx context.Context, customerID string) (AccountSummary, error) {
	account := models.Account{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     models.AccountActive,
	}
	number, err := s.freeAccountNumber(ctx)
	if err != nil {
		return AccountSummary{}, err
	}
	account.Number = number
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.accounts.Create(ctx, tx, account); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, customerID, "account.create", "account", account.ID, auditData(map[string]string{"account_number": number}))
	})
	if err != nil {
		return AccountSummary{}, err
	}
	s.logger.Info("account opened", zap.String("account_number", number), zap.String("customer_id", customerID))
	return summarize(account), nil
}

func (s *LedgerService) freeAccountNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		candidate := fmt.Sprintf("ACC%d%03d", s.now().UnixMilli(), rand.Intn(1000))
		_, err := s.accounts.GetByNumber(ctx, candidate)
		if errors.Is(err, sql.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("unable to allocate account number")
}

type MoneyRequest struct {
	CustomerID      string
	AccountNumber   string
	AmountMinor     int64
	Description     string
	ClientRequestID *string
}

func (s *LedgerService) Deposit(ctx context.Context, req MoneyRequest) (AccountSummary, error) {
	summary, err := s.applySingle(ctx, req, models.TxDeposit)
	s.metrics.LedgerOperation("deposit", err, req.AmountMinor)
	return summary, err
}

func (s *LedgerService) Withdraw(ctx context.Context, req MoneyRequest) (AccountSummary, error) {
	summary, err := s.applySingle(ctx, req, models.TxWithdraw)
	s.metrics.LedgerOperation("withdraw", err, req.AmountMinor)
	return summary, err
}

// applySingle moves money in or out of one account under a row lock.
func (s *LedgerService) applySingle(ctx context.Context, req MoneyRequest, txType models.TransactionType) (AccountSummary, error) {
	if req.AmountMinor <= 0 {
		return AccountSummary{}, ErrInvalidAmount
	}
	var updated models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountNumber)
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		if account.CustomerID != req.CustomerID {
			return ErrUnauthorizedAccount
		}
		if account.Status != models.AccountActive {
			return ErrAccountInactive
		}
		balance, err := credit(account.Balance, txType.Signed(req.AmountMinor))
		if err != nil {
			return err
		}
		if balance < 0 {
			return ErrInsufficientFunds
		}
		if err := s.accounts.UpdateBalance(ctx, tx, account.ID, balance); err != nil {
			return err
		}
		entry := models.Transaction{
			ID:              uuid.NewString(),
			AccountID:       account.ID,
			Type:            txType,
			Amount:          req.AmountMinor,
			Description:     optionalString(req.Description),
			ClientRequestID: req.ClientRequestID,
			OccurredAt:      s.now(),
		}
		if err := s.transactions.Append(ctx, tx, entry); err != nil {
			return err
		}
		account.Balance = balance
		updated = account
		return s.audit.Log(ctx, tx, req.CustomerID, strings.ToLower(string(txType)), "account", account.ID, auditData(map[string]string{
			"transaction_id": entry.ID,
			"amount":         money.FormatMinor(req.AmountMinor),
		}))
	})
	if err != nil {
		return AccountSummary{}, err
	}
	s.publish(updated)
	return summarize(updated), nil
}

type TransferRequest struct {
	CustomerID      string
	FromNumber      string
	ToNumber        string
	AmountMinor     int64
	Description     string
	ClientRequestID *string
}

type TransferResult struct {
	TransferOutID string         `json:"transfer_out_id"`
	TransferInID  string         `json:"transfer_in_id"`
	From          AccountSummary `json:"from"`
}

func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	result, err := s.transfer(ctx, req)
	s.metrics.LedgerOperation("transfer", err, req.AmountMinor)
	return result, err
}

func (s *LedgerService) transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.AmountMinor <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if req.FromNumber == req.ToNumber {
		return TransferResult{}, ErrSameAccountTransfer
	}
	var result TransferResult
	var from, to models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		from, to, err = lockTwoAccounts(ctx, tx, s.accounts, req.FromNumber, req.ToNumber)
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		if from.CustomerID != req.CustomerID {
			return ErrUnauthorizedAccount
		}
		if from.Status != models.AccountActive || to.Status != models.AccountActive {
			return ErrAccountInactive
		}
		if from.Balance < req.AmountMinor {
			return ErrInsufficientFunds
		}
		at := s.now()
		out := models.Transaction{
			ID:              uuid.NewString(),
			AccountID:       from.ID,
			Type:            models.TxTransferOut,
			Amount:          req.AmountMinor,
			RefAccountID:    &to.ID,
			Description:     optionalString(req.Description),
			ClientRequestID: req.ClientRequestID,
			OccurredAt:      at,
		}
		in := models.Transaction{
			ID:           uuid.NewString(),
			AccountID:    to.ID,
			Type:         models.TxTransferIn,
			Amount:       req.AmountMinor,
			RefAccountID: &from.ID,
			Description:  optionalString(req.Description),
			OccurredAt:   at,
		}
		if err := ensureBalanced(out, in); err != nil {
			return err
		}
		creditedBalance, err := credit(to.Balance, in.Amount)
		if err != nil {
			return err
		}
		from.Balance += out.Type.Signed(out.Amount)
		to.Balance = creditedBalance
		if err := s.accounts.UpdateBalance(ctx, tx, from.ID, from.Balance); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, to.ID, to.Balance); err != nil {
			return err
		}
		if err := s.transactions.Append(ctx, tx, out); err != nil {
			return err
		}
		if err := s.transactions.Append(ctx, tx, in); err != nil {
			return err
		}
		result = TransferResult{TransferOutID: out.ID, TransferInID: in.ID}
		return s.audit.Log(ctx, tx, req.CustomerID, "transfer", "account", from.ID, auditData(map[string]string{
			"to_account": to.Number,
			"amount":     money.FormatMinor(req.AmountMinor),
		}))
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.publish(from)
	s.publish(to)
	result.From = summarize(from)
	return result, nil
}

func (s *LedgerService) Balance(ctx context.Context, customerID, number string) (AccountSummary, error) {
	account, err := s.ownedAccount(ctx, customerID, number)
	if err != nil {
		return AccountSummary{}, err
	}
	return summarize(account), nil
}

// MiniStatement returns the five most recent entries, newest first.
func (s *LedgerService) MiniStatement(ctx context.Context, customerID, number string) ([]models.Transaction, error) {
	account, err := s.ownedAccount(ctx, customerID, number)
	if err != nil {
		return nil, err
	}
	return s.transactions.Recent(ctx, account.ID, miniStatementSize)
}

func (s *LedgerService) ListAccounts(ctx context.Context, customerID string) ([]AccountSummary, error) {
	accounts, err := s.accounts.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, summarize(a))
	}
	return out, nil
}

type HistoryQuery struct {
	AccountNumber string
	From          *time.Time
	To            *time.Time
	MinAmount     *int64
	MaxAmount     *int64
	Type          models.TransactionType
	Category      string
	Page          int
	Size          int
}

type TransactionPage struct {
	Items []models.Transaction `json:"items"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
	Total int64                `json:"total"`
}

// History pages through an account's log newest first, optionally filtered.
func (s *LedgerService) History(ctx context.Context, customerID string, q HistoryQuery) (TransactionPage, error) {
	account, err := s.ownedAccount(ctx, customerID, q.AccountNumber)
	if err != nil {
		return TransactionPage{}, err
	}
	if q.Type != "" && !q.Type.Valid() {
		return TransactionPage{}, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, q.Type)
	}
	if q.MinAmount != nil && q.MaxAmount != nil && *q.MinAmount > *q.MaxAmount {
		return TransactionPage{}, fmt.Errorf("%w: min amount exceeds max amount", ErrValidation)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return TransactionPage{}, ErrInvalidDateRange
	}
	page, size := normalizePage(q.Page, q.Size)
	filter := store.TransactionFilter{
		AccountID: account.ID,
		MinAmount: q.MinAmount,
		MaxAmount: q.MaxAmount,
		Type:      q.Type,
		Category:  q.Category,
		Limit:     size,
		Offset:    page * size,
	}
	// Date bounds are whole UTC days, both ends inclusive.
	if q.From != nil {
		from := startOfDay(*q.From)
		filter.From = &from
	}
	if q.To != nil {
		to := startOfDay(*q.To).Add(24 * time.Hour)
		filter.To = &to
	}
	items, total, err := s.transactions.Search(ctx, filter)
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// Annotate updates the free-text fields of a transaction. Amounts, types and
// timestamps stay immutable.
func (s *LedgerService) Annotate(ctx context.Context, customerID, transactionID string, description, category *string) (models.Transaction, error) {
	if description == nil && category == nil {
		return models.Transaction{}, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	entry, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, notFound(err, ErrTransactionNotFound)
	}
	account, err := s.accounts.GetByID(ctx, entry.AccountID)
	if err != nil {
		return models.Transaction{}, notFound(err, ErrAccountNotFound)
	}
	if account.CustomerID != customerID {
		return models.Transaction{}, ErrUnauthorizedAccount
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if description != nil {
			if _, err := s.transactions.UpdateDescription(ctx, tx, transactionID, strings.TrimSpace(*description)); err != nil {
				return err
			}
			entry.Description = optionalString(*description)
		}
		if category != nil {
			if _, err := s.transactions.UpdateCategory(ctx, tx, transactionID, strings.TrimSpace(*category)); err != nil {
				return err
			}
			entry.Category = optionalString(*category)
		}
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}

func (s *LedgerService) SelfCheck(ctx context.Context, customerID string) ([]store.BalanceCheck, error) {
	return s.accounts.Reconcile(ctx, customerID)
}

func (s *LedgerService) Reconcile(ctx context.Context, actorID string) ([]store.BalanceCheck, error) {
	if _, err := requireCapability(ctx, s.roles, actorID, models.CapViewAudit); err != nil {
		return nil, err
	}
	checks, err := s.accounts.Reconcile(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, c := range checks {
		if c.Difference != 0 {
			s.logger.Warn("balance drift", zap.String("account_number", c.Number), zap.Int64("difference", c.Difference))
		}
	}
	return checks, nil
}

func (s *LedgerService) ownedAccount(ctx context.Context, customerID, number string) (models.Account, error) {
	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		return models.Account{}, notFound(err, ErrAccountNotFound)
	}
	if account.CustomerID != customerID {
		return models.Account{}, ErrUnauthorizedAccount
	}
	return account, nil
}

func (s *LedgerService) publish(a models.Account) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastBalance(a.CustomerID, balanceUpdate(a))
}

func balanceUpdate(a models.Account) websocket.BalanceUpdate {
	return websocket.BalanceUpdate{
		AccountID:     a.ID,
		AccountNumber: a.Number,
		Balance:       money.FormatMinor(a.Balance),
	}
}

// lockTwoAccounts takes both row locks in account-number order so opposing
// transfers cannot deadlock.
func lockTwoAccounts(ctx context.Context, tx store.Getter, accounts AccountStore, first, second string) (models.Account, models.Account, error) {
	left, right := first, second
	if right < left {
		left, right = right, left
	}
	leftAccount, err := accounts.GetForUpdate(ctx, tx, left)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	rightAccount, err := accounts.GetForUpdate(ctx, tx, right)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	if first == left {
		return leftAccount, rightAccount, nil
	}
	return rightAccount, leftAccount, nil
}

func ensureBalanced(entries ...models.Transaction) error {
	var sum int64
	for _, e := range entries {
		sum += e.Type.Signed(e.Amount)
	}
	if sum != 0 {
		return ErrUnbalancedTransfer
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func auditData(fields map[string]string) string {
	data, _ := json.Marshal(fields)
	return string(data)
}
