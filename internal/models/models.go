package models

import "time"

type Customer struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         Role       `db:"role" json:"role"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Address      *string    `db:"address" json:"address,omitempty"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

type Account struct {
	ID         string        `db:"id" json:"id"`
	CustomerID string        `db:"customer_id" json:"customer_id"`
	Number     string        `db:"account_number" json:"account_number"`
	Balance    int64         `db:"balance" json:"balance"`
	Status     AccountStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

type TransactionType string

const (
	TxDeposit     TransactionType = "DEPOSIT"
	TxWithdraw    TransactionType = "WITHDRAW"
	TxTransferOut TransactionType = "TRANSFER_OUT"
	TxTransferIn  TransactionType = "TRANSFER_IN"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdraw, TxTransferOut, TxTransferIn:
		return true
	}
	return false
}

// Signed applies the ledger sign convention: credits add, debits subtract.
func (t TransactionType) Signed(amount int64) int64 {
	switch t {
	case TxDeposit, TxTransferIn:
		return amount
	case TxWithdraw, TxTransferOut:
		return -amount
	}
	return 0
}

type Transaction struct {
	ID              string          `db:"id" json:"id"`
	AccountID       string          `db:"account_id" json:"account_id"`
	Type            TransactionType `db:"type" json:"type"`
	Amount          int64           `db:"amount" json:"amount"`
	RefAccountID    *string         `db:"ref_account_id" json:"ref_account_id,omitempty"`
	Description     *string         `db:"description" json:"description,omitempty"`
	Category        *string         `db:"category" json:"category,omitempty"`
	ClientRequestID *string         `db:"client_request_id" json:"-"`
	OccurredAt      time.Time       `db:"occurred_at" json:"occurred_at"`
}

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
	InstallmentPartial InstallmentStatus = "PARTIAL"
)

type Installment struct {
	ID         string            `db:"id" json:"id"`
	LoanID     string            `db:"loan_id" json:"loan_id"`
	Product    ProductType       `db:"product" json:"product"`
	Sequence   int               `db:"sequence" json:"sequence"`
	Amount     int64             `db:"amount" json:"amount"`
	DueDate    time.Time         `db:"due_date" json:"due_date"`
	PaidDate   *time.Time        `db:"paid_date" json:"paid_date,omitempty"`
	PaidAmount *int64            `db:"paid_amount" json:"paid_amount,omitempty"`
	Status     InstallmentStatus `db:"status" json:"status"`
}

type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Data       string    `db:"data" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
