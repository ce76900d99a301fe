package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
)

// Error kinds. Business errors returned by this package wrap one of them, so
// callers can branch on the kind with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation failed")
)

var (
	ErrAccountNotFound     = fmt.Errorf("%w: account", ErrNotFound)
	ErrCustomerNotFound    = fmt.Errorf("%w: customer", ErrNotFound)
	ErrLoanNotFound        = fmt.Errorf("%w: loan", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction", ErrNotFound)

	ErrUnauthorizedAccount = fmt.Errorf("%w: account does not belong to customer", ErrAccessDenied)
	ErrUnauthorizedLoan    = fmt.Errorf("%w: loan does not belong to customer", ErrAccessDenied)
	ErrMissingCapability   = fmt.Errorf("%w: role lacks the required capability", ErrAccessDenied)
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid credentials", ErrAccessDenied)

	ErrInvalidAmount       = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrSameAccountTransfer = fmt.Errorf("%w: cannot transfer to same account", ErrValidation)
	ErrInvalidDateRange    = fmt.Errorf("%w: to date is before from date", ErrValidation)
	ErrInvalidFormat       = fmt.Errorf("%w: unsupported statement format", ErrValidation)
	ErrInvalidLoanTerms    = fmt.Errorf("%w: invalid loan terms", ErrValidation)
	ErrInvalidDetails      = fmt.Errorf("%w: invalid product details", ErrValidation)
	ErrFundingAccount      = fmt.Errorf("%w: funding account is required and must be active", ErrValidation)
	ErrAmountMismatch      = fmt.Errorf("%w: payment must equal the installment due", ErrValidation)
	ErrReasonRequired      = fmt.Errorf("%w: rejection reason is required", ErrValidation)
	ErrInvalidRole         = fmt.Errorf("%w: role cannot be assigned", ErrValidation)
	ErrBalanceOverflow     = fmt.Errorf("%w: credit would exceed the maximum balance", ErrValidation)

	ErrAccountInactive    = fmt.Errorf("%w: account is not active", ErrInvalidState)
	ErrLoanNotPending     = fmt.Errorf("%w: loan is not pending", ErrInvalidState)
	ErrLoanNotDisbursable = fmt.Errorf("%w: loan is not approved for disbursement", ErrInvalidState)
	ErrLoanNotActive      = fmt.Errorf("%w: loan is not active", ErrInvalidState)
	ErrEMINotStarted      = fmt.Errorf("%w: repayments have not started", ErrInvalidState)
	ErrOutstandingBalance = fmt.Errorf("%w: loan still has an outstanding balance", ErrInvalidState)
	ErrLoanAlreadyClosed  = fmt.Errorf("%w: loan is already closed", ErrInvalidState)
	ErrIllegalTransition  = fmt.Errorf("%w: illegal loan transition", ErrInvalidState)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrInvalidState)
)

// ErrUnbalancedTransfer signals a programming error, not a caller mistake.
var ErrUnbalancedTransfer = errors.New("transfer entries are not balanced")

// credit returns balance+amount, refusing credits that would overflow int64.
// Debits pass a negative amount and never trip the guard.
func credit(balance, amount int64) (int64, error) {
	if amount > 0 && balance > math.MaxInt64-amount {
		return 0, ErrBalanceOverflow
	}
	return balance + amount, nil
}

func notFound(err error, kind error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return kind
	}
	return err
}
