package handlers

import (
	"encoding/json"
	"time"

	"bankloan/internal/models"
	"bankloan/internal/money"
	"bankloan/internal/services"
	"bankloan/internal/store"
)

type accountResponse struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
	Status        string `json:"status"`
}

func toAccount(a services.AccountSummary) accountResponse {
	return accountResponse{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		Balance:       money.FormatMinor(a.Balance),
		Status:        string(a.Status),
	}
}

func toAccounts(list []services.AccountSummary) []accountResponse {
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccount(a))
	}
	return out
}

type transactionResponse struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	AccountNumber string    `json:"account_number,omitempty"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	RefAccountID  *string   `json:"ref_account_id,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Category      *string   `json:"category,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func toTransaction(t models.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Type:         string(t.Type),
		Amount:       money.FormatMinor(t.Amount),
		RefAccountID: t.RefAccountID,
		Description:  t.Description,
		Category:     t.Category,
		OccurredAt:   t.OccurredAt,
	}
}

func toTransactions(list []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTransaction(t))
	}
	return out
}

func toActivity(list []store.Activity) []transactionResponse {
	out := make([]transactionResponse, 0, len(list))
	for _, a := range list {
		row := toTransaction(a.Transaction)
		row.AccountNumber = a.AccountNumber
		out = append(out, row)
	}
	return out
}

type loanResponse struct {
	ID                     string          `json:"id"`
	CustomerID             string          `json:"customer_id"`
	Product                string          `json:"product"`
	Principal              string          `json:"principal"`
	InterestRate           string          `json:"interest_rate"`
	TenureMonths           int             `json:"tenure_months"`
	EMI                    string          `json:"emi"`
	Status                 string          `json:"status"`
	Outstanding            string          `json:"outstanding"`
	DisbursedAmount        string          `json:"disbursed_amount"`
	NextDisbursementAmount *string         `json:"next_disbursement_amount,omitempty"`
	NextDisbursementDate   *time.Time      `json:"next_disbursement_date,omitempty"`
	AccountID              *string         `json:"account_id,omitempty"`
	AppliedAt              time.Time       `json:"applied_at"`
	ApprovedAt             *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy             *string         `json:"approved_by,omitempty"`
	DisbursedAt            *time.Time      `json:"disbursed_at,omitempty"`
	EMIStartDate           *time.Time      `json:"emi_start_date,omitempty"`
	ClosedAt               *time.Time      `json:"closed_at,omitempty"`
	RejectionReason        *string         `json:"rejection_reason,omitempty"`
	Details                json.RawMessage `json:"details,omitempty"`
}

func toLoan(l models.Loan) loanResponse {
	resp := loanResponse{
		ID:                   l.ID,
		CustomerID:           l.CustomerID,
		Product:              string(l.Product),
		Principal:            money.FormatMinor(l.Principal),
		InterestRate:         l.InterestRate.String(),
		TenureMonths:         l.TenureMonths,
		EMI:                  money.FormatMinor(l.EMI),
		Status:               string(l.Status),
		Outstanding:          money.FormatMinor(l.Outstanding),
		DisbursedAmount:      money.FormatMinor(l.DisbursedAmount),
		NextDisbursementDate: l.NextDisbursementDate,
		AccountID:            l.AccountID,
		AppliedAt:            l.AppliedAt,
		ApprovedAt:           l.ApprovedAt,
		ApprovedBy:           l.ApprovedBy,
		DisbursedAt:          l.DisbursedAt,
		EMIStartDate:         l.EMIStartDate,
		ClosedAt:             l.ClosedAt,
		RejectionReason:      l.RejectionReason,
	}
	if l.NextDisbursementAmount != nil {
		next := money.FormatMinor(*l.NextDisbursementAmount)
		resp.NextDisbursementAmount = &next
	}
	if len(l.RawDetails) > 0 && json.Valid(l.RawDetails) {
		resp.Details = json.RawMessage(l.RawDetails)
	}
	return resp
}

func toLoans(list []models.Loan) []loanResponse {
	out := make([]loanResponse, 0, len(list))
	for _, l := range list {
		out = append(out, toLoan(l))
	}
	return out
}

type installmentResponse struct {
	ID         string     `json:"id"`
	LoanID     string     `json:"loan_id"`
	Sequence   int        `json:"sequence"`
	Amount     string     `json:"amount"`
	DueDate    time.Time  `json:"due_date"`
	PaidDate   *time.Time `json:"paid_date,omitempty"`
	PaidAmount *string    `json:"paid_amount,omitempty"`
	Status     string     `json:"status"`
}

func toInstallment(i models.Installment) installmentResponse {
	resp := installmentResponse{
		ID:       i.ID,
		LoanID:   i.LoanID,
		Sequence: i.Sequence,
		Amount:   money.FormatMinor(i.Amount),
		DueDate:  i.DueDate,
		PaidDate: i.PaidDate,
		Status:   string(i.Status),
	}
	if i.PaidAmount != nil {
		paid := money.FormatMinor(*i.PaidAmount)
		resp.PaidAmount = &paid
	}
	return resp
}

func toInstallments(list []models.Installment) []installmentResponse {
	out := make([]installmentResponse, 0, len(list))
	for _, i := range list {
		out = append(out, toInstallment(i))
	}
	return out
}

type customerResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Phone       *string   `json:"phone,omitempty"`
	Address     *string   `json:"address,omitempty"`
	DateOfBirth *string   `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCustomer(c models.Customer) customerResponse {
	resp := customerResponse{
		ID:        c.ID,
		Email:     c.Email,
		Name:      c.Name,
		Role:      string(c.Role),
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
	}
	if c.DateOfBirth != nil {
		dob := c.DateOfBirth.Format(dateLayout)
		resp.DateOfBirth = &dob
	}
	return resp
}

func toCustomers(list []models.Customer) []customerResponse {
	out := make([]customerResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCustomer(c))
	}
	return out
}

type balanceCheckResponse struct {
	AccountID         string `json:"account_id"`
	CustomerID        string `json:"customer_id"`
	AccountNumber     string `json:"account_number"`
	StoredBalance     string `json:"stored_balance"`
	CalculatedBalance string `json:"calculated_balance"`
	Difference        string `json:"difference"`
	Matches           bool   `json:"matches"`
}

func toBalanceChecks(list []store.BalanceCheck) []balanceCheckResponse {
	out := make([]balanceCheckResponse, 0, len(list))
	for _, c := range list {
		out = append(out, balanceCheckResponse{
			AccountID:         c.ID,
			CustomerID:        c.CustomerID,
			AccountNumber:     c.Number,
			StoredBalance:     money.FormatMinor(c.StoredBalance),
			CalculatedBalance: money.FormatMinor(c.CalculatedBalance),
			Difference:        money.FormatMinor(c.Difference),
			Matches:           c.Difference == 0,
		})
	}
	return out
}
