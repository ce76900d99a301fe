package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bankloan/internal/models"
	"bankloan/internal/services"

	"github.com/go-chi/chi/v5"
)

type applyLoanRequest struct {
	Product       string          `json:"product"`
	Principal     string          `json:"principal"`
	InterestRate  string          `json:"interest_rate"`
	TenureMonths  int             `json:"tenure_months"`
	AccountNumber string          `json:"account_number"`
	Details       json.RawMessage `json:"details"`
}

type payInstallmentRequest struct {
	Amount string `json:"amount"`
}

type payInstallmentResponse struct {
	Installment installmentResponse `json:"installment"`
	Loan        loanResponse        `json:"loan"`
}

type renewLoanRequest struct {
	AdditionalAmount string `json:"additional_amount"`
	TenureMonths     int    `json:"tenure_months"`
}

type rejectLoanRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req applyLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	principal, err := parseAmountMinor(req.Principal)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rate, err := parseRate(req.InterestRate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	product := models.ProductType(strings.ToUpper(strings.TrimSpace(req.Product)))
	details, err := models.DecodeDetails(product, req.Details)
	if err != nil {
		if errors.Is(err, models.ErrUnknownProduct) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "invalid loan details")
		return
	}
	loan, err := h.loans.Apply(r.Context(), services.ApplyRequest{
		CustomerID:    customerID,
		Product:       product,
		Principal:     principal,
		InterestRate:  rate,
		TenureMonths:  req.TenureMonths,
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		Details:       details,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toLoan(loan))
}

func (h *Handler) MyLoans(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	loans, err := h.loans.ListMine(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoans(loans))
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	loan, err := h.loans.Get(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoan(loan))
}

func (h *Handler) LoanInstallments(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	installments, err := h.loans.Installments(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toInstallments(installments))
}

func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req payInstallmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	installment, loan, err := h.loans.PayInstallment(r.Context(), customerID, chi.URLParam(r, "id"), amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, payInstallmentResponse{
		Installment: toInstallment(installment),
		Loan:        toLoan(loan),
	})
}

func (h *Handler) RenewLoan(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req renewLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	additional, err := parseAmountMinor(req.AdditionalAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	loan, err := h.loans.Renew(r.Context(), customerID, chi.URLParam(r, "id"), additional, req.TenureMonths)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoan(loan))
}

func (h *Handler) CloseLoan(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	loan, err := h.loans.Close(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoan(loan))
}

func (h *Handler) PendingLoans(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	loans, err := h.loans.ListPending(r.Context(), actorID, parseInt(query.Get("page"), 0), parseInt(query.Get("size"), 0))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoans(loans))
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	status := models.LoanStatus(strings.ToUpper(strings.TrimSpace(query.Get("status"))))
	loans, err := h.loans.ListAll(r.Context(), actorID, status, parseInt(query.Get("page"), 0), parseInt(query.Get("size"), 0))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoans(loans))
}

func (h *Handler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	h.reviewLoan(w, r, h.loans.Approve)
}

func (h *Handler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	h.reviewLoan(w, r, h.loans.Disburse)
}

func (h *Handler) RejectLoan(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req rejectLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	loan, err := h.loans.Reject(r.Context(), actorID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoan(loan))
}

func (h *Handler) reviewLoan(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, loanID string) (models.Loan, error)) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	loan, err := op(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toLoan(loan))
}
