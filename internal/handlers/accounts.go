package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bankloan/internal/services"
	"bankloan/internal/websocket"

	"github.com/go-chi/chi/v5"
)

const defaultStatementWindow = 30 * 24 * time.Hour

type moneyRequest struct {
	Amount          string  `json:"amount"`
	Description     string  `json:"description"`
	ClientRequestID *string `json:"client_request_id"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	account, err := h.ledger.CreateAccount(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAccount(account))
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	accounts, err := h.ledger.ListAccounts(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAccounts(accounts))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	account, err := h.ledger.Balance(r.Context(), customerID, chi.URLParam(r, "number"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAccount(account))
}

func (h *Handler) MiniStatement(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	rows, err := h.ledger.MiniStatement(r.Context(), customerID, chi.URLParam(r, "number"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactions(rows))
}

// Statement renders text or CSV. Without explicit dates the window is the
// last thirty days ending today.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	number := chi.URLParam(r, "number")
	query := r.URL.Query()
	format, err := services.ParseStatementFormat(query.Get("format"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	to := time.Now().UTC()
	if raw := query.Get("to"); raw != "" {
		if to, err = parseDate(raw); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	from := to.Add(-defaultStatementWindow)
	if raw := query.Get("from"); raw != "" {
		if from, err = parseDate(raw); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	body, err := h.statements.Generate(r.Context(), customerID, number, from, to, format)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	switch format {
	case services.FormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", statementFilename(number, from, to)))
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func statementFilename(number string, from, to time.Time) string {
	return fmt.Sprintf("statement-%s-%s-%s.csv", number, from.Format(dateLayout), to.Format(dateLayout))
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	checks, err := h.ledger.SelfCheck(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBalanceChecks(checks))
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.ledger.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.ledger.Withdraw)
}

func (h *Handler) moveMoney(w http.ResponseWriter, r *http.Request, op func(context.Context, services.MoneyRequest) (services.AccountSummary, error)) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req moneyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := op(r.Context(), services.MoneyRequest{
		CustomerID:      customerID,
		AccountNumber:   chi.URLParam(r, "number"),
		AmountMinor:     amount,
		Description:     strings.TrimSpace(req.Description),
		ClientRequestID: optionalText(req.ClientRequestID),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAccount(account))
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.hub, customerID, h.allowOrigin)
}

func (h *Handler) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Origins() {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
