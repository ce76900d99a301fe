package handlers

import (
	"net/http"
	"strings"

	"bankloan/internal/models"
	"bankloan/internal/services"

	"github.com/go-chi/chi/v5"
)

type transferRequest struct {
	FromAccount     string  `json:"from_account"`
	ToAccount       string  `json:"to_account"`
	Amount          string  `json:"amount"`
	Description     string  `json:"description"`
	ClientRequestID *string `json:"client_request_id"`
}

type transferResponse struct {
	TransferOutID string          `json:"transfer_out_id"`
	TransferInID  string          `json:"transfer_in_id"`
	From          accountResponse `json:"from"`
}

type transactionPageResponse struct {
	Items []transactionResponse `json:"items"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
	Total int64                 `json:"total"`
}

type annotateRequest struct {
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.ledger.Transfer(r.Context(), services.TransferRequest{
		CustomerID:      customerID,
		FromNumber:      strings.TrimSpace(req.FromAccount),
		ToNumber:        strings.TrimSpace(req.ToAccount),
		AmountMinor:     amount,
		Description:     strings.TrimSpace(req.Description),
		ClientRequestID: optionalText(req.ClientRequestID),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, transferResponse{
		TransferOutID: result.TransferOutID,
		TransferInID:  result.TransferInID,
		From:          toAccount(result.From),
	})
}

// History pages the log of one account, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	h.listTransactions(w, r, services.HistoryQuery{
		AccountNumber: query.Get("account"),
		Page:          parseInt(query.Get("page"), 0),
		Size:          parseInt(query.Get("size"), 0),
	})
}

// Search is History with optional date, amount, type and category filters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := services.HistoryQuery{
		AccountNumber: query.Get("account"),
		Type:          models.TransactionType(strings.ToUpper(strings.TrimSpace(query.Get("type")))),
		Category:      strings.TrimSpace(query.Get("category")),
		Page:          parseInt(query.Get("page"), 0),
		Size:          parseInt(query.Get("size"), 0),
	}
	var err error
	if q.From, err = parseOptionalDate(query.Get("from")); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.To, err = parseOptionalDate(query.Get("to")); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.MinAmount, err = parseOptionalAmount(query.Get("min")); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.MaxAmount, err = parseOptionalAmount(query.Get("max")); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.listTransactions(w, r, q)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request, q services.HistoryQuery) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	if q.AccountNumber == "" {
		respondError(w, http.StatusBadRequest, "account is required")
		return
	}
	page, err := h.ledger.History(r.Context(), customerID, q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionPageResponse{
		Items: toTransactions(page.Items),
		Page:  page.Page,
		Size:  page.Size,
		Total: page.Total,
	})
}

func (h *Handler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	h.annotate(w, r, func(req annotateRequest) (*string, *string, bool) {
		return req.Description, nil, req.Description != nil
	})
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	h.annotate(w, r, func(req annotateRequest) (*string, *string, bool) {
		return nil, req.Category, req.Category != nil
	})
}

func (h *Handler) annotate(w http.ResponseWriter, r *http.Request, pick func(annotateRequest) (*string, *string, bool)) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req annotateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	description, category, present := pick(req)
	if !present {
		respondError(w, http.StatusBadRequest, "missing field")
		return
	}
	tx, err := h.ledger.Annotate(r.Context(), customerID, chi.URLParam(r, "id"), description, category)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransaction(tx))
}
