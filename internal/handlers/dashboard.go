package handlers

import (
	"net/http"

	"bankloan/internal/models"
	"bankloan/internal/money"
)

type customerDashboardResponse struct {
	LoansByProduct   map[models.ProductType]int64 `json:"loans_by_product"`
	TotalOutstanding string                       `json:"total_outstanding"`
	MonthlyEMI       string                       `json:"monthly_emi"`
	TotalBalance     string                       `json:"total_balance"`
	RecentActivity   []transactionResponse        `json:"recent_activity"`
}

type officerDashboardResponse struct {
	PendingByProduct   map[models.ProductType]int64 `json:"pending_by_product"`
	TotalDisbursed     string                       `json:"total_disbursed"`
	StatusDistribution map[models.LoanStatus]int64  `json:"status_distribution"`
	ApprovedLast30Days int64                        `json:"approved_last_30_days"`
}

type adminDashboardResponse struct {
	Customers        int64                        `json:"customers"`
	Accounts         int64                        `json:"accounts"`
	LoansByProduct   map[models.ProductType]int64 `json:"loans_by_product"`
	Portfolio        string                       `json:"portfolio"`
	TotalOutstanding string                       `json:"total_outstanding"`
}

func (h *Handler) CustomerDashboard(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	d, err := h.dashboards.Customer(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customerDashboardResponse{
		LoansByProduct:   d.LoansByProduct,
		TotalOutstanding: money.FormatMinor(d.TotalOutstanding),
		MonthlyEMI:       money.FormatMinor(d.MonthlyEMI),
		TotalBalance:     money.FormatMinor(d.TotalBalance),
		RecentActivity:   toActivity(d.RecentActivity),
	})
}

func (h *Handler) OfficerDashboard(w http.ResponseWriter, r *http.Request) {
	officerID, ok := callerID(w, r)
	if !ok {
		return
	}
	d, err := h.dashboards.Officer(r.Context(), officerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, officerDashboardResponse{
		PendingByProduct:   d.PendingByProduct,
		TotalDisbursed:     money.FormatMinor(d.TotalDisbursed),
		StatusDistribution: d.StatusDistribution,
		ApprovedLast30Days: d.ApprovedLast30Days,
	})
}

func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	d, err := h.dashboards.Admin(r.Context(), adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, adminDashboardResponse{
		Customers:        d.Customers,
		Accounts:         d.Accounts,
		LoansByProduct:   d.LoansByProduct,
		Portfolio:        money.FormatMinor(d.Portfolio),
		TotalOutstanding: money.FormatMinor(d.TotalOutstanding),
	})
}
