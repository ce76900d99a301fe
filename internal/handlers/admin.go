package handlers

import "net/http"

func (h *Handler) AdminCustomers(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	customers, err := h.dashboards.Customers(r.Context(), adminID, parseInt(query.Get("page"), 0), parseInt(query.Get("size"), 0))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCustomers(customers))
}

func (h *Handler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	entries, err := h.dashboards.AuditTrail(r.Context(), adminID, parseInt(query.Get("page"), 0), parseInt(query.Get("size"), 0))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// AdminReconcile compares every stored balance with the fold of its log.
func (h *Handler) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	checks, err := h.ledger.Reconcile(r.Context(), adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	mismatches := 0
	for _, c := range checks {
		if c.Difference != 0 {
			mismatches++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accounts":   toBalanceChecks(checks),
		"mismatches": mismatches,
	})
}
