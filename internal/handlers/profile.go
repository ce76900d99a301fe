package handlers

import (
	"net/http"

	"bankloan/internal/store"
)

type profileRequest struct {
	Name        string  `json:"name"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	DateOfBirth string  `json:"date_of_birth"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.Me(w, r)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	dob, err := parseOptionalDate(req.DateOfBirth)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := h.customers.UpdateProfile(r.Context(), customerID, store.ProfileUpdate{
		Name:        req.Name,
		Phone:       optionalText(req.Phone),
		Address:     optionalText(req.Address),
		DateOfBirth: dob,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCustomer(customer))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.customers.ChangePassword(r.Context(), customerID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}
