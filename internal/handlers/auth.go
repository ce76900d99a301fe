package handlers

import (
	"net/http"
	"strings"
	"time"

	"bankloan/internal/auth"
	"bankloan/internal/middleware"
	"bankloan/internal/models"
	"bankloan/internal/services"

	"go.uber.org/zap"
)

type registerRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Name        string  `json:"name"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	DateOfBirth string  `json:"date_of_birth"`
}

func (req registerRequest) registration() (services.Registration, error) {
	reg := services.Registration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    optionalText(req.Phone),
		Address:  optionalText(req.Address),
	}
	dob, err := parseOptionalDate(req.DateOfBirth)
	if err != nil {
		return services.Registration{}, err
	}
	reg.DateOfBirth = dob
	return reg, nil
}

type staffRequest struct {
	registerRequest
	Role string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string           `json:"token"`
	ExpiresIn int64            `json:"expires_in"`
	Customer  customerResponse `json:"customer"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reg, err := req.registration()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := h.customers.Register(r.Context(), reg)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondToken(w, r, http.StatusCreated, customer)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	customer, err := h.customers.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondToken(w, r, http.StatusOK, customer)
}

// Refresh issues a fresh token and retires the presented one.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	customer, err := h.customers.Profile(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.revokePresented(w, r) {
		return
	}
	h.respondToken(w, r, http.StatusOK, customer)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.revokePresented(w, r) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "logged_out",
		"revoked": h.revoker != nil && h.revoker.Enabled(),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	customer, err := h.customers.Profile(r.Context(), customerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCustomer(customer))
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req staffRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reg, err := req.registration()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	role := models.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	customer, err := h.customers.RegisterStaff(r.Context(), actorID, reg, role)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCustomer(customer))
}

func (h *Handler) respondToken(w http.ResponseWriter, r *http.Request, status int, customer models.Customer) {
	token, err := auth.GenerateToken(h.cfg.JWTSecret, customer.ID, h.cfg.TokenTTL)
	if err != nil {
		h.logger.Error("issue token", zap.String("customer_id", customer.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, status, tokenResponse{
		Token:     token,
		ExpiresIn: int64(h.cfg.TokenTTL / time.Second),
		Customer:  toCustomer(customer),
	})
}

func (h *Handler) revokePresented(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if h.revoker == nil || claims.ID == "" {
		return true
	}
	if err := h.revoker.Revoke(r.Context(), claims.ID, claims.Remaining()); err != nil {
		h.logger.Error("revoke token", zap.String("customer_id", claims.UserID), zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "token revocation unavailable")
		return false
	}
	return true
}
