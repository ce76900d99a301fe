package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"bankloan/internal/config"
	"bankloan/internal/db"
	"bankloan/internal/middleware"
	"bankloan/internal/observability"
	"bankloan/internal/services"
	"bankloan/internal/websocket"

	"go.uber.org/zap"
)

type Handler struct {
	cfg        config.Config
	logger     *zap.Logger
	ledger     LedgerService
	statements StatementService
	loans      LoanService
	customers  CustomerService
	dashboards DashboardService
	roles      middleware.RoleLookup
	revoker    TokenRevoker
	database   Pinger
	hub        *websocket.Hub
	metrics    *observability.Metrics
}

func New(cfg config.Config, logger *zap.Logger, svc Services, roles middleware.RoleLookup, revoker TokenRevoker, database Pinger, hub *websocket.Hub, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:        cfg,
		logger:     logger.Named("http"),
		ledger:     svc.Ledger,
		statements: svc.Statements,
		loans:      svc.Loans,
		customers:  svc.Customers,
		dashboards: svc.Dashboards,
		roles:      roles,
		revoker:    revoker,
		database:   database,
		hub:        hub,
		metrics:    metrics,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError is the single place service errors become status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAccessDenied):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case db.IsUniqueViolation(err):
		respondError(w, http.StatusConflict, "duplicate request")
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// callerID reads the authenticated customer. Routes that reach it are always
// behind Auth, so a missing value is a wiring bug reported as 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.CustomerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}
