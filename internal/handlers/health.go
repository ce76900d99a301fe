package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{"status": "ok", "database": "ok", "redis": "disabled"}
	if h.database != nil {
		if err := h.database.PingContext(ctx); err != nil {
			h.logger.Warn("database ping failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unavailable"
		}
	}
	if h.revoker != nil && h.revoker.Enabled() {
		body["redis"] = "ok"
		if err := h.revoker.Ping(ctx); err != nil {
			h.logger.Warn("redis ping failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = "unavailable"
		}
	}
	respondJSON(w, status, body)
}
