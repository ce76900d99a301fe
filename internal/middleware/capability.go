package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"bankloan/internal/models"
)

type RoleLookup interface {
	GetRole(ctx context.Context, customerID string) (models.Role, error)
}

// RequireCapability reloads the caller's role on every request so demotions
// take effect without waiting for tokens to expire.
func RequireCapability(roles RoleLookup, c models.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			customerID, ok := CustomerIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			role, err := roles.GetRole(r.Context(), customerID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					http.Error(w, "unknown customer", http.StatusForbidden)
					return
				}
				http.Error(w, "unable to verify role", http.StatusInternalServerError)
				return
			}
			if !role.Can(c) {
				http.Error(w, "missing required capability", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
