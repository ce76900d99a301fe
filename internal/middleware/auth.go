package middleware

import (
	"context"
	"net/http"
	"strings"

	"bankloan/internal/auth"
)

type contextKey string

const (
	customerIDKey contextKey = "customer_id"
	claimsKey     contextKey = "claims"
)

// RevocationChecker reports whether a token id has been logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

func CustomerIDFromContext(ctx context.Context) (string, bool) {
	customerID, ok := ctx.Value(customerIDKey).(string)
	return customerID, ok
}

func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// Auth accepts a bearer token from the Authorization header.
func Auth(secret string, revoked RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			authenticate(w, r, next, secret, revoked, strings.TrimSpace(parts[1]))
		})
	}
}

// QueryAuth reads the token from the token query parameter. Browsers cannot
// set headers on websocket upgrades.
func QueryAuth(secret string, revoked RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.URL.Query().Get("token")
			if raw == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			authenticate(w, r, next, secret, revoked, raw)
		})
	}
}

func authenticate(w http.ResponseWriter, r *http.Request, next http.Handler, secret string, revoked RevocationChecker, raw string) {
	claims, err := auth.ParseToken(secret, raw)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if revoked != nil {
		gone, err := revoked.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			http.Error(w, "unable to verify token", http.StatusServiceUnavailable)
			return
		}
		if gone {
			http.Error(w, "token revoked", http.StatusUnauthorized)
			return
		}
	}
	ctx := context.WithValue(r.Context(), customerIDKey, claims.UserID)
	ctx = context.WithValue(ctx, claimsKey, claims)
	next.ServeHTTP(w, r.WithContext(ctx))
}
