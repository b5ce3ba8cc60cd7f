package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"onfa-ticketing/internal/logger"
)

type contextKey string

const claimsKey contextKey = "admin_claims"

// Middleware admits requests carrying a valid, unrevoked admin token.
func Middleware(issuer *Issuer, revocations Revocations, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !issuer.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}
			claims, err := issuer.Verify(raw)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s from %s: %v", r.Method, r.URL.Path, r.RemoteAddr, err))
				unauthorized(w, ErrInvalidToken.Error())
				return
			}
			if revocations != nil {
				revoked, err := revocations.Revoked(r.Context(), claims.ID)
				if err != nil {
					log.Error("AUTH", fmt.Sprintf("Revocation lookup failed: %v", err))
				}
				if revoked {
					unauthorized(w, ErrInvalidToken.Error())
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the claims set by Middleware, nil when auth is disabled.
func FromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
