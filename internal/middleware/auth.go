package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	TenantKey contextKey = "tenant"
	APIKeyKey contextKey = "api_key"
)

func skipAuth(path string) bool {
	switch path {
	case "/health", "/ready", "/live", "/metrics":
		return true
	}
	return false
}

// APIKeyAuth validates API key from Authorization header.
// validKeys maps tenant -> key; the matching key pins the caller
// to that tenant.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// Extract API key from Authorization header
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimPrefix(auth, "Bearer ")
			apiKey = strings.TrimSpace(apiKey)

			if apiKey == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// Validate API key (constant-time comparison to prevent timing attacks)
			valid := false
			var tenant string
			for t, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					valid = true
					tenant = t
					break
				}
			}

			if !valid {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			// Store tenant in context
			ctx := context.WithValue(r.Context(), TenantKey, tenant)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantFromContext extracts tenant from context
func GetTenantFromContext(ctx context.Context) string {
	if tenant, ok := ctx.Value(TenantKey).(string); ok {
		return tenant
	}
	return ""
}

// RequireValidTenant ensures the tenant in the URL matches the
// authenticated tenant. Ledger chains dan hasil analysis dipisah
// per tenant, jadi cross-tenant read harus ditolak di sini.
func RequireValidTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		urlTenant := chi.URLParam(r, "tenant")
		if urlTenant == "" {
			next.ServeHTTP(w, r)
			return
		}
		if err := ValidateTenantID(urlTenant); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		authTenant := GetTenantFromContext(r.Context())
		if authTenant != "" && authTenant != urlTenant {
			http.Error(w, "tenant mismatch", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
