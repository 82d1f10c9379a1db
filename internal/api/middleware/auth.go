// internal/api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/mfcastro/ativo/internal/api/response"
	"github.com/mfcastro/ativo/internal/core"
)

var (
	errMissingKey = &core.Error{Code: "UNAUTHORIZED", Message: "missing API key"}
	errInvalidKey = &core.Error{Code: "UNAUTHORIZED", Message: "invalid API key"}
)

// APIKeyAuth returns middleware that validates X-API-Key header.
// If apiKey is empty, authentication is disabled.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no key configured
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get("X-API-Key")
			if providedKey == "" {
				response.Error(w, http.StatusUnauthorized, errMissingKey)
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
				response.Error(w, http.StatusUnauthorized, errInvalidKey)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
