package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xtoazt/gummybear-sub000/pkg/directory"
)

// publicPaths are endpoints that do not require authentication.
var publicPaths = []string{
	"/health",
	"/api/auth/login",
	"/api/signup",
}

// isPublicPath checks if the path should be accessible without auth.
func isPublicPath(path string) bool {
	if strings.HasPrefix(path, "/static/") {
		return true
	}
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// NewMiddleware creates JWT auth middleware. If manager is nil, all
// non-public requests are rejected (fail closed).
func NewMiddleware(manager *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			if manager == nil {
				writeUnauthorized(w, "Authentication not configured")
				return
			}

			claims, err := manager.Validate(parts[1])
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			if claims.Subject == "" {
				writeUnauthorized(w, "Token subject is required")
				return
			}

			principal := &Principal{
				ID:       claims.Subject,
				Username: claims.Username,
				Role:     directory.Role(claims.Role),
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// writeUnauthorized emits a minimal RFC 7807 response. The full problem
// helpers live in pkg/api, which sits above this package.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://gummybear.app/errors/401",
		"title":  "Unauthorized",
		"status": http.StatusUnauthorized,
		"detail": detail,
	})
}
