package middleware

import (
	"net/http"
	"strings"

	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// AuthMiddleware extracts the operator's bearer token and stores it in the
// request context. Downstream adapters read it from there when calling the
// directory and registration services, so the backend never holds a shared
// credential.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Liveness probes carry no credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing Authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			unauthorized(w, "Authorization header must be a bearer token")
			return
		}

		ctx := providers.WithToken(r.Context(), parts[1])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
