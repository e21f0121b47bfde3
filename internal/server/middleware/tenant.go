package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// writeProblem writes a minimal RFC 9457 body matching huma's error shape, for
// rejections that happen before a request reaches huma.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

// RequireTenant rejects requests whose credentials carry no shop. Superadmins
// acting on a shop arrive here with the X-Tenant-ID override already applied.
func RequireTenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid, ok := TenantIDFromContext(r.Context())
			if !ok || tid == uuid.Nil {
				writeProblem(w, http.StatusForbidden, "valid tenant required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
