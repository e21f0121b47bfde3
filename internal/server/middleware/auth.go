package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/domain"
)

// HeaderTenantOverride lets a superadmin act on another tenant.
const HeaderTenantOverride = "X-Tenant-ID"

// APIKeyValidator resolves a raw API key to the user it belongs to.
// *auth.Service satisfies this interface.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, rawKey string) (*domain.User, *domain.APIKey, error)
}

func Auth(jwtSecret string, keys APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Try Bearer token first.
			if tok := extractBearer(r); tok != "" {
				if ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret); ok {
					next.ServeHTTP(w, r.WithContext(withTenantOverride(ctx, r)))
					return
				}
			}

			if key := r.Header.Get("X-API-Key"); key != "" && keys != nil {
				if ctx, ok := authenticateAPIKey(r.Context(), key, keys); ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			writeProblem(w, http.StatusUnauthorized, "missing or invalid credentials")
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	// Browsers cannot set headers on a websocket handshake.
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims, err := auth.ValidateToken(secret, tokenStr)
	if err != nil || !claims.IsAccess() {
		return ctx, false
	}

	tenantID, err := claims.Tenant()
	if err != nil {
		return ctx, false
	}
	userID, err := claims.User()
	if err != nil || userID == uuid.Nil {
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeyTenantID, tenantID)
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, ContextKeyUserRole, claims.Role)
	ctx = context.WithValue(ctx, ContextKeyActorType, ActorUser)
	return ctx, true
}

func authenticateAPIKey(ctx context.Context, rawKey string, keys APIKeyValidator) (context.Context, bool) {
	user, key, err := keys.ValidateAPIKey(ctx, rawKey)
	if err != nil {
		log.Debug().Err(err).Msg("auth: api key rejected")
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeyTenantID, key.TenantID)
	ctx = context.WithValue(ctx, ContextKeyUserID, user.ID)
	ctx = context.WithValue(ctx, ContextKeyUserRole, key.Role)
	ctx = context.WithValue(ctx, ContextKeyActorType, ActorAPIKey)
	return ctx, true
}

// withTenantOverride switches the request tenant when a superadmin names one.
func withTenantOverride(ctx context.Context, r *http.Request) context.Context {
	raw := r.Header.Get(HeaderTenantOverride)
	if raw == "" {
		return ctx
	}
	if role, _ := RoleFromContext(ctx); role != RoleSuperAdmin {
		return ctx
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return ctx
	}
	return context.WithValue(ctx, ContextKeyTenantID, tenantID)
}
