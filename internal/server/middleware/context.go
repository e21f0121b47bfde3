package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ContextKeyTenantID  contextKey = "tenant_id"
	ContextKeyUserID    contextKey = "user_id"
	ContextKeyUserRole  contextKey = "role"
	ContextKeyActorType contextKey = "actor_type"
)

// Actor types recorded in the audit trail.
const (
	ActorUser   = "user"
	ActorAPIKey = "api_key"
	ActorSystem = "system"
)

func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyTenantID).(uuid.UUID)
	return v, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(string)
	return v, ok
}

// ActorTypeFromContext defaults to ActorUser when unset.
func ActorTypeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyActorType).(string); ok && v != "" {
		return v
	}
	return ActorUser
}
