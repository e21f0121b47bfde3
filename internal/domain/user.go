package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Roles, ordered from most to least privileged.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleMember     = "member"
	RoleViewer     = "viewer"
)

// ValidRole reports whether role is one a user can hold.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

var roleRank = map[string]int{ //nolint:gochecknoglobals // role ordering
	RoleViewer:     1,
	RoleMember:     2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// RoleCovers reports whether holder has at least the rights of role.
func RoleCovers(holder, role string) bool {
	h, ok := roleRank[holder]
	return ok && h >= roleRank[role] && roleRank[role] > 0
}

type User struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // argon2id, empty if OAuth-only
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserOAuthLink struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Provider   string // "google", "github"
	ProviderID string
	CreatedAt  time.Time
}

type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	Prefix     string     `json:"prefix"`
	Role       string     `json:"role"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, tenantID uuid.UUID) ([]*User, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)

	CreateOAuthLink(ctx context.Context, link *UserOAuthLink) error
	GetOAuthLink(ctx context.Context, provider, providerID string) (*UserOAuthLink, error)

	CreateAPIKey(ctx context.Context, key *APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	ListAPIKeys(ctx context.Context, tenantID, userID uuid.UUID) ([]*APIKey, error)
	DeleteAPIKey(ctx context.Context, tenantID, id uuid.UUID) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}
