package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserAlreadyExists  = errors.New("auth: user already exists")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrInvalidRole        = errors.New("auth: invalid role")
	ErrTenantSuspended    = errors.New("auth: tenant suspended")
)

// Tokens is an access/refresh pair handed to a client after login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TenantLookup reads a shop so credentials of suspended shops can be refused.
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
}

// Service provides authentication and authorization operations.
type Service struct {
	userRepo   domain.UserRepository
	tenants    TenantLookup
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a new auth service.
func NewService(userRepo domain.UserRepository, tenants TenantLookup, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		userRepo:   userRepo,
		tenants:    tenants,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register creates a new staff user with email/password. The first user of a
// tenant becomes its admin; everyone after starts as a member.
func (s *Service) Register(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error) {
	email = normalizeEmail(email)

	existing, err := s.userRepo.GetByEmail(ctx, tenantID, email)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("auth.Register: %w", ErrUserAlreadyExists)
	}

	count, err := s.userRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}
	role := domain.RoleMember
	if count == 0 {
		role = domain.RoleAdmin
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("auth.Register: %w", ErrUserAlreadyExists)
		}
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	log.Info().Str("tenant_id", tenantID.String()).Str("user_id", user.ID.String()).Str("role", role).Msg("user registered")

	return user, nil
}

// Login validates email/password and returns access + refresh JWT tokens.
func (s *Service) Login(ctx context.Context, tenantID uuid.UUID, email, password string) (*Tokens, error) {
	user, err := s.userRepo.GetByEmail(ctx, tenantID, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	if !verifyPassword(password, user.PasswordHash) {
		return nil, fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}
	if needsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}
	return tokens, nil
}

// RefreshToken trades a refresh token for a fresh access token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrInvalidToken)
	}
	tenantID, err := claims.Tenant()
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}
	userID, err := claims.User()
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	// Re-read the user so role changes take effect on refresh.
	user, err := s.userRepo.GetByID(ctx, tenantID, userID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrUserNotFound)
	}
	if err := s.ensureActive(ctx, user.TenantID); err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	newAccess, err := IssueAccessToken(s.jwtSecret, user.TenantID, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	return newAccess, nil
}

// GetUser returns a user by ID (for middleware use).
func (s *Service) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.GetUser: %w", err)
	}

	return user, nil
}

// ChangeRole sets a user's role. Only a superadmin may grant superadmin.
func (s *Service) ChangeRole(ctx context.Context, tenantID, userID uuid.UUID, role, actorRole string) (*domain.User, error) {
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("auth.ChangeRole: %q: %w", role, ErrInvalidRole)
	}
	if role == domain.RoleSuperAdmin && actorRole != domain.RoleSuperAdmin {
		return nil, fmt.Errorf("auth.ChangeRole: %w", domain.ErrForbidden)
	}

	user, err := s.userRepo.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.ChangeRole: %w", err)
	}

	user.Role = role
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("auth.ChangeRole: %w", err)
	}

	return user, nil
}

func (s *Service) issuePair(user *domain.User) (*Tokens, error) {
	access, err := IssueAccessToken(s.jwtSecret, user.TenantID, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := IssueRefreshToken(s.jwtSecret, user.TenantID, user.ID, user.Role, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// upgradeHash re-hashes with the current argon2 costs. Failure only delays the
// upgrade to the next login.
func (s *Service) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := hashPassword(password)
	if err != nil {
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("password rehash failed")
	}
}

// ensureActive refuses credentials of a suspended shop.
func (s *Service) ensureActive(ctx context.Context, tenantID uuid.UUID) error {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if t.Status != domain.TenantStatusActive {
		return ErrTenantSuspended
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
