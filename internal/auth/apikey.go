package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
)

// ErrInvalidAPIKey is returned when an API key is not found or the hash does not match.
var ErrInvalidAPIKey = errors.New("auth: invalid API key")

const (
	apiKeyPrefix    = "sd_"
	apiKeyRandLen   = 16 // 16 bytes = 32 hex chars
	apiKeyPrefixLen = 11 // "sd_" + 8 hex chars, used for lookup
)

// GenerateAPIKey creates a new API key acting with role, stores the SHA-256
// hash, and returns the raw key (shown to the user once).
// Key format: "sd_" + 32 random hex chars.
func (s *Service) GenerateAPIKey(ctx context.Context, tenantID, userID uuid.UUID, name, role string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	if !domain.ValidRole(role) || role == domain.RoleSuperAdmin {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %q: %w", role, ErrInvalidRole)
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", domain.Invalid("expires_at", "must be in the future"))
	}

	raw := make([]byte, apiKeyRandLen)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	rawKey := apiKeyPrefix + hex.EncodeToString(raw)

	key := &domain.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Name:      name,
		KeyHash:   hashAPIKey(rawKey),
		Prefix:    rawKey[:apiKeyPrefixLen],
		Role:      role,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	if err := s.userRepo.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	return rawKey, key, nil
}

// ValidateAPIKey checks an API key by looking up its prefix and comparing the
// SHA-256 hash. Returns the owning user and the key record, whose Role is
// capped at the user's current role.
func (s *Service) ValidateAPIKey(ctx context.Context, rawKey string) (*domain.User, *domain.APIKey, error) {
	if len(rawKey) < apiKeyPrefixLen {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	apiKey, err := s.userRepo.GetAPIKeyByPrefix(ctx, rawKey[:apiKeyPrefixLen])
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	if subtle.ConstantTimeCompare([]byte(apiKey.KeyHash), []byte(hashAPIKey(rawKey))) != 1 {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: key expired: %w", ErrInvalidAPIKey)
	}

	user, err := s.userRepo.GetByID(ctx, apiKey.TenantID, apiKey.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", err)
	}
	if err := s.ensureActive(ctx, apiKey.TenantID); err != nil {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", err)
	}
	// A key never outranks its owner; demoting the user demotes the key.
	if !domain.RoleCovers(user.Role, apiKey.Role) {
		capped := *apiKey
		capped.Role = user.Role
		apiKey = &capped
	}

	if updateErr := s.userRepo.UpdateAPIKeyLastUsed(ctx, apiKey.ID); updateErr != nil {
		log.Warn().Err(updateErr).Str("api_key_id", apiKey.ID.String()).Msg("auth.ValidateAPIKey: failed to update last_used_at")
	}

	return user, apiKey, nil
}

// ListAPIKeys returns the keys a user owns.
func (s *Service) ListAPIKeys(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.APIKey, error) {
	keys, err := s.userRepo.ListAPIKeys(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.ListAPIKeys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey deletes a key.
func (s *Service) RevokeAPIKey(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.userRepo.DeleteAPIKey(ctx, tenantID, id); err != nil {
		return fmt.Errorf("auth.RevokeAPIKey: %w", err)
	}
	return nil
}

func hashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
