package auth_test

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/domain"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testEmail     = "alice@example.com"
	testPassword  = "correct-horse-battery-staple"
	testUserName  = "Alice"
)

var (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

func newTestService(repo *mockUserRepo) *auth.Service {
	return auth.NewService(repo, &mockTenants{}, testJWTSecret, testAccessTTL, testRefreshTTL)
}

// registered returns a repo holding one user with testPassword.
func registered(t *testing.T, tenantID uuid.UUID) (*mockUserRepo, *auth.Service, *domain.User) {
	t.Helper()

	repo := newMockUserRepo()
	svc := newTestService(repo)
	user, err := svc.Register(t.Context(), tenantID, testEmail, testPassword, testUserName)
	require.NoError(t, err)
	return repo, svc, user
}

// --- Register tests ---

func TestRegister(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("short password", func(t *testing.T) {
		t.Parallel()

		_, err := newTestService(newMockUserRepo()).Register(t.Context(), tenantID, testEmail, "chai", testUserName)
		assert.ErrorIs(t, err, auth.ErrWeakPassword)
	})

	t.Run("first user becomes admin", func(t *testing.T) {
		t.Parallel()

		_, _, user := registered(t, tenantID)

		assert.Equal(t, tenantID, user.TenantID)
		assert.Equal(t, testEmail, user.Email)
		assert.Equal(t, testUserName, user.Name)
		assert.Equal(t, domain.RoleAdmin, user.Role)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("later users are members", func(t *testing.T) {
		t.Parallel()

		_, svc, _ := registered(t, tenantID)
		second, err := svc.Register(t.Context(), tenantID, "bob@example.com", testPassword, "Bob")

		require.NoError(t, err)
		assert.Equal(t, domain.RoleMember, second.Role)
	})

	t.Run("email is normalized", func(t *testing.T) {
		t.Parallel()

		repo := newMockUserRepo()
		user, err := newTestService(repo).Register(t.Context(), tenantID, "  Carol@Example.COM ", testPassword, "Carol")

		require.NoError(t, err)
		assert.Equal(t, "carol@example.com", user.Email)
	})

	t.Run("password is hashed not stored as plaintext", func(t *testing.T) {
		t.Parallel()

		_, _, user := registered(t, tenantID)

		assert.NotEqual(t, testPassword, user.PasswordHash)
		assert.Contains(t, user.PasswordHash, "$", "argon2id hash must contain salt$hash separator")
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()

		_, svc, _ := registered(t, tenantID)
		user, err := svc.Register(t.Context(), tenantID, testEmail, testPassword, testUserName)

		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	})

	t.Run("unique violation on insert maps to already exists", func(t *testing.T) {
		t.Parallel()

		repo := newMockUserRepo()
		repo.createErr = domain.ErrConflict

		_, err := newTestService(repo).Register(t.Context(), tenantID, testEmail, testPassword, testUserName)
		assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	})

	t.Run("count error is propagated", func(t *testing.T) {
		t.Parallel()

		repoErr := errors.New("database connection refused")
		repo := newMockUserRepo()
		repo.countErr = repoErr

		_, err := newTestService(repo).Register(t.Context(), tenantID, testEmail, testPassword, testUserName)
		assert.ErrorIs(t, err, repoErr)
	})
}

// --- Login tests ---

func TestLogin(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("valid credentials return token pair", func(t *testing.T) {
		t.Parallel()

		_, svc, user := registered(t, tenantID)

		tokens, err := svc.Login(t.Context(), tenantID, "ALICE@example.com", testPassword)
		require.NoError(t, err)

		access, err := auth.ValidateToken(testJWTSecret, tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "access", access.TokenType)
		assert.Equal(t, user.ID.String(), access.UserID)
		assert.Equal(t, domain.RoleAdmin, access.Role)

		refresh, err := auth.ValidateToken(testJWTSecret, tokens.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh", refresh.TokenType)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()

		_, svc, _ := registered(t, tenantID)

		tokens, err := svc.Login(t.Context(), tenantID, testEmail, "wrong-password")
		assert.Nil(t, tokens)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		_, err := newTestService(newMockUserRepo()).Login(t.Context(), tenantID, testEmail, testPassword)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("weaker hash is upgraded", func(t *testing.T) {
		t.Parallel()

		salt := []byte("fixed-salt-bytes")
		key := argon2.IDKey([]byte(testPassword), salt, 1, 8*1024, 1, 32)
		old := fmt.Sprintf("$argon2id$v=19$m=8192,t=1,p=1$%s$%s",
			base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key))
		user := &domain.User{ID: uuid.New(), TenantID: tenantID, Email: testEmail, PasswordHash: old, Role: domain.RoleMember}
		repo := newMockUserRepo(user)

		_, err := newTestService(repo).Login(t.Context(), tenantID, testEmail, testPassword)
		require.NoError(t, err)

		stored, err := repo.GetByID(t.Context(), tenantID, user.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$v=19$m=65536,"), stored.PasswordHash)
	})

	t.Run("other tenant", func(t *testing.T) {
		t.Parallel()

		_, svc, _ := registered(t, tenantID)

		_, err := svc.Login(t.Context(), uuid.New(), testEmail, testPassword)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("OAuth-only user cannot use password", func(t *testing.T) {
		t.Parallel()

		u := &domain.User{ID: uuid.New(), TenantID: tenantID, Email: testEmail, Role: domain.RoleMember}
		_, err := newTestService(newMockUserRepo(u)).Login(t.Context(), tenantID, testEmail, "")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

// --- RefreshToken tests ---

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("issues access token with current role", func(t *testing.T) {
		t.Parallel()

		repo, svc, user := registered(t, tenantID)
		tokens, err := svc.Login(t.Context(), tenantID, testEmail, testPassword)
		require.NoError(t, err)

		repo.users[user.ID].Role = domain.RoleViewer

		access, err := svc.RefreshToken(t.Context(), tokens.RefreshToken)
		require.NoError(t, err)

		claims, err := auth.ValidateToken(testJWTSecret, access)
		require.NoError(t, err)
		assert.Equal(t, "access", claims.TokenType)
		assert.Equal(t, domain.RoleViewer, claims.Role)
	})

	t.Run("suspended shop", func(t *testing.T) {
		t.Parallel()

		repo := newMockUserRepo()
		tenants := &mockTenants{}
		svc := auth.NewService(repo, tenants, testJWTSecret, testAccessTTL, testRefreshTTL)
		shop := uuid.New()
		_, err := svc.Register(t.Context(), shop, testEmail, testPassword, testUserName)
		require.NoError(t, err)
		tokens, err := svc.Login(t.Context(), shop, testEmail, testPassword)
		require.NoError(t, err)

		tenants.suspend(shop)

		access, err := svc.RefreshToken(t.Context(), tokens.RefreshToken)
		assert.Empty(t, access)
		assert.ErrorIs(t, err, auth.ErrTenantSuspended)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		t.Parallel()

		_, svc, _ := registered(t, tenantID)
		tokens, err := svc.Login(t.Context(), tenantID, testEmail, testPassword)
		require.NoError(t, err)

		_, err = svc.RefreshToken(t.Context(), tokens.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("deleted user", func(t *testing.T) {
		t.Parallel()

		refresh, err := auth.IssueRefreshToken(testJWTSecret, tenantID, uuid.New(), domain.RoleMember, time.Hour)
		require.NoError(t, err)

		_, err = newTestService(newMockUserRepo()).RefreshToken(t.Context(), refresh)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()

		_, err := newTestService(newMockUserRepo()).RefreshToken(t.Context(), "garbage")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

// --- ChangeRole tests ---

func TestChangeRole(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	tests := []struct {
		name      string
		role      string
		actorRole string
		wantErr   error
	}{
		{name: "admin demotes to viewer", role: domain.RoleViewer, actorRole: domain.RoleAdmin},
		{name: "unknown role", role: "owner", actorRole: domain.RoleAdmin, wantErr: auth.ErrInvalidRole},
		{name: "admin cannot grant superadmin", role: domain.RoleSuperAdmin, actorRole: domain.RoleAdmin, wantErr: domain.ErrForbidden},
		{name: "superadmin grants superadmin", role: domain.RoleSuperAdmin, actorRole: domain.RoleSuperAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, svc, user := registered(t, tenantID)

			got, err := svc.ChangeRole(t.Context(), tenantID, user.ID, tt.role, tt.actorRole)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, got.Role)
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		_, err := newTestService(newMockUserRepo()).ChangeRole(t.Context(), tenantID, uuid.New(), domain.RoleMember, domain.RoleAdmin)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	_, svc, user := registered(t, tenantID)

	got, err := svc.GetUser(t.Context(), tenantID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.GetUser(t.Context(), uuid.New(), user.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
