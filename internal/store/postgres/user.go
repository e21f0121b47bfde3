package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// --- Users ---

const userColumns = `id, tenant_id, email, password_hash, name, role, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, tenant_id, email, password_hash, name, role, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.TenantID, u.Email, u.PasswordHash, u.Name, u.Role, u.AvatarURL, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return wrapErr("userRepo.Create", err)
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	))
	if err != nil {
		return nil, wrapErr("userRepo.GetByID", err)
	}

	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`,
		tenantID, email,
	))
	if err != nil {
		return nil, wrapErr("userRepo.GetByEmail", err)
	}

	return u, nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $1, password_hash = $2, name = $3, role = $4, avatar_url = $5, updated_at = now()
		 WHERE tenant_id = $6 AND id = $7`,
		u.Email, u.PasswordHash, u.Name, u.Role, u.AvatarURL, u.TenantID, u.ID,
	)
	if err != nil {
		return wrapErr("userRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("userRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, wrapErr("userRepo.List", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("userRepo.List: scan: %w", scanErr)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.List: rows: %w", err)
	}

	return users, nil
}

func (r *UserRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, wrapErr("userRepo.CountByTenant", err)
	}
	return n, nil
}

// --- OAuth links ---

func (r *UserRepo) CreateOAuthLink(ctx context.Context, link *domain.UserOAuthLink) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_oauth_links (id, user_id, provider, provider_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		link.ID, link.UserID, link.Provider, link.ProviderID, link.CreatedAt,
	)
	if err != nil {
		return wrapErr("userRepo.CreateOAuthLink", err)
	}

	return nil
}

func (r *UserRepo) GetOAuthLink(ctx context.Context, provider, providerID string) (*domain.UserOAuthLink, error) {
	var l domain.UserOAuthLink

	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, provider, provider_id, created_at
		 FROM user_oauth_links WHERE provider = $1 AND provider_id = $2`,
		provider, providerID,
	).Scan(&l.ID, &l.UserID, &l.Provider, &l.ProviderID, &l.CreatedAt)
	if err != nil {
		return nil, wrapErr("userRepo.GetOAuthLink", err)
	}

	return &l, nil
}

// --- API keys ---

const apiKeyColumns = `id, tenant_id, user_id, name, key_hash, prefix, role, last_used_at, expires_at, created_at`

func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	var k domain.APIKey
	err := row.Scan(&k.ID, &k.TenantID, &k.UserID, &k.Name, &k.KeyHash, &k.Prefix, &k.Role, &k.LastUsedAt, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *UserRepo) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, user_id, name, key_hash, prefix, role, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.TenantID, key.UserID, key.Name, key.KeyHash, key.Prefix, key.Role, key.ExpiresAt, key.CreatedAt,
	)
	if err != nil {
		return wrapErr("userRepo.CreateAPIKey", err)
	}

	return nil
}

// GetAPIKeyByPrefix looks a key up across tenants; the prefix is globally unique.
func (r *UserRepo) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	k, err := scanAPIKey(r.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1`, prefix))
	if err != nil {
		return nil, wrapErr("userRepo.GetAPIKeyByPrefix", err)
	}

	return k, nil
}

func (r *UserRepo) ListAPIKeys(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.APIKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE tenant_id = $1 AND user_id = $2 ORDER BY created_at DESC`,
		tenantID, userID,
	)
	if err != nil {
		return nil, wrapErr("userRepo.ListAPIKeys", err)
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		k, scanErr := scanAPIKey(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("userRepo.ListAPIKeys: scan: %w", scanErr)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.ListAPIKeys: rows: %w", err)
	}

	return keys, nil
}

func (r *UserRepo) DeleteAPIKey(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM api_keys WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return wrapErr("userRepo.DeleteAPIKey", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("userRepo.DeleteAPIKey: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return wrapErr("userRepo.UpdateAPIKeyLastUsed", err)
	}

	return nil
}
