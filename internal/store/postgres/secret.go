package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/secrets"
)

// SecretRepo implements secrets.SecretRepository using PostgreSQL.
type SecretRepo struct {
	pool *pgxpool.Pool
}

func NewSecretRepo(pool *pgxpool.Pool) *SecretRepo {
	return &SecretRepo{pool: pool}
}

// Put inserts or replaces an encrypted secret.
func (r *SecretRepo) Put(ctx context.Context, s *secrets.Secret) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenant_secrets (tenant_id, name, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.TenantID, s.Name, s.Value, s.UpdatedAt,
	)
	if err != nil {
		return wrapErr("secretRepo.Put", err)
	}

	return nil
}

func (r *SecretRepo) Get(ctx context.Context, tenantID uuid.UUID, name string) (*secrets.Secret, error) {
	var s secrets.Secret

	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, name, value, updated_at FROM tenant_secrets WHERE tenant_id = $1 AND name = $2`,
		tenantID, name,
	).Scan(&s.TenantID, &s.Name, &s.Value, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("secretRepo.Get: %w", secrets.ErrSecretNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("secretRepo.Get: %w", err)
	}

	return &s, nil
}

func (r *SecretRepo) ListNames(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name FROM tenant_secrets WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("secretRepo.ListNames: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("secretRepo.ListNames: %w", err)
	}
	return names, nil
}

func (r *SecretRepo) Delete(ctx context.Context, tenantID uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tenant_secrets WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	if err != nil {
		return fmt.Errorf("secretRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("secretRepo.Delete: %w", secrets.ErrSecretNotFound)
	}

	return nil
}
