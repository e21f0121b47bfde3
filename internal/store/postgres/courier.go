package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type CourierRepo struct {
	pool *pgxpool.Pool
}

func NewCourierRepo(pool *pgxpool.Pool) *CourierRepo {
	return &CourierRepo{pool: pool}
}

const courierColumns = `id, tenant_id, name, phone, vehicle, status, active,
	last_lat, last_lng, last_position_at, created_at, updated_at`

func scanCourier(row pgx.Row) (*domain.Courier, error) {
	var c domain.Courier
	var lat, lng *float64
	var at *time.Time
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Vehicle, &c.Status, &c.Active,
		&lat, &lng, &at, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil && at != nil {
		c.LastPosition = &domain.Position{Lat: *lat, Lng: *lng, RecordedAt: *at}
	}
	return &c, nil
}

func (r *CourierRepo) Create(ctx context.Context, c *domain.Courier) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO couriers (id, tenant_id, name, phone, vehicle, status, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.TenantID, c.Name, c.Phone, c.Vehicle, c.Status, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return wrapErr("courierRepo.Create", err)
	}
	return nil
}

func (r *CourierRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Courier, error) {
	c, err := scanCourier(r.pool.QueryRow(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("courierRepo.GetByID", err)
	}
	return c, nil
}

// List returns couriers, optionally only those in status.
func (r *CourierRepo) List(ctx context.Context, tenantID uuid.UUID, status domain.CourierStatus) ([]*domain.Courier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+courierColumns+` FROM couriers
		 WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY name`,
		tenantID, string(status),
	)
	if err != nil {
		return nil, wrapErr("courierRepo.List", err)
	}
	defer rows.Close()

	var out []*domain.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, fmt.Errorf("courierRepo.List: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("courierRepo.List: rows: %w", err)
	}
	return out, nil
}

func (r *CourierRepo) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM couriers WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, wrapErr("courierRepo.Count", err)
	}
	return n, nil
}

func (r *CourierRepo) Update(ctx context.Context, c *domain.Courier) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE couriers SET name = $1, phone = $2, vehicle = $3, active = $4, updated_at = now()
		 WHERE tenant_id = $5 AND id = $6`,
		c.Name, c.Phone, c.Vehicle, c.Active, c.TenantID, c.ID,
	)
	if err != nil {
		return wrapErr("courierRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("courierRepo.Update: %w", domain.ErrNotFound)
	}
	return nil
}

// SetStatus changes availability. A busy courier is only released by
// finishing its delivery.
func (r *CourierRepo) SetStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.CourierStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE couriers SET status = $1, updated_at = now()
		 WHERE tenant_id = $2 AND id = $3 AND status <> 'busy'`,
		status, tenantID, id,
	)
	if err != nil {
		return wrapErr("courierRepo.SetStatus", err)
	}
	if tag.RowsAffected() == 0 {
		err := staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM couriers WHERE tenant_id = $1 AND id = $2)`, tenantID, id)
		return fmt.Errorf("courierRepo.SetStatus: %w", err)
	}
	return nil
}

func (r *CourierRepo) SetPosition(ctx context.Context, tenantID, id uuid.UUID, pos domain.Position) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE couriers SET last_lat = $1, last_lng = $2, last_position_at = $3
		 WHERE tenant_id = $4 AND id = $5`,
		pos.Lat, pos.Lng, pos.RecordedAt, tenantID, id,
	)
	if err != nil {
		return wrapErr("courierRepo.SetPosition", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("courierRepo.SetPosition: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a courier with no delivery history; others report ErrConflict.
func (r *CourierRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM couriers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("courierRepo.Delete: courier has deliveries: %w", domain.ErrConflict)
	}
	if err != nil {
		return wrapErr("courierRepo.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("courierRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}
