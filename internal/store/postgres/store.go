package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/secrets"
)

type Store struct {
	pool           *pgxpool.Pool
	tenants        *TenantRepo
	users          *UserRepo
	products       *ProductRepo
	coupons        *CouponRepo
	orders         *OrderRepo
	couriers       *CourierRepo
	deliveries     *DeliveryRepo
	purchaseOrders *PurchaseOrderRepo
	notifications  *NotificationRepo
	billing        *BillingRepo
	giveaways      *GiveawayRepo
	audit          *AuditRepo
	analytics      *AnalyticsRepo
	secrets        *SecretRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return NewFromPool(pool), nil
}

// NewFromPool wires repositories over an existing pool.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:           pool,
		tenants:        NewTenantRepo(pool),
		users:          NewUserRepo(pool),
		products:       NewProductRepo(pool),
		coupons:        NewCouponRepo(pool),
		orders:         NewOrderRepo(pool),
		couriers:       NewCourierRepo(pool),
		deliveries:     NewDeliveryRepo(pool),
		purchaseOrders: NewPurchaseOrderRepo(pool),
		notifications:  NewNotificationRepo(pool),
		billing:        NewBillingRepo(pool),
		giveaways:      NewGiveawayRepo(pool),
		audit:          NewAuditRepo(pool),
		analytics:      NewAnalyticsRepo(pool),
		secrets:        NewSecretRepo(pool),
	}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Tenants() domain.TenantRepository               { return s.tenants }
func (s *Store) Users() domain.UserRepository                   { return s.users }
func (s *Store) Products() domain.ProductRepository             { return s.products }
func (s *Store) Coupons() domain.CouponRepository               { return s.coupons }
func (s *Store) Orders() domain.OrderRepository                 { return s.orders }
func (s *Store) Couriers() domain.CourierRepository             { return s.couriers }
func (s *Store) Deliveries() domain.DeliveryRepository          { return s.deliveries }
func (s *Store) PurchaseOrders() domain.PurchaseOrderRepository { return s.purchaseOrders }
func (s *Store) Notifications() domain.NotificationRepository   { return s.notifications }
func (s *Store) Billing() domain.BillingRepository              { return s.billing }
func (s *Store) Giveaways() domain.GiveawayRepository           { return s.giveaways }
func (s *Store) Audit() domain.AuditRepository                  { return s.audit }
func (s *Store) Analytics() domain.AnalyticsRepository          { return s.analytics }
func (s *Store) Secrets() secrets.SecretRepository              { return s.secrets }

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// inTx runs fn in a transaction, committing when fn returns nil.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, pool, fn)
}

// Postgres error codes mapped onto domain sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// wrapErr prefixes err with op and attaches the matching domain sentinel so
// callers can errors.Is against it. The driver error stays in the chain.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
		case pgCheckViolation:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrValidation, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// nextSequence increments and returns the tenant's named counter.
func nextSequence(ctx context.Context, q querier, tenantID uuid.UUID, name string) (int64, error) {
	var v int64
	err := q.QueryRow(ctx,
		`INSERT INTO tenant_sequences (tenant_id, name, value) VALUES ($1, $2, 1)
		 ON CONFLICT (tenant_id, name) DO UPDATE SET value = tenant_sequences.value + 1
		 RETURNING value`,
		tenantID, name,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("nextSequence %s: %w", name, err)
	}
	return v, nil
}

// pageLimit clamps a requested page size.
func pageLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
