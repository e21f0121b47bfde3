package v1

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/billing"
	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/storage"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tenants() domain.TenantRepository
	Users() domain.UserRepository
	Products() domain.ProductRepository
	Coupons() domain.CouponRepository
	Orders() domain.OrderRepository
	Couriers() domain.CourierRepository
	Deliveries() domain.DeliveryRepository
	PurchaseOrders() domain.PurchaseOrderRepository
	Notifications() domain.NotificationRepository
	Billing() domain.BillingRepository
	Giveaways() domain.GiveawayRepository
	Audit() domain.AuditRepository
	Analytics() domain.AnalyticsRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, tenantID uuid.UUID, email, password string) (*auth.Tokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*domain.User, error)
	ChangeRole(ctx context.Context, tenantID, userID uuid.UUID, role, actorRole string) (*domain.User, error)

	GenerateAPIKey(ctx context.Context, tenantID, userID uuid.UUID, name, role string, expiresAt *time.Time) (string, *domain.APIKey, error)
	ListAPIKeys(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, tenantID, id uuid.UUID) error

	OAuthStart(p auth.OAuthExchanger, tenantID uuid.UUID) (string, error)
	OAuthCallback(ctx context.Context, p auth.OAuthExchanger, state, code string) (*auth.Tokens, *domain.User, error)
}

// PlanEnforcer checks plan limits and features and runs platform billing.
// *billing.Service satisfies this interface.
type PlanEnforcer interface {
	PlanFor(ctx context.Context, tenantID uuid.UUID) (*domain.Plan, error)
	CheckLimit(ctx context.Context, tenantID uuid.UUID, resource billing.Resource) error
	RequireFeature(ctx context.Context, tenantID uuid.UUID, feature string) error
	ChangePlan(ctx context.Context, tenantID uuid.UUID, planCode string) (*domain.Tenant, error)
	GenerateInvoices(ctx context.Context, at time.Time) (int, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	Void(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
}

// Notifier dispatches tenant notifications. *notify.Notifier satisfies this interface.
type Notifier interface {
	Dispatch(ctx context.Context, tenantID uuid.UUID, key string, data map[string]any) (*domain.NotificationLog, error)
	NotifyAsync(tenantID uuid.UUID, key string, data map[string]any)
}

// ObjectStorage presigns uploads and downloads. *storage.S3 satisfies this interface.
type ObjectStorage interface {
	PresignPut(ctx context.Context, key, contentType string) (*storage.PresignedURL, error)
	PresignGet(ctx context.Context, key string) (*storage.PresignedURL, error)
	Delete(ctx context.Context, key string) error
}

// Events publishes realtime messages. *redis.PubSub satisfies this interface.
type Events interface {
	PublishChange(ctx context.Context, tenantID uuid.UUID, ev domain.ChangeEvent) error
	PublishLocation(ctx context.Context, tenantID uuid.UUID, loc domain.CourierLocation) error
}

// PositionCache holds last-known courier positions. *redis.Positions satisfies this interface.
type PositionCache interface {
	Set(ctx context.Context, tenantID, courierID uuid.UUID, pos domain.Position) error
	Nearby(ctx context.Context, tenantID uuid.UUID, lat, lng, radiusKm float64, limit int) ([]domain.NearbyCourier, error)
	Remove(ctx context.Context, tenantID, courierID uuid.UUID) error
}

// WinnerDrawer runs a giveaway drawing. *giveaway.Service satisfies this interface.
type WinnerDrawer interface {
	Draw(ctx context.Context, tenantID, id uuid.UUID) ([]*domain.GiveawayWinner, error)
}

// SecretStore keeps encrypted tenant credentials. *secrets.Keeper satisfies this interface.
type SecretStore interface {
	Put(ctx context.Context, tenantID uuid.UUID, name, plaintext string) error
	Names(ctx context.Context, tenantID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, tenantID uuid.UUID, name string) error
}

// Recorder counts business events. *metrics.Metrics satisfies this interface.
type Recorder interface {
	OrderCreated()
}
