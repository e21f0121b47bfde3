package v1_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/billing"
	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/secrets"
	"github.com/gosuda/shopdesk/internal/server/middleware"
	"github.com/gosuda/shopdesk/internal/storage"
)

// ---------------------------------------------------------------------------
// Context helpers: inject tenant/user/role into context for DoCtx
// ---------------------------------------------------------------------------

func tenantCtx(tenantID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyTenantID, tenantID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, fixedUserID())
	return ctx
}

func roleCtx(tenantID uuid.UUID, role string) context.Context {
	return context.WithValue(tenantCtx(tenantID), middleware.ContextKeyUserRole, role)
}

func adminCtx(tenantID uuid.UUID) context.Context  { return roleCtx(tenantID, middleware.RoleAdmin) }
func memberCtx(tenantID uuid.UUID) context.Context { return roleCtx(tenantID, middleware.RoleMember) }
func viewerCtx(tenantID uuid.UUID) context.Context { return roleCtx(tenantID, middleware.RoleViewer) }

func superCtx() context.Context {
	return roleCtx(fixedTenantID(), middleware.RoleSuperAdmin)
}

func fixedTenantID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}

func fixedTenantID2() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000002")
}

func fixedUserID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
}

func ptr[T any](v T) *T { return &v }

// ---------------------------------------------------------------------------
// Mock DataStore
//
// Repository mocks embed their interface: calling a method the test did not
// stub panics on the nil embedded value, which fails the test loudly.
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tenants        domain.TenantRepository
	users          domain.UserRepository
	products       domain.ProductRepository
	coupons        domain.CouponRepository
	orders         domain.OrderRepository
	couriers       domain.CourierRepository
	deliveries     domain.DeliveryRepository
	purchaseOrders domain.PurchaseOrderRepository
	notifications  domain.NotificationRepository
	billing        domain.BillingRepository
	giveaways      domain.GiveawayRepository
	analytics      domain.AnalyticsRepository

	auditOnce sync.Once
	audit     *mockAuditRepo
}

func (m *mockDataStore) Tenants() domain.TenantRepository               { return m.tenants }
func (m *mockDataStore) Users() domain.UserRepository                   { return m.users }
func (m *mockDataStore) Products() domain.ProductRepository             { return m.products }
func (m *mockDataStore) Coupons() domain.CouponRepository               { return m.coupons }
func (m *mockDataStore) Orders() domain.OrderRepository                 { return m.orders }
func (m *mockDataStore) Couriers() domain.CourierRepository             { return m.couriers }
func (m *mockDataStore) Deliveries() domain.DeliveryRepository          { return m.deliveries }
func (m *mockDataStore) PurchaseOrders() domain.PurchaseOrderRepository { return m.purchaseOrders }
func (m *mockDataStore) Notifications() domain.NotificationRepository   { return m.notifications }
func (m *mockDataStore) Billing() domain.BillingRepository              { return m.billing }
func (m *mockDataStore) Giveaways() domain.GiveawayRepository           { return m.giveaways }
func (m *mockDataStore) Analytics() domain.AnalyticsRepository          { return m.analytics }

func (m *mockDataStore) Audit() domain.AuditRepository {
	m.auditOnce.Do(func() {
		if m.audit == nil {
			m.audit = &mockAuditRepo{}
		}
	})
	return m.audit
}

// auditActions returns the recorded audit actions in order.
func (m *mockDataStore) auditActions() []string {
	a := m.Audit().(*mockAuditRepo)
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// ---------------------------------------------------------------------------
// Mock repositories
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	domain.TenantRepository
	createFunc        func(ctx context.Context, t *domain.Tenant) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	getBySlugFunc     func(ctx context.Context, slug string) (*domain.Tenant, error)
	updateFunc        func(ctx context.Context, t *domain.Tenant) error
	setStatusFunc     func(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error
	listPaginatedFunc func(ctx context.Context, limit, offset int) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	return m.createFunc(ctx, t)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTenantRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error {
	return m.setStatusFunc(ctx, id, status)
}

func (m *mockTenantRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	return m.listPaginatedFunc(ctx, limit, offset)
}

type mockUserRepo struct {
	domain.UserRepository
	listFunc func(ctx context.Context, tenantID uuid.UUID) ([]*domain.User, error)
}

func (m *mockUserRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.User, error) {
	return m.listFunc(ctx, tenantID)
}

type mockProductRepo struct {
	domain.ProductRepository
	createFunc        func(ctx context.Context, p *domain.Product) error
	getByIDFunc       func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error)
	listFunc          func(ctx context.Context, tenantID uuid.UUID, f domain.ProductFilter) ([]*domain.Product, error)
	updateFunc        func(ctx context.Context, p *domain.Product) error
	setImageFunc      func(ctx context.Context, tenantID, id uuid.UUID, key string) error
	deleteFunc        func(ctx context.Context, tenantID, id uuid.UUID) error
	adjustStockFunc   func(ctx context.Context, tenantID, id uuid.UUID, delta int, reason, note string) (*domain.StockMovement, error)
	listLowStockFunc  func(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error)
	listMovementsFunc func(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]*domain.StockMovement, error)
}

func (m *mockProductRepo) Create(ctx context.Context, p *domain.Product) error {
	return m.createFunc(ctx, p)
}

func (m *mockProductRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockProductRepo) List(ctx context.Context, tenantID uuid.UUID, f domain.ProductFilter) ([]*domain.Product, error) {
	return m.listFunc(ctx, tenantID, f)
}

func (m *mockProductRepo) Update(ctx context.Context, p *domain.Product) error {
	return m.updateFunc(ctx, p)
}

func (m *mockProductRepo) SetImage(ctx context.Context, tenantID, id uuid.UUID, key string) error {
	return m.setImageFunc(ctx, tenantID, id, key)
}

func (m *mockProductRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.deleteFunc(ctx, tenantID, id)
}

func (m *mockProductRepo) AdjustStock(ctx context.Context, tenantID, id uuid.UUID, delta int, reason, note string) (*domain.StockMovement, error) {
	return m.adjustStockFunc(ctx, tenantID, id, delta, reason, note)
}

func (m *mockProductRepo) ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error) {
	return m.listLowStockFunc(ctx, tenantID)
}

func (m *mockProductRepo) ListMovements(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]*domain.StockMovement, error) {
	return m.listMovementsFunc(ctx, tenantID, productID, limit)
}

type mockCouponRepo struct {
	domain.CouponRepository
	createFunc    func(ctx context.Context, c *domain.Coupon) error
	getByCodeFunc func(ctx context.Context, tenantID uuid.UUID, code string) (*domain.Coupon, error)
}

func (m *mockCouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	return m.createFunc(ctx, c)
}

func (m *mockCouponRepo) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.Coupon, error) {
	return m.getByCodeFunc(ctx, tenantID, code)
}

type mockOrderRepo struct {
	domain.OrderRepository
	placeFunc        func(ctx context.Context, draft *domain.OrderDraft) (*domain.Order, error)
	getByIDFunc      func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error)
	listFunc         func(ctx context.Context, tenantID uuid.UUID, f domain.OrderFilter) ([]*domain.Order, error)
	updateStatusFunc func(ctx context.Context, tenantID, id uuid.UUID, from, to domain.OrderStatus) error
	deleteFunc       func(ctx context.Context, tenantID, id uuid.UUID) error
}

func (m *mockOrderRepo) Place(ctx context.Context, draft *domain.OrderDraft) (*domain.Order, error) {
	return m.placeFunc(ctx, draft)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockOrderRepo) List(ctx context.Context, tenantID uuid.UUID, f domain.OrderFilter) ([]*domain.Order, error) {
	return m.listFunc(ctx, tenantID, f)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to domain.OrderStatus) error {
	return m.updateStatusFunc(ctx, tenantID, id, from, to)
}

func (m *mockOrderRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.deleteFunc(ctx, tenantID, id)
}

type mockCourierRepo struct {
	domain.CourierRepository
	createFunc      func(ctx context.Context, c *domain.Courier) error
	getByIDFunc     func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Courier, error)
	setStatusFunc   func(ctx context.Context, tenantID, id uuid.UUID, status domain.CourierStatus) error
	setPositionFunc func(ctx context.Context, tenantID, id uuid.UUID, pos domain.Position) error
	deleteFunc      func(ctx context.Context, tenantID, id uuid.UUID) error
}

func (m *mockCourierRepo) Create(ctx context.Context, c *domain.Courier) error {
	return m.createFunc(ctx, c)
}

func (m *mockCourierRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Courier, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockCourierRepo) SetStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.CourierStatus) error {
	return m.setStatusFunc(ctx, tenantID, id, status)
}

func (m *mockCourierRepo) SetPosition(ctx context.Context, tenantID, id uuid.UUID, pos domain.Position) error {
	return m.setPositionFunc(ctx, tenantID, id, pos)
}

func (m *mockCourierRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.deleteFunc(ctx, tenantID, id)
}

type mockDeliveryRepo struct {
	domain.DeliveryRepository
	assignFunc     func(ctx context.Context, d *domain.Delivery) error
	getByIDFunc    func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Delivery, error)
	transitionFunc func(ctx context.Context, tenantID, id uuid.UUID, from, to domain.DeliveryStatus, at time.Time) error
}

func (m *mockDeliveryRepo) Assign(ctx context.Context, d *domain.Delivery) error {
	return m.assignFunc(ctx, d)
}

func (m *mockDeliveryRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Delivery, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockDeliveryRepo) Transition(ctx context.Context, tenantID, id uuid.UUID, from, to domain.DeliveryStatus, at time.Time) error {
	return m.transitionFunc(ctx, tenantID, id, from, to, at)
}

type mockPurchaseOrderRepo struct {
	domain.PurchaseOrderRepository
	createFunc       func(ctx context.Context, po *domain.PurchaseOrder) error
	getByIDFunc      func(ctx context.Context, tenantID, id uuid.UUID) (*domain.PurchaseOrder, error)
	updateStatusFunc func(ctx context.Context, po *domain.PurchaseOrder, from domain.PurchaseOrderStatus) error
	applyReceiptFunc func(ctx context.Context, po *domain.PurchaseOrder, receipts []domain.Receipt) error
}

func (m *mockPurchaseOrderRepo) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	return m.createFunc(ctx, po)
}

func (m *mockPurchaseOrderRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockPurchaseOrderRepo) UpdateStatus(ctx context.Context, po *domain.PurchaseOrder, from domain.PurchaseOrderStatus) error {
	return m.updateStatusFunc(ctx, po, from)
}

func (m *mockPurchaseOrderRepo) ApplyReceipt(ctx context.Context, po *domain.PurchaseOrder, receipts []domain.Receipt) error {
	return m.applyReceiptFunc(ctx, po, receipts)
}

type mockNotificationRepo struct {
	domain.NotificationRepository
	createTemplateFunc func(ctx context.Context, t *domain.NotificationTemplate) error
}

func (m *mockNotificationRepo) CreateTemplate(ctx context.Context, t *domain.NotificationTemplate) error {
	return m.createTemplateFunc(ctx, t)
}

type mockBillingRepo struct {
	domain.BillingRepository
	getPlanFunc    func(ctx context.Context, code string) (*domain.Plan, error)
	upsertPlanFunc func(ctx context.Context, p *domain.Plan) error
}

func (m *mockBillingRepo) GetPlan(ctx context.Context, code string) (*domain.Plan, error) {
	return m.getPlanFunc(ctx, code)
}

func (m *mockBillingRepo) UpsertPlan(ctx context.Context, p *domain.Plan) error {
	return m.upsertPlanFunc(ctx, p)
}

type mockGiveawayRepo struct {
	domain.GiveawayRepository
	createFunc      func(ctx context.Context, g *domain.Giveaway) error
	getByIDFunc     func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Giveaway, error)
	addEntryFunc    func(ctx context.Context, e *domain.GiveawayEntry) error
	listEntriesFunc func(ctx context.Context, tenantID, giveawayID uuid.UUID) ([]*domain.GiveawayEntry, error)
}

func (m *mockGiveawayRepo) Create(ctx context.Context, g *domain.Giveaway) error {
	return m.createFunc(ctx, g)
}

func (m *mockGiveawayRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Giveaway, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockGiveawayRepo) AddEntry(ctx context.Context, e *domain.GiveawayEntry) error {
	return m.addEntryFunc(ctx, e)
}

func (m *mockGiveawayRepo) ListEntries(ctx context.Context, tenantID, giveawayID uuid.UUID) ([]*domain.GiveawayEntry, error) {
	return m.listEntriesFunc(ctx, tenantID, giveawayID)
}

type mockAnalyticsRepo struct {
	byStatus map[domain.OrderStatus]int
	days     []domain.DailyRevenue
	top      []domain.ProductSales
	lowStock int
	couriers int
	err      error
}

func (m *mockAnalyticsRepo) OrdersByStatus(context.Context, uuid.UUID, time.Time, time.Time) (map[domain.OrderStatus]int, error) {
	return m.byStatus, m.err
}

func (m *mockAnalyticsRepo) RevenueByDay(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.DailyRevenue, error) {
	return m.days, m.err
}

func (m *mockAnalyticsRepo) TopProducts(context.Context, uuid.UUID, time.Time, time.Time, int) ([]domain.ProductSales, error) {
	return m.top, m.err
}

func (m *mockAnalyticsRepo) LowStockCount(context.Context, uuid.UUID) (int, error) {
	return m.lowStock, m.err
}

func (m *mockAnalyticsRepo) ActiveCouriers(context.Context, uuid.UUID) (int, error) {
	return m.couriers, m.err
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry

	listByTenantFunc func(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error)
}

func (m *mockAuditRepo) Record(_ context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	return m.listByTenantFunc(ctx, tenantID, limit, offset)
}

func (m *mockAuditRepo) ListByResource(context.Context, uuid.UUID, string, uuid.UUID) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, nil
}

// ---------------------------------------------------------------------------
// Mock services
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc       func(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error)
	loginFunc          func(ctx context.Context, tenantID uuid.UUID, email, password string) (*auth.Tokens, error)
	refreshTokenFunc   func(ctx context.Context, refreshToken string) (string, error)
	getUserFunc        func(ctx context.Context, tenantID, userID uuid.UUID) (*domain.User, error)
	changeRoleFunc     func(ctx context.Context, tenantID, userID uuid.UUID, role, actorRole string) (*domain.User, error)
	generateAPIKeyFunc func(ctx context.Context, tenantID, userID uuid.UUID, name, role string, expiresAt *time.Time) (string, *domain.APIKey, error)
	oauthStartFunc     func(p auth.OAuthExchanger, tenantID uuid.UUID) (string, error)
	oauthCallbackFunc  func(ctx context.Context, p auth.OAuthExchanger, state, code string) (*auth.Tokens, *domain.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error) {
	return m.registerFunc(ctx, tenantID, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, tenantID uuid.UUID, email, password string) (*auth.Tokens, error) {
	return m.loginFunc(ctx, tenantID, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

func (m *mockAuthService) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*domain.User, error) {
	return m.getUserFunc(ctx, tenantID, userID)
}

func (m *mockAuthService) ChangeRole(ctx context.Context, tenantID, userID uuid.UUID, role, actorRole string) (*domain.User, error) {
	return m.changeRoleFunc(ctx, tenantID, userID, role, actorRole)
}

func (m *mockAuthService) GenerateAPIKey(ctx context.Context, tenantID, userID uuid.UUID, name, role string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	return m.generateAPIKeyFunc(ctx, tenantID, userID, name, role, expiresAt)
}

func (m *mockAuthService) ListAPIKeys(context.Context, uuid.UUID, uuid.UUID) ([]*domain.APIKey, error) {
	return []*domain.APIKey{}, nil
}

func (m *mockAuthService) RevokeAPIKey(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (m *mockAuthService) OAuthStart(p auth.OAuthExchanger, tenantID uuid.UUID) (string, error) {
	return m.oauthStartFunc(p, tenantID)
}

func (m *mockAuthService) OAuthCallback(ctx context.Context, p auth.OAuthExchanger, state, code string) (*auth.Tokens, *domain.User, error) {
	return m.oauthCallbackFunc(ctx, p, state, code)
}

// mockPlans allows everything unless a func is set.
type mockPlans struct {
	planForFunc        func(ctx context.Context, tenantID uuid.UUID) (*domain.Plan, error)
	checkLimitFunc     func(ctx context.Context, tenantID uuid.UUID, resource billing.Resource) error
	requireFeatureFunc func(ctx context.Context, tenantID uuid.UUID, feature string) error
	changePlanFunc     func(ctx context.Context, tenantID uuid.UUID, planCode string) (*domain.Tenant, error)
	generateFunc       func(ctx context.Context, at time.Time) (int, error)
	settleFunc         func(ctx context.Context, id uuid.UUID, to domain.InvoiceStatus) (*domain.Invoice, error)
}

func (m *mockPlans) PlanFor(ctx context.Context, tenantID uuid.UUID) (*domain.Plan, error) {
	return m.planForFunc(ctx, tenantID)
}

func (m *mockPlans) CheckLimit(ctx context.Context, tenantID uuid.UUID, resource billing.Resource) error {
	if m.checkLimitFunc == nil {
		return nil
	}
	return m.checkLimitFunc(ctx, tenantID, resource)
}

func (m *mockPlans) RequireFeature(ctx context.Context, tenantID uuid.UUID, feature string) error {
	if m.requireFeatureFunc == nil {
		return nil
	}
	return m.requireFeatureFunc(ctx, tenantID, feature)
}

func (m *mockPlans) ChangePlan(ctx context.Context, tenantID uuid.UUID, planCode string) (*domain.Tenant, error) {
	return m.changePlanFunc(ctx, tenantID, planCode)
}

func (m *mockPlans) GenerateInvoices(ctx context.Context, at time.Time) (int, error) {
	return m.generateFunc(ctx, at)
}

func (m *mockPlans) MarkPaid(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return m.settleFunc(ctx, id, domain.InvoicePaid)
}

func (m *mockPlans) Void(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return m.settleFunc(ctx, id, domain.InvoiceVoid)
}

type mockNotifier struct {
	mu    sync.Mutex
	async []string

	dispatchFunc func(ctx context.Context, tenantID uuid.UUID, key string, data map[string]any) (*domain.NotificationLog, error)
}

func (m *mockNotifier) Dispatch(ctx context.Context, tenantID uuid.UUID, key string, data map[string]any) (*domain.NotificationLog, error) {
	return m.dispatchFunc(ctx, tenantID, key, data)
}

func (m *mockNotifier) NotifyAsync(_ uuid.UUID, key string, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.async = append(m.async, key)
}

func (m *mockNotifier) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.async...)
}

type mockEvents struct {
	mu        sync.Mutex
	changes   []domain.ChangeEvent
	locations []domain.CourierLocation
}

func (m *mockEvents) PublishChange(_ context.Context, _ uuid.UUID, ev domain.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, ev)
	return nil
}

func (m *mockEvents) PublishLocation(_ context.Context, _ uuid.UUID, loc domain.CourierLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, loc)
	return nil
}

func (m *mockEvents) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.changes))
	for _, c := range m.changes {
		out = append(out, c.Type)
	}
	return out
}

type mockPositions struct {
	set        map[uuid.UUID]domain.Position
	removed    []uuid.UUID
	nearbyFunc func(ctx context.Context, tenantID uuid.UUID, lat, lng, radiusKm float64, limit int) ([]domain.NearbyCourier, error)
}

func (m *mockPositions) Set(_ context.Context, _, courierID uuid.UUID, pos domain.Position) error {
	if m.set == nil {
		m.set = map[uuid.UUID]domain.Position{}
	}
	m.set[courierID] = pos
	return nil
}

func (m *mockPositions) Nearby(ctx context.Context, tenantID uuid.UUID, lat, lng, radiusKm float64, limit int) ([]domain.NearbyCourier, error) {
	return m.nearbyFunc(ctx, tenantID, lat, lng, radiusKm, limit)
}

func (m *mockPositions) Remove(_ context.Context, _, courierID uuid.UUID) error {
	m.removed = append(m.removed, courierID)
	return nil
}

type mockStorage struct {
	deleted []string
}

func (m *mockStorage) PresignPut(_ context.Context, key, _ string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://files.test/" + key, Key: key, Method: "PUT"}, nil
}

func (m *mockStorage) PresignGet(_ context.Context, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://files.test/" + key, Key: key, Method: "GET"}, nil
}

func (m *mockStorage) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

type mockDrawer struct {
	drawFunc func(ctx context.Context, tenantID, id uuid.UUID) ([]*domain.GiveawayWinner, error)
}

func (m *mockDrawer) Draw(ctx context.Context, tenantID, id uuid.UUID) ([]*domain.GiveawayWinner, error) {
	return m.drawFunc(ctx, tenantID, id)
}

type mockSecrets struct {
	values map[string]string
}

func (m *mockSecrets) Put(_ context.Context, _ uuid.UUID, name, plaintext string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[name] = plaintext
	return nil
}

func (m *mockSecrets) Names(context.Context, uuid.UUID) ([]string, error) {
	names := make([]string, 0, len(m.values))
	for n := range m.values {
		names = append(names, n)
	}
	return names, nil
}

func (m *mockSecrets) Delete(_ context.Context, _ uuid.UUID, name string) error {
	if _, ok := m.values[name]; !ok {
		return secrets.ErrSecretNotFound
	}
	delete(m.values, name)
	return nil
}

type mockRecorder struct {
	mu     sync.Mutex
	orders int
}

func (m *mockRecorder) OrderCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders++
}
