package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/shopdesk/internal/domain"
)

// --- mocks ---

type memTenants struct {
	domain.TenantRepository
	tenants map[uuid.UUID]*domain.Tenant
	order   []uuid.UUID
	listErr error
}

func newMemTenants(ts ...*domain.Tenant) *memTenants {
	m := &memTenants{tenants: map[uuid.UUID]*domain.Tenant{}}
	for _, t := range ts {
		m.tenants[t.ID] = t
		m.order = append(m.order, t.ID)
	}
	return m
}

func (m *memTenants) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenants) Update(_ context.Context, t *domain.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *memTenants) List(context.Context) ([]*domain.Tenant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*domain.Tenant, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tenants[id])
	}
	return out, nil
}

type memBilling struct {
	domain.BillingRepository
	mu        sync.Mutex
	plans     map[string]*domain.Plan
	invoices  map[uuid.UUID]*domain.Invoice
	createErr map[uuid.UUID]error
}

func newMemBilling() *memBilling {
	return &memBilling{
		plans: map[string]*domain.Plan{
			"free": {Code: "free", Name: "Free", MaxProducts: 2, MaxCouriers: 1},
			"growth": {Code: "growth", Name: "Growth", MonthlyFee: decimal.NewFromInt(49),
				PerOrderFee: decimal.RequireFromString("0.15"), Features: []string{domain.FeatureGiveaways}},
		},
		invoices:  map[uuid.UUID]*domain.Invoice{},
		createErr: map[uuid.UUID]error{},
	}
}

func (m *memBilling) GetPlan(_ context.Context, code string) (*domain.Plan, error) {
	p, ok := m.plans[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memBilling) CreateInvoice(_ context.Context, inv *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr[inv.TenantID]; err != nil {
		return err
	}
	for _, existing := range m.invoices {
		if existing.TenantID == inv.TenantID && existing.PeriodStart.Equal(inv.PeriodStart) {
			return domain.ErrConflict
		}
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *memBilling) GetInvoice(_ context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memBilling) SetInvoiceStatus(_ context.Context, id uuid.UUID, from, to domain.InvoiceStatus, at time.Time) error {
	inv, ok := m.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	if inv.Status != from {
		return domain.ErrConflict
	}
	inv.Status = to
	if to == domain.InvoicePaid {
		inv.PaidAt = &at
	}
	return nil
}

type fixedCounter struct {
	n   int
	err error
}

func (c fixedCounter) Count(context.Context, uuid.UUID) (int, error) { return c.n, c.err }

type orderCounts struct {
	counts map[uuid.UUID]int
	from   time.Time
	to     time.Time
}

func (o *orderCounts) CountSince(_ context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	o.from, o.to = from, to
	n, ok := o.counts[tenantID]
	if !ok {
		return 0, errors.New("count failed")
	}
	return n, nil
}

func tenant(plan string) *domain.Tenant {
	return &domain.Tenant{ID: uuid.New(), Name: "shop", Slug: "shop", PlanCode: plan, Status: domain.TenantStatusActive}
}

var fixedNow = time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test clock

func newService(tenants *memTenants, bill *memBilling, orders *orderCounts, products, couriers Counter) *Service {
	s := NewService(tenants, bill, orders, products, couriers)
	s.now = func() time.Time { return fixedNow }
	return s
}

// --- tests ---

func TestCheckLimit(t *testing.T) {
	t.Parallel()

	free, growth := tenant("free"), tenant("growth")
	tenants := newMemTenants(free, growth)

	tests := []struct {
		name     string
		tenantID uuid.UUID
		resource Resource
		products int
		couriers int
		wantErr  error
	}{
		{"under product limit", free.ID, ResourceProducts, 1, 0, nil},
		{"at product limit", free.ID, ResourceProducts, 2, 0, domain.ErrLimitExceeded},
		{"at courier limit", free.ID, ResourceCouriers, 0, 1, domain.ErrLimitExceeded},
		{"unlimited plan", growth.ID, ResourceProducts, 10_000, 0, nil},
		{"unknown tenant", uuid.New(), ResourceProducts, 0, 0, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newService(tenants, newMemBilling(), &orderCounts{}, fixedCounter{n: tt.products}, fixedCounter{n: tt.couriers})
			err := s.CheckLimit(t.Context(), tt.tenantID, tt.resource)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("count error propagates", func(t *testing.T) {
		t.Parallel()

		s := newService(tenants, newMemBilling(), &orderCounts{}, fixedCounter{err: errors.New("db down")}, fixedCounter{})
		err := s.CheckLimit(t.Context(), free.ID, ResourceProducts)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrLimitExceeded)
	})

	t.Run("unknown resource", func(t *testing.T) {
		t.Parallel()

		s := newService(tenants, newMemBilling(), &orderCounts{}, fixedCounter{}, fixedCounter{})
		require.Error(t, s.CheckLimit(t.Context(), free.ID, Resource("widgets")))
	})
}

func TestRequireFeature(t *testing.T) {
	t.Parallel()

	free, growth := tenant("free"), tenant("growth")
	s := newService(newMemTenants(free, growth), newMemBilling(), &orderCounts{}, fixedCounter{}, fixedCounter{})

	require.NoError(t, s.RequireFeature(t.Context(), growth.ID, domain.FeatureGiveaways))
	assert.ErrorIs(t, s.RequireFeature(t.Context(), free.ID, domain.FeatureGiveaways), domain.ErrLimitExceeded)
	assert.ErrorIs(t, s.RequireFeature(t.Context(), growth.ID, domain.FeatureLiveTracking), domain.ErrLimitExceeded)
}

func TestChangePlan(t *testing.T) {
	t.Parallel()

	free := tenant("free")
	tenants := newMemTenants(free)
	s := newService(tenants, newMemBilling(), &orderCounts{}, fixedCounter{}, fixedCounter{})

	got, err := s.ChangePlan(t.Context(), free.ID, "growth")
	require.NoError(t, err)
	assert.Equal(t, "growth", got.PlanCode)
	assert.Equal(t, fixedNow, got.UpdatedAt)

	_, err = s.ChangePlan(t.Context(), free.ID, "enterprise")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateInvoices(t *testing.T) {
	t.Parallel()

	a, b := tenant("growth"), tenant("free")
	orders := &orderCounts{counts: map[uuid.UUID]int{a.ID: 10, b.ID: 3}}
	bill := newMemBilling()
	s := newService(newMemTenants(a, b), bill, orders, fixedCounter{}, fixedCounter{})

	n, err := s.GenerateInvoices(t.Context(), time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), orders.from)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), orders.to)

	var growthInv *domain.Invoice
	for _, inv := range bill.invoices {
		if inv.TenantID == a.ID {
			growthInv = inv
		}
	}
	require.NotNil(t, growthInv)
	assert.Equal(t, "50.50", growthInv.Total.StringFixed(2))

	t.Run("rerun is idempotent", func(t *testing.T) {
		n, err := s.GenerateInvoices(t.Context(), time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, bill.invoices, 2)
	})
}

func TestGenerateInvoices_PartialFailure(t *testing.T) {
	t.Parallel()

	ok, broken, noCount := tenant("growth"), tenant("growth"), tenant("growth")
	bill := newMemBilling()
	bill.createErr[broken.ID] = errors.New("insert failed")
	orders := &orderCounts{counts: map[uuid.UUID]int{ok.ID: 1, broken.ID: 1}}
	s := newService(newMemTenants(ok, broken, noCount), bill, orders, fixedCounter{}, fixedCounter{})

	n, err := s.GenerateInvoices(t.Context(), fixedNow)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), broken.ID.String())
	assert.Contains(t, err.Error(), noCount.ID.String())
}

func TestGeneratePreviousMonth(t *testing.T) {
	t.Parallel()

	a := tenant("free")
	orders := &orderCounts{counts: map[uuid.UUID]int{a.ID: 0}}
	s := newService(newMemTenants(a), newMemBilling(), orders, fixedCounter{}, fixedCounter{})

	n, err := s.GeneratePreviousMonth(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), orders.from)
}

func TestSettleInvoice(t *testing.T) {
	t.Parallel()

	a := tenant("growth")
	orders := &orderCounts{counts: map[uuid.UUID]int{a.ID: 4}}
	bill := newMemBilling()
	s := newService(newMemTenants(a), bill, orders, fixedCounter{}, fixedCounter{})
	_, err := s.GenerateInvoices(t.Context(), fixedNow)
	require.NoError(t, err)

	var id uuid.UUID
	for k := range bill.invoices {
		id = k
	}

	paid, err := s.MarkPaid(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = s.Void(t.Context(), id)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.MarkPaid(t.Context(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
