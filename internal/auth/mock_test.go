package auth_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
)

// mockUserRepo is an in-memory domain.UserRepository. Behavior can be
// overridden per test through the error fields.
type mockUserRepo struct {
	mu sync.Mutex

	users      map[uuid.UUID]*domain.User
	oauthLinks []*domain.UserOAuthLink
	keys       map[string]*domain.APIKey // by prefix

	createErr       error
	countErr        error
	createAPIKeyErr error
	lastUsedErr     error

	lastUsedCalls int
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	m := &mockUserRepo{users: map[uuid.UUID]*domain.User{}, keys: map[string]*domain.APIKey{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, tenantID uuid.UUID, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) List(_ context.Context, tenantID uuid.UUID) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	users, _ := m.List(ctx, tenantID)
	return len(users), nil
}

func (m *mockUserRepo) CreateOAuthLink(_ context.Context, link *domain.UserOAuthLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oauthLinks = append(m.oauthLinks, link)
	return nil
}

func (m *mockUserRepo) GetOAuthLink(_ context.Context, provider, providerID string) (*domain.UserOAuthLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.oauthLinks {
		if l.Provider == provider && l.ProviderID == providerID {
			return l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) CreateAPIKey(_ context.Context, key *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createAPIKeyErr != nil {
		return m.createAPIKeyErr
	}
	m.keys[key.Prefix] = key
	return nil
}

func (m *mockUserRepo) GetAPIKeyByPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[prefix]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return k, nil
}

func (m *mockUserRepo) ListAPIKeys(_ context.Context, tenantID, userID uuid.UUID) ([]*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.APIKey
	for _, k := range m.keys {
		if k.TenantID == tenantID && k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockUserRepo) DeleteAPIKey(_ context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, k := range m.keys {
		if k.ID == id && k.TenantID == tenantID {
			delete(m.keys, p)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockUserRepo) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsedCalls++
	return m.lastUsedErr
}

// mockTenants serves tenant status for the suspension checks.
type mockTenants struct {
	mu        sync.Mutex
	suspended map[uuid.UUID]bool
}

func (m *mockTenants) suspend(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.suspended == nil {
		m.suspended = map[uuid.UUID]bool{}
	}
	m.suspended[id] = true
}

func (m *mockTenants) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := domain.TenantStatusActive
	if m.suspended[id] {
		status = domain.TenantStatusSuspended
	}
	return &domain.Tenant{ID: id, Status: status}, nil
}
