package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
)

type mockRegistry struct {
	byIDFn        func(ctx context.Context, id uuid.UUID) (persistence.Tenant, error)
	bySubdomainFn func(ctx context.Context, subdomain string) (persistence.Tenant, error)
}

func (m *mockRegistry) GetTenant(ctx context.Context, id uuid.UUID) (persistence.Tenant, error) {
	if m.byIDFn == nil {
		panic("byIDFn not configured")
	}
	return m.byIDFn(ctx, id)
}

func (m *mockRegistry) GetTenantBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error) {
	if m.bySubdomainFn == nil {
		panic("bySubdomainFn not configured")
	}
	return m.bySubdomainFn(ctx, subdomain)
}

func registryWith(tenants ...persistence.Tenant) *mockRegistry {
	return &mockRegistry{
		byIDFn: func(_ context.Context, id uuid.UUID) (persistence.Tenant, error) {
			for _, t := range tenants {
				if t.TenantID == id {
					return t, nil
				}
			}
			return persistence.Tenant{}, persistence.ErrTenantNotFound
		},
		bySubdomainFn: func(_ context.Context, subdomain string) (persistence.Tenant, error) {
			for _, t := range tenants {
				if t.Subdomain == subdomain {
					return t, nil
				}
			}
			return persistence.Tenant{}, persistence.ErrTenantNotFound
		},
	}
}

func TestResolveAPIKeyBindingWins(t *testing.T) {
	t.Parallel()

	bound := persistence.Tenant{TenantID: uuid.New(), Subdomain: "bound-shop"}
	other := persistence.Tenant{TenantID: uuid.New(), Subdomain: "other-shop"}
	resolver := NewResolver(registryWith(bound, other), "")

	// Session selection, header and host all point elsewhere; the key's
	// binding must still win.
	otherID := other.TenantID
	ctx := platformauth.WithPrincipal(context.Background(), platformauth.SessionPrincipal{
		UserID:         uuid.New(),
		ActiveTenantID: &otherID,
	})
	ctx = platformauth.WithAPIKey(ctx, &persistence.APIKey{KeyID: uuid.New(), TenantID: bound.TenantID})

	req := httptest.NewRequest(http.MethodGet, "http://other-shop.repairhero.app/v1/customers", nil)
	req.Header.Set(SelectorHeader, "other-shop")

	info, err := resolver.Resolve(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, bound.TenantID, info.TenantID)
}

func TestResolveAPIKeyMissingTenantDoesNotFallThrough(t *testing.T) {
	t.Parallel()

	known := persistence.Tenant{TenantID: uuid.New(), Subdomain: "known-shop"}
	resolver := NewResolver(registryWith(known), "known-shop")

	ctx := platformauth.WithAPIKey(context.Background(),
		&persistence.APIKey{KeyID: uuid.New(), TenantID: uuid.New()})

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(SelectorHeader, "known-shop")

	info, err := resolver.Resolve(ctx, req)
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestResolveSessionActiveTenant(t *testing.T) {
	t.Parallel()

	selected := persistence.Tenant{TenantID: uuid.New(), Subdomain: "selected-shop"}
	header := persistence.Tenant{TenantID: uuid.New(), Subdomain: "header-shop"}
	resolver := NewResolver(registryWith(selected, header), "")

	selectedID := selected.TenantID
	ctx := platformauth.WithPrincipal(context.Background(), platformauth.SessionPrincipal{
		UserID:         uuid.New(),
		ActiveTenantID: &selectedID,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(SelectorHeader, "header-shop")

	info, err := resolver.Resolve(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, selected.TenantID, info.TenantID)
}

func TestResolveStaleSelectionFallsThroughToHeader(t *testing.T) {
	t.Parallel()

	header := persistence.Tenant{TenantID: uuid.New(), Subdomain: "header-shop"}
	resolver := NewResolver(registryWith(header), "")

	staleID := uuid.New()
	ctx := platformauth.WithPrincipal(context.Background(), platformauth.SessionPrincipal{
		UserID:         uuid.New(),
		ActiveTenantID: &staleID,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(SelectorHeader, "header-shop")

	info, err := resolver.Resolve(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, header.TenantID, info.TenantID)
}

func TestResolveHeaderBeatsHost(t *testing.T) {
	t.Parallel()

	headerTenant := persistence.Tenant{TenantID: uuid.New(), Subdomain: "header-shop"}
	hostTenant := persistence.Tenant{TenantID: uuid.New(), Subdomain: "host-shop"}
	resolver := NewResolver(registryWith(headerTenant, hostTenant), "")

	req := httptest.NewRequest(http.MethodGet, "http://host-shop.repairhero.app/v1/customers", nil)
	req.Header.Set(SelectorHeader, "header-shop")

	info, err := resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, headerTenant.TenantID, info.TenantID)
}

func TestResolveUnknownHeaderFallsThroughToHost(t *testing.T) {
	t.Parallel()

	hostTenant := persistence.Tenant{TenantID: uuid.New(), Subdomain: "host-shop"}
	resolver := NewResolver(registryWith(hostTenant), "")

	req := httptest.NewRequest(http.MethodGet, "http://host-shop.repairhero.app/v1/customers", nil)
	req.Header.Set(SelectorHeader, "no-such-shop")

	info, err := resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, hostTenant.TenantID, info.TenantID)
}

func TestResolveDefaultSubdomain(t *testing.T) {
	t.Parallel()

	fallback := persistence.Tenant{TenantID: uuid.New(), Subdomain: "default-shop"}
	resolver := NewResolver(registryWith(fallback), "default-shop")

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/v1/customers", nil)

	info, err := resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, fallback.TenantID, info.TenantID)
}

func TestResolveNothingResolves(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(registryWith(), "")

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/v1/customers", nil)

	info, err := resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestResolveInfrastructureErrorAborts(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	registry := &mockRegistry{
		bySubdomainFn: func(context.Context, string) (persistence.Tenant, error) {
			return persistence.Tenant{}, boom
		},
	}
	resolver := NewResolver(registry, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(SelectorHeader, "any-shop")

	_, err := resolver.Resolve(context.Background(), req)
	require.ErrorIs(t, err, boom)
}
