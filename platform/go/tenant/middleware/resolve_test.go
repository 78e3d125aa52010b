package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
	"github.com/repairhero/platform/platform/go/tenant"
)

type mockMembers struct {
	isMemberFn func(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
}

func (m *mockMembers) IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	if m.isMemberFn == nil {
		panic("isMemberFn not configured")
	}
	return m.isMemberFn(ctx, userID, tenantID)
}

type staticRegistry struct {
	tenant persistence.Tenant
}

func (s *staticRegistry) GetTenant(_ context.Context, id uuid.UUID) (persistence.Tenant, error) {
	if id == s.tenant.TenantID {
		return s.tenant, nil
	}
	return persistence.Tenant{}, persistence.ErrTenantNotFound
}

func (s *staticRegistry) GetTenantBySubdomain(_ context.Context, subdomain string) (persistence.Tenant, error) {
	if subdomain == s.tenant.Subdomain {
		return s.tenant, nil
	}
	return persistence.Tenant{}, persistence.ErrTenantNotFound
}

func captureTenant(t *testing.T) (http.Handler, *struct {
	called bool
	info   tenant.Info
	hasTnt bool
}) {
	t.Helper()

	state := &struct {
		called bool
		info   tenant.Info
		hasTnt bool
	}{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state.called = true
		state.info, state.hasTnt = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return handler, state
}

func TestWithTenantAttachesInfo(t *testing.T) {
	t.Parallel()

	shop := persistence.Tenant{TenantID: uuid.New(), Subdomain: "shop", DisplayName: "The Shop"}
	resolver := tenant.NewResolver(&staticRegistry{tenant: shop}, "")
	members := &mockMembers{}

	next, state := captureTenant(t)
	handler := WithTenant(resolver, members, nil, zaptest.NewLogger(t))(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(tenant.SelectorHeader, "shop")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, state.hasTnt)
	require.Equal(t, shop.TenantID, state.info.TenantID)
	require.Equal(t, "shop", state.info.Subdomain)
}

func TestWithTenantNoTenantContinues(t *testing.T) {
	t.Parallel()

	shop := persistence.Tenant{TenantID: uuid.New(), Subdomain: "shop"}
	resolver := tenant.NewResolver(&staticRegistry{tenant: shop}, "")
	members := &mockMembers{}

	next, state := captureTenant(t)
	handler := WithTenant(resolver, members, nil, zaptest.NewLogger(t))(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/customers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, state.called)
	require.False(t, state.hasTnt)
}

func TestWithTenantMemberAllowed(t *testing.T) {
	t.Parallel()

	shop := persistence.Tenant{TenantID: uuid.New(), Subdomain: "shop"}
	userID := uuid.New()
	resolver := tenant.NewResolver(&staticRegistry{tenant: shop}, "")
	members := &mockMembers{isMemberFn: func(_ context.Context, gotUser, gotTenant uuid.UUID) (bool, error) {
		require.Equal(t, userID, gotUser)
		require.Equal(t, shop.TenantID, gotTenant)
		return true, nil
	}}

	next, state := captureTenant(t)
	handler := WithTenant(resolver, members, nil, zaptest.NewLogger(t))(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(tenant.SelectorHeader, "shop")
	req = req.WithContext(platformauth.WithPrincipal(req.Context(),
		platformauth.SessionPrincipal{UserID: userID}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, state.hasTnt)
}

func TestWithTenantNonMemberForbidden(t *testing.T) {
	t.Parallel()

	shop := persistence.Tenant{TenantID: uuid.New(), Subdomain: "shop"}
	resolver := tenant.NewResolver(&staticRegistry{tenant: shop}, "")
	members := &mockMembers{isMemberFn: func(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
		return false, nil
	}}

	next, state := captureTenant(t)
	handler := WithTenant(resolver, members, nil, zaptest.NewLogger(t))(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(tenant.SelectorHeader, "shop")
	req = req.WithContext(platformauth.WithPrincipal(req.Context(),
		platformauth.SessionPrincipal{UserID: uuid.New()}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, state.called)
	require.Contains(t, rec.Body.String(), "you do not have access to this tenant")
}

func TestWithTenantSuperuserSkipsMembership(t *testing.T) {
	t.Parallel()

	shop := persistence.Tenant{TenantID: uuid.New(), Subdomain: "shop"}
	resolver := tenant.NewResolver(&staticRegistry{tenant: shop}, "")
	members := &mockMembers{isMemberFn: func(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
		t.Fatal("membership must not be checked for superusers")
		return false, nil
	}}

	next, state := captureTenant(t)
	handler := WithTenant(resolver, members, nil, zaptest.NewLogger(t))(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	req.Header.Set(tenant.SelectorHeader, "shop")
	req = req.WithContext(platformauth.WithPrincipal(req.Context(),
		platformauth.SessionPrincipal{UserID: uuid.New(), IsSuperuser: true}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, state.hasTnt)
}

func TestWithTenantAPIKeySkipsMembership(t *testing.T) {
	t.Parallel()

	shop := persistence.Tenant{TenantID: uuid.New(), Subdomain: "shop"}
	resolver := tenant.NewResolver(&staticRegistry{tenant: shop}, "")
	members := &mockMembers{isMemberFn: func(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
		t.Fatal("membership must not be checked for api keys")
		return false, nil
	}}

	next, state := captureTenant(t)
	handler := WithTenant(resolver, members, nil, zaptest.NewLogger(t))(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	ctx := platformauth.WithPrincipal(req.Context(),
		platformauth.APIKeyPrincipal{KeyID: uuid.New(), TenantID: shop.TenantID})
	ctx = platformauth.WithAPIKey(ctx, &persistence.APIKey{KeyID: uuid.New(), TenantID: shop.TenantID})
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, state.hasTnt)
	require.Equal(t, shop.TenantID, state.info.TenantID)
}

func TestWithTenantOptionalPathSkipsMembership(t *testing.T) {
	t.Parallel()

	shop := persistence.Tenant{TenantID: uuid.New(), Subdomain: "shop"}
	resolver := tenant.NewResolver(&staticRegistry{tenant: shop}, "")
	members := &mockMembers{isMemberFn: func(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
		t.Fatal("membership must not be checked on tenant-optional paths")
		return false, nil
	}}

	next, _ := captureTenant(t)
	handler := WithTenant(resolver, members, DefaultTenantOptionalPaths, zaptest.NewLogger(t))(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
	req.Header.Set(tenant.SelectorHeader, "shop")
	req = req.WithContext(platformauth.WithPrincipal(req.Context(),
		platformauth.SessionPrincipal{UserID: uuid.New()}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
