package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/repairhero/platform/domains/sessions/be/service"
	platformauth "github.com/repairhero/platform/platform/go/auth"
)

type mockService struct {
	loginFn        func(ctx context.Context, email, password string) (service.LoginResult, error)
	describeFn     func(ctx context.Context, userID uuid.UUID) (service.Session, error)
	selectTenantFn func(ctx context.Context, userID uuid.UUID, subdomain string) (service.Session, error)
}

func (m *mockService) Login(ctx context.Context, email, password string) (service.LoginResult, error) {
	if m.loginFn == nil {
		panic("loginFn not configured")
	}
	return m.loginFn(ctx, email, password)
}

func (m *mockService) Describe(ctx context.Context, userID uuid.UUID) (service.Session, error) {
	if m.describeFn == nil {
		panic("describeFn not configured")
	}
	return m.describeFn(ctx, userID)
}

func (m *mockService) SelectTenant(ctx context.Context, userID uuid.UUID, subdomain string) (service.Session, error) {
	if m.selectTenantFn == nil {
		panic("selectTenantFn not configured")
	}
	return m.selectTenantFn(ctx, userID, subdomain)
}

func newRouter(t *testing.T, svc service.Service) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/v1/auth", New(svc, zaptest.NewLogger(t)).Routes)
	return r
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()

	svc := &mockService{loginFn: func(_ context.Context, email, password string) (service.LoginResult, error) {
		require.Equal(t, "owner@example.com", email)
		require.Equal(t, "hunter2", password)
		return service.LoginResult{
			Token:   "signed-token",
			Session: service.Session{UserID: uuid.New(), Email: email},
		}, nil
	}}
	router := newRouter(t, svc)

	body := bytes.NewBufferString(`{"email":"owner@example.com","password":"hunter2"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "signed-token", resp.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	svc := &mockService{loginFn: func(context.Context, string, string) (service.LoginResult, error) {
		return service.LoginResult{}, service.ErrInvalidCredentials
	}}
	router := newRouter(t, svc)

	body := bytes.NewBufferString(`{"email":"owner@example.com","password":"wrong"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", body))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestSessionRequiresPrincipal(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRejectsAPIKeyPrincipal(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
	req = req.WithContext(platformauth.WithPrincipal(req.Context(),
		platformauth.APIKeyPrincipal{KeyID: uuid.New()}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSelectTenantNotMember(t *testing.T) {
	t.Parallel()

	svc := &mockService{selectTenantFn: func(context.Context, uuid.UUID, string) (service.Session, error) {
		return service.Session{}, service.ErrNotMember
	}}
	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPut, "/v1/auth/session/tenant",
		bytes.NewBufferString(`{"subdomain":"rival"}`))
	req = req.WithContext(platformauth.WithPrincipal(req.Context(),
		platformauth.SessionPrincipal{UserID: uuid.New()}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "you do not have access to this tenant")
}

func TestSelectTenantSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &mockService{selectTenantFn: func(_ context.Context, gotUser uuid.UUID, subdomain string) (service.Session, error) {
		require.Equal(t, userID, gotUser)
		require.Equal(t, "shop", subdomain)
		return service.Session{
			UserID: userID,
			ActiveTenant: &service.TenantSummary{
				ID: uuid.New(), Subdomain: "shop", DisplayName: "The Shop",
			},
		}, nil
	}}
	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPut, "/v1/auth/session/tenant",
		bytes.NewBufferString(`{"subdomain":"shop"}`))
	req = req.WithContext(platformauth.WithPrincipal(req.Context(),
		platformauth.SessionPrincipal{UserID: userID}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "shop")
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFIssuesToken(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/csrf", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.CSRFToken, 32)
}
