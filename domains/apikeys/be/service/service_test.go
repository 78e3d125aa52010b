package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
)

type mockRepository struct {
	createFn     func(ctx context.Context, rec persistence.APIKey) (persistence.APIKey, error)
	listFn       func(ctx context.Context, tenantID uuid.UUID) ([]persistence.APIKey, error)
	revokeFn     func(ctx context.Context, tenantID, keyID uuid.UUID) error
	roleByNameFn func(ctx context.Context, tenantID uuid.UUID, name string) (persistence.Role, error)
	roleByIDFn   func(ctx context.Context, roleID uuid.UUID) (persistence.Role, error)
}

func (m *mockRepository) CreateKey(ctx context.Context, rec persistence.APIKey) (persistence.APIKey, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, rec)
}

func (m *mockRepository) ListKeys(ctx context.Context, tenantID uuid.UUID) ([]persistence.APIKey, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, tenantID)
}

func (m *mockRepository) RevokeKey(ctx context.Context, tenantID, keyID uuid.UUID) error {
	if m.revokeFn == nil {
		panic("revokeFn not configured")
	}
	return m.revokeFn(ctx, tenantID, keyID)
}

func (m *mockRepository) RoleByName(ctx context.Context, tenantID uuid.UUID, name string) (persistence.Role, error) {
	if m.roleByNameFn == nil {
		panic("roleByNameFn not configured")
	}
	return m.roleByNameFn(ctx, tenantID, name)
}

func (m *mockRepository) RoleByID(ctx context.Context, roleID uuid.UUID) (persistence.Role, error) {
	if m.roleByIDFn == nil {
		panic("roleByIDFn not configured")
	}
	return m.roleByIDFn(ctx, roleID)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "name")
	require.Contains(t, validationErr.Fields, "role")
}

func TestCreateRejectsBadEnvironment(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Name:        "integration key",
		RoleName:    "technician",
		Environment: "staging",
	})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "environment")
}

func TestCreateRejectsPastExpiration(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	past := time.Now().UTC().Add(-time.Hour)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Name:      "integration key",
		RoleName:  "technician",
		ExpiresAt: &past,
	})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "expiresAt")
}

func TestCreateUnknownRole(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		roleByNameFn: func(context.Context, uuid.UUID, string) (persistence.Role, error) {
			return persistence.Role{}, persistence.ErrRoleNotFound
		},
	}
	svc := New(repository)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Name:     "integration key",
		RoleName: "no-such-role",
	})
	require.ErrorIs(t, err, ErrRoleNotFound)
}

func TestCreateRevealsPlaintextOnce(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	roleID := uuid.New()

	repository := &mockRepository{
		roleByNameFn: func(_ context.Context, gotTenant uuid.UUID, name string) (persistence.Role, error) {
			require.Equal(t, tenantID, gotTenant)
			require.Equal(t, "technician", name)
			return persistence.Role{RoleID: roleID, TenantID: tenantID, Name: "technician"}, nil
		},
		createFn: func(_ context.Context, rec persistence.APIKey) (persistence.APIKey, error) {
			require.Equal(t, tenantID, rec.TenantID)
			require.Equal(t, roleID, rec.RoleID)
			require.True(t, rec.IsActive)
			require.Len(t, rec.Prefix, platformauth.PrefixLength)
			require.True(t, strings.HasPrefix(rec.KeyHash, "$2"))
			rec.CreatedAt = time.Now().UTC()
			return rec, nil
		},
	}

	svc := New(repository)

	created, err := svc.Create(context.Background(), tenantID, CreateInput{
		Name:     "shop integration",
		RoleName: "technician",
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(created.Plaintext, "sk_live_"))
	require.Equal(t, created.Plaintext[:platformauth.PrefixLength], created.Prefix)
	require.Equal(t, "technician", created.RoleName)
}

func TestCreatePersistsVerifiableHash(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	var storedHash string

	repository := &mockRepository{
		roleByNameFn: func(context.Context, uuid.UUID, string) (persistence.Role, error) {
			return persistence.Role{RoleID: uuid.New(), Name: "technician"}, nil
		},
		createFn: func(_ context.Context, rec persistence.APIKey) (persistence.APIKey, error) {
			storedHash = rec.KeyHash
			return rec, nil
		},
	}

	svc := New(repository)

	created, err := svc.Create(context.Background(), tenantID, CreateInput{
		Name:        "shop integration",
		RoleName:    "technician",
		Environment: platformauth.KeyEnvironmentTest,
	})
	require.NoError(t, err)

	require.NotContains(t, storedHash, created.Plaintext)
	require.True(t, platformauth.VerifyKey(created.Plaintext, storedHash))
}

func TestListNeverExposesSecrets(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	roleID := uuid.New()

	repository := &mockRepository{
		listFn: func(_ context.Context, gotTenant uuid.UUID) ([]persistence.APIKey, error) {
			require.Equal(t, tenantID, gotTenant)
			return []persistence.APIKey{{
				KeyID:      uuid.New(),
				TenantID:   tenantID,
				Name:       "shop integration",
				KeyHash:    "$2a$10$secret",
				Prefix:     "sk_live_abcd",
				RoleID:     roleID,
				IsActive:   true,
				UsageCount: 7,
			}}, nil
		},
		roleByIDFn: func(context.Context, uuid.UUID) (persistence.Role, error) {
			return persistence.Role{RoleID: roleID, Name: "technician"}, nil
		},
	}

	svc := New(repository)

	keys, err := svc.List(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "sk_live_abcd", keys[0].Prefix)
	require.Equal(t, "technician", keys[0].RoleName)
	require.EqualValues(t, 7, keys[0].UsageCount)
}

func TestListNoTenantIsEmpty(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	keys, err := svc.List(context.Background(), uuid.Nil)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestRevokeMapsNotFound(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		revokeFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			return persistence.ErrAPIKeyNotFound
		},
	}
	svc := New(repository)

	err := svc.Revoke(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
