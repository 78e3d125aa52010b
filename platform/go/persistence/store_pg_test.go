package persistence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestStoresIntegration(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping persistence integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("repairhero"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate("pgx5://"+strings.TrimPrefix(connString, "postgres://")))

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() {
		ClosePool(pool)
	})

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)
	roles, err := NewRoleStore(pool)
	require.NoError(t, err)
	keys, err := NewAPIKeyStore(pool)
	require.NoError(t, err)
	customers, err := NewCustomerStore(pool)
	require.NoError(t, err)

	// Tenant registry: create, fetch, unique subdomain.
	acme, err := tenants.CreateTenant(ctx, Tenant{
		TenantID:    uuid.New(),
		Subdomain:   "acme",
		DisplayName: "Acme Repairs",
	})
	require.NoError(t, err)

	_, err = tenants.CreateTenant(ctx, Tenant{TenantID: uuid.New(), Subdomain: "acme"})
	require.ErrorIs(t, err, ErrTenantConflict)

	rival, err := tenants.CreateTenant(ctx, Tenant{TenantID: uuid.New(), Subdomain: "rival"})
	require.NoError(t, err)

	bySub, err := tenants.GetTenantBySubdomain(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, acme.TenantID, bySub.TenantID)

	// Users, roles and membership.
	tech, err := users.CreateUser(ctx, User{
		UserID:       uuid.New(),
		Email:        "tech@acme.example",
		FullName:     "Terry Tech",
		PasswordHash: "$2a$10$notarealhash",
	})
	require.NoError(t, err)

	technician, err := roles.CreateRole(ctx, Role{
		RoleID:   uuid.New(),
		TenantID: acme.TenantID,
		Name:     "technician",
	})
	require.NoError(t, err)

	_, err = roles.CreateRole(ctx, Role{RoleID: uuid.New(), TenantID: acme.TenantID, Name: "technician"})
	require.ErrorIs(t, err, ErrRoleConflict)

	require.NoError(t, roles.GrantPermissions(ctx, technician.RoleID,
		[]string{"customers.add_customer", "customers.change_customer"}))
	// Re-granting is a no-op.
	require.NoError(t, roles.GrantPermissions(ctx, technician.RoleID, []string{"customers.add_customer"}))

	codes, err := roles.ListPermissionCodes(ctx, technician.RoleID)
	require.NoError(t, err)
	require.Equal(t, []string{"customers.add_customer", "customers.change_customer"}, codes)

	member, err := users.IsMember(ctx, tech.UserID, acme.TenantID)
	require.NoError(t, err)
	require.False(t, member)

	require.NoError(t, roles.AssignUserRole(ctx, tech.UserID, technician.RoleID))

	member, err = users.IsMember(ctx, tech.UserID, acme.TenantID)
	require.NoError(t, err)
	require.True(t, member)

	member, err = users.IsMember(ctx, tech.UserID, rival.TenantID)
	require.NoError(t, err)
	require.False(t, member)

	allowed, err := roles.UserHasPermission(ctx, tech.UserID, acme.TenantID, "customers.add_customer")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = roles.UserHasPermission(ctx, tech.UserID, acme.TenantID, "customers.delete_customer")
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = roles.UserHasPermission(ctx, tech.UserID, rival.TenantID, "customers.add_customer")
	require.NoError(t, err)
	require.False(t, allowed)

	// API keys: prefix lookup, usage tracking, soft revoke.
	key, err := keys.CreateAPIKey(ctx, APIKey{
		KeyID:    uuid.New(),
		TenantID: acme.TenantID,
		Name:     "shop integration",
		KeyHash:  "$2a$10$fakekeyhash",
		Prefix:   "sk_live_abcd",
		RoleID:   technician.RoleID,
		IsActive: true,
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, key.UsageCount)

	candidates, err := keys.FindActiveByPrefix(ctx, "sk_live_abcd")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	before := key.UpdatedAt
	ip := "203.0.113.9"
	require.NoError(t, keys.RecordUsage(ctx, key.KeyID, &ip, time.Now().UTC()))

	got, err := keys.GetAPIKey(ctx, acme.TenantID, key.KeyID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.UsageCount)
	require.NotNil(t, got.LastUsedAt)
	require.NotNil(t, got.LastUsedIP)
	require.Equal(t, ip, *got.LastUsedIP)
	// Usage tracking must not look like an edit.
	require.Equal(t, before.UTC().Truncate(time.Millisecond), got.UpdatedAt.UTC().Truncate(time.Millisecond))

	require.NoError(t, keys.RevokeAPIKey(ctx, acme.TenantID, key.KeyID))

	candidates, err = keys.FindActiveByPrefix(ctx, "sk_live_abcd")
	require.NoError(t, err)
	require.Empty(t, candidates)

	// Revoked, not deleted.
	got, err = keys.GetAPIKey(ctx, acme.TenantID, key.KeyID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	// Cross-tenant revoke is invisible.
	err = keys.RevokeAPIKey(ctx, rival.TenantID, key.KeyID)
	require.ErrorIs(t, err, ErrAPIKeyNotFound)

	// Customers: tenant scoping end to end.
	dana, err := customers.CreateCustomer(ctx, Customer{
		CustomerID: uuid.New(),
		TenantID:   acme.TenantID,
		FullName:   "Dana Field",
		Email:      "dana@example.com",
	})
	require.NoError(t, err)

	list, err := customers.ListCustomers(ctx, acme.TenantID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = customers.ListCustomers(ctx, rival.TenantID)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = customers.GetCustomer(ctx, rival.TenantID, dana.CustomerID)
	require.ErrorIs(t, err, ErrCustomerNotFound)

	newPhone := "555-0100"
	_, err = customers.UpdateCustomer(ctx, rival.TenantID, dana.CustomerID, UpdateCustomerParams{Phone: &newPhone})
	require.ErrorIs(t, err, ErrCustomerNotFound)

	updated, err := customers.UpdateCustomer(ctx, acme.TenantID, dana.CustomerID, UpdateCustomerParams{Phone: &newPhone})
	require.NoError(t, err)
	require.Equal(t, newPhone, updated.Phone)
	require.Equal(t, "Dana Field", updated.FullName)

	err = customers.DeleteCustomer(ctx, rival.TenantID, dana.CustomerID)
	require.ErrorIs(t, err, ErrCustomerNotFound)
	require.NoError(t, customers.DeleteCustomer(ctx, acme.TenantID, dana.CustomerID))
}
