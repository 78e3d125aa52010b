package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/repairhero/platform/platform/go/persistence"
)

// Repository defines the persistence operations required by the sessions service.
type Repository interface {
	UserByEmail(ctx context.Context, email string) (persistence.User, error)
	UserByID(ctx context.Context, userID uuid.UUID) (persistence.User, error)
	SetActiveTenant(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID) error
	IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
	MemberTenantIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	TenantByID(ctx context.Context, tenantID uuid.UUID) (persistence.Tenant, error)
	TenantBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error)
	AllTenants(ctx context.Context) ([]persistence.Tenant, error)
}

type postgresRepository struct {
	users   *persistence.UserStore
	tenants *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(users *persistence.UserStore, tenants *persistence.TenantStore) Repository {
	if users == nil {
		panic("user store is required")
	}
	if tenants == nil {
		panic("tenant store is required")
	}
	return &postgresRepository{users: users, tenants: tenants}
}

func (r *postgresRepository) UserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.users.GetUserByEmail(ctx, email)
}

func (r *postgresRepository) UserByID(ctx context.Context, userID uuid.UUID) (persistence.User, error) {
	return r.users.GetUser(ctx, userID)
}

func (r *postgresRepository) SetActiveTenant(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID) error {
	return r.users.SetActiveTenant(ctx, userID, tenantID)
}

func (r *postgresRepository) IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	return r.users.IsMember(ctx, userID, tenantID)
}

func (r *postgresRepository) MemberTenantIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.users.MemberTenantIDs(ctx, userID)
}

func (r *postgresRepository) TenantByID(ctx context.Context, tenantID uuid.UUID) (persistence.Tenant, error) {
	return r.tenants.GetTenant(ctx, tenantID)
}

func (r *postgresRepository) TenantBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error) {
	return r.tenants.GetTenantBySubdomain(ctx, subdomain)
}

func (r *postgresRepository) AllTenants(ctx context.Context) ([]persistence.Tenant, error) {
	return r.tenants.ListTenants(ctx)
}
