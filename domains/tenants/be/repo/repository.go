package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/repairhero/platform/platform/go/persistence"
)

// Repository defines the persistence operations required by the tenants service.
type Repository interface {
	Create(ctx context.Context, rec persistence.Tenant) (persistence.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error)
	List(ctx context.Context) ([]persistence.Tenant, error)
}

type postgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.TenantStore) Repository {
	if store == nil {
		panic("tenant store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, rec persistence.Tenant) (persistence.Tenant, error) {
	return r.store.CreateTenant(ctx, rec)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Tenant, error) {
	return r.store.GetTenant(ctx, id)
}

func (r *postgresRepository) GetBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error) {
	return r.store.GetTenantBySubdomain(ctx, subdomain)
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.Tenant, error) {
	return r.store.ListTenants(ctx)
}
