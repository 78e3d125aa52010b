package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/repairhero/platform/platform/go/persistence"
)

// Repository defines the persistence operations required by the customers service.
type Repository interface {
	Create(ctx context.Context, rec persistence.Customer) (persistence.Customer, error)
	Get(ctx context.Context, tenantID, customerID uuid.UUID) (persistence.Customer, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]persistence.Customer, error)
	Update(ctx context.Context, tenantID, customerID uuid.UUID, params persistence.UpdateCustomerParams) (persistence.Customer, error)
	Delete(ctx context.Context, tenantID, customerID uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.CustomerStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.CustomerStore) Repository {
	if store == nil {
		panic("customer store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, rec persistence.Customer) (persistence.Customer, error) {
	return r.store.CreateCustomer(ctx, rec)
}

func (r *postgresRepository) Get(ctx context.Context, tenantID, customerID uuid.UUID) (persistence.Customer, error) {
	return r.store.GetCustomer(ctx, tenantID, customerID)
}

func (r *postgresRepository) List(ctx context.Context, tenantID uuid.UUID) ([]persistence.Customer, error) {
	return r.store.ListCustomers(ctx, tenantID)
}

func (r *postgresRepository) Update(ctx context.Context, tenantID, customerID uuid.UUID, params persistence.UpdateCustomerParams) (persistence.Customer, error) {
	return r.store.UpdateCustomer(ctx, tenantID, customerID, params)
}

func (r *postgresRepository) Delete(ctx context.Context, tenantID, customerID uuid.UUID) error {
	return r.store.DeleteCustomer(ctx, tenantID, customerID)
}
