package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/repairhero/platform/platform/go/persistence"
)

// Repository defines the persistence operations required by the API keys service.
type Repository interface {
	CreateKey(ctx context.Context, rec persistence.APIKey) (persistence.APIKey, error)
	ListKeys(ctx context.Context, tenantID uuid.UUID) ([]persistence.APIKey, error)
	RevokeKey(ctx context.Context, tenantID, keyID uuid.UUID) error
	RoleByName(ctx context.Context, tenantID uuid.UUID, name string) (persistence.Role, error)
	RoleByID(ctx context.Context, roleID uuid.UUID) (persistence.Role, error)
}

type postgresRepository struct {
	keys  *persistence.APIKeyStore
	roles *persistence.RoleStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(keys *persistence.APIKeyStore, roles *persistence.RoleStore) Repository {
	if keys == nil {
		panic("api key store is required")
	}
	if roles == nil {
		panic("role store is required")
	}
	return &postgresRepository{keys: keys, roles: roles}
}

func (r *postgresRepository) CreateKey(ctx context.Context, rec persistence.APIKey) (persistence.APIKey, error) {
	return r.keys.CreateAPIKey(ctx, rec)
}

func (r *postgresRepository) ListKeys(ctx context.Context, tenantID uuid.UUID) ([]persistence.APIKey, error) {
	return r.keys.ListAPIKeys(ctx, tenantID)
}

func (r *postgresRepository) RevokeKey(ctx context.Context, tenantID, keyID uuid.UUID) error {
	return r.keys.RevokeAPIKey(ctx, tenantID, keyID)
}

func (r *postgresRepository) RoleByName(ctx context.Context, tenantID uuid.UUID, name string) (persistence.Role, error) {
	return r.roles.GetRoleByName(ctx, tenantID, name)
}

func (r *postgresRepository) RoleByID(ctx context.Context, roleID uuid.UUID) (persistence.Role, error) {
	return r.roles.GetRole(ctx, roleID)
}
