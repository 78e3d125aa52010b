package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tenant represents a tenant registry row. The subdomain is the external
// identifier used for host- and header-based resolution and never changes
// once created.
type Tenant struct {
	TenantID    uuid.UUID `db:"tenant_id"`
	Subdomain   string    `db:"subdomain"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
}

// TenantStore provides access to the tenants table.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a store; assumes migrations already created the table.
func NewTenantStore(pool *pgxpool.Pool) (*TenantStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantStore{pool: pool}, nil
}

const tenantColumns = "tenant_id, subdomain, display_name, created_at"

// CreateTenant inserts a tenant row.
func (s *TenantStore) CreateTenant(ctx context.Context, rec Tenant) (Tenant, error) {
	if rec.TenantID == uuid.Nil {
		return Tenant{}, errors.New("tenant id is required")
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO tenants (tenant_id, subdomain, display_name, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING `+tenantColumns,
		rec.TenantID, rec.Subdomain, rec.DisplayName, rec.CreatedAt,
	)

	out, err := scanTenant(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Tenant{}, ErrTenantConflict
		}
		return Tenant{}, err
	}
	return out, nil
}

// GetTenant fetches a tenant by id.
func (s *TenantStore) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = $1`, id)
	return scanTenant(row)
}

// GetTenantBySubdomain fetches a tenant by its unique subdomain.
func (s *TenantStore) GetTenantBySubdomain(ctx context.Context, subdomain string) (Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`, subdomain)
	return scanTenant(row)
}

// ListTenants returns all tenants ordered by creation time.
func (s *TenantStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		rec, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, rec)
	}
	return tenants, rows.Err()
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var rec Tenant
	if err := row.Scan(&rec.TenantID, &rec.Subdomain, &rec.DisplayName, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, err
	}
	return rec, nil
}
