package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Customer is a tenant-owned record. Every query on this store carries the
// tenant id so a row from another tenant is indistinguishable from a missing
// row.
type Customer struct {
	CustomerID uuid.UUID `db:"customer_id"`
	TenantID   uuid.UUID `db:"tenant_id"`
	FullName   string    `db:"full_name"`
	Email      string    `db:"email"`
	Phone      string    `db:"phone"`
	Notes      string    `db:"notes"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// UpdateCustomerParams holds the mutable customer fields. The tenant id is
// deliberately absent: ownership never changes through an update.
type UpdateCustomerParams struct {
	FullName *string
	Email    *string
	Phone    *string
	Notes    *string
}

// CustomerStore provides tenant-scoped access to the customers table.
type CustomerStore struct {
	pool *pgxpool.Pool
}

// NewCustomerStore creates a store; assumes migrations already created the table.
func NewCustomerStore(pool *pgxpool.Pool) (*CustomerStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &CustomerStore{pool: pool}, nil
}

const customerColumns = "customer_id, tenant_id, full_name, email, phone, notes, created_at, updated_at"

// CreateCustomer inserts a customer stamped with the given tenant.
func (s *CustomerStore) CreateCustomer(ctx context.Context, rec Customer) (Customer, error) {
	if rec.CustomerID == uuid.Nil {
		return Customer{}, errors.New("customer id is required")
	}
	if rec.TenantID == uuid.Nil {
		return Customer{}, errors.New("tenant id is required")
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO customers (customer_id, tenant_id, full_name, email, phone, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, now(), now())
        RETURNING `+customerColumns,
		rec.CustomerID, rec.TenantID, rec.FullName, rec.Email, rec.Phone, rec.Notes,
	)
	return scanCustomer(row)
}

// GetCustomer fetches a customer within the tenant.
func (s *CustomerStore) GetCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (Customer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND customer_id = $2`,
		tenantID, customerID)
	return scanCustomer(row)
}

// ListCustomers returns the tenant's customers ordered by creation time.
func (s *CustomerStore) ListCustomers(ctx context.Context, tenantID uuid.UUID) ([]Customer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		rec, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, rec)
	}
	return customers, rows.Err()
}

// UpdateCustomer applies the provided fields to a customer the tenant owns.
// The tenant column is never part of the SET clause.
func (s *CustomerStore) UpdateCustomer(ctx context.Context, tenantID, customerID uuid.UUID, params UpdateCustomerParams) (Customer, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE customers
        SET full_name = COALESCE($3, full_name),
            email = COALESCE($4, email),
            phone = COALESCE($5, phone),
            notes = COALESCE($6, notes),
            updated_at = now()
        WHERE tenant_id = $1 AND customer_id = $2
        RETURNING `+customerColumns,
		tenantID, customerID, params.FullName, params.Email, params.Phone, params.Notes,
	)
	return scanCustomer(row)
}

// DeleteCustomer removes a customer the tenant owns.
func (s *CustomerStore) DeleteCustomer(ctx context.Context, tenantID, customerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM customers WHERE tenant_id = $1 AND customer_id = $2`,
		tenantID, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var rec Customer
	if err := row.Scan(&rec.CustomerID, &rec.TenantID, &rec.FullName, &rec.Email,
		&rec.Phone, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, err
	}
	return rec, nil
}
