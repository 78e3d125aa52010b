package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/repairhero/platform/platform/go/persistence"
)

// Domain sentinel errors.
var (
	ErrNotFound       = errors.New("customer not found")
	ErrTenantRequired = errors.New("tenant not resolved")
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Customer represents the domain view of a customer record.
type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	FullName  string
	Email     string
	Phone     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput represents the request to create a customer. The owning tenant
// comes from the request context, never from the payload.
type CreateInput struct {
	FullName string
	Email    string
	Phone    string
	Notes    string
}

// UpdateInput carries the mutable fields; nil means leave unchanged.
type UpdateInput struct {
	FullName *string
	Email    *string
	Phone    *string
	Notes    *string
}

// Repository abstracts persistence.
type Repository interface {
	Create(ctx context.Context, rec persistence.Customer) (persistence.Customer, error)
	Get(ctx context.Context, tenantID, customerID uuid.UUID) (persistence.Customer, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]persistence.Customer, error)
	Update(ctx context.Context, tenantID, customerID uuid.UUID, params persistence.UpdateCustomerParams) (persistence.Customer, error)
	Delete(ctx context.Context, tenantID, customerID uuid.UUID) error
}

// Service defines the customer operations. Reads without a resolved tenant
// return empty results; writes without one are rejected.
type Service interface {
	Create(ctx context.Context, tenantID uuid.UUID, input CreateInput) (Customer, error)
	Get(ctx context.Context, tenantID, customerID uuid.UUID) (Customer, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Customer, error)
	Update(ctx context.Context, tenantID, customerID uuid.UUID, input UpdateInput) (Customer, error)
	Delete(ctx context.Context, tenantID, customerID uuid.UUID) error
}

type service struct {
	repo Repository
}

// New constructs a customers Service backed by the provided repository.
func New(r Repository) Service {
	if r == nil {
		panic("customers repository is required")
	}
	return &service{repo: r}
}

func (s *service) Create(ctx context.Context, tenantID uuid.UUID, input CreateInput) (Customer, error) {
	if tenantID == uuid.Nil {
		return Customer{}, ErrTenantRequired
	}

	fieldErrors := FieldErrors{}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fieldErrors.add("fullName", "full name is required")
	}

	if len(fieldErrors) > 0 {
		return Customer{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.Create(ctx, persistence.Customer{
		CustomerID: uuid.New(),
		TenantID:   tenantID,
		FullName:   fullName,
		Email:      strings.TrimSpace(input.Email),
		Phone:      strings.TrimSpace(input.Phone),
		Notes:      input.Notes,
	})
	if err != nil {
		return Customer{}, err
	}
	return mapCustomer(record), nil
}

func (s *service) Get(ctx context.Context, tenantID, customerID uuid.UUID) (Customer, error) {
	if tenantID == uuid.Nil || customerID == uuid.Nil {
		return Customer{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, tenantID, customerID)
	if err != nil {
		return Customer{}, mapPersistenceError(err)
	}
	return mapCustomer(record), nil
}

// List returns the tenant's customers. A nil tenant id means no tenant was
// resolved for the request, so the result is empty rather than global.
func (s *service) List(ctx context.Context, tenantID uuid.UUID) ([]Customer, error) {
	if tenantID == uuid.Nil {
		return []Customer{}, nil
	}

	records, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	customers := make([]Customer, 0, len(records))
	for _, record := range records {
		customers = append(customers, mapCustomer(record))
	}
	return customers, nil
}

func (s *service) Update(ctx context.Context, tenantID, customerID uuid.UUID, input UpdateInput) (Customer, error) {
	if tenantID == uuid.Nil {
		return Customer{}, ErrTenantRequired
	}
	if customerID == uuid.Nil {
		return Customer{}, ErrNotFound
	}

	if input.FullName != nil {
		trimmed := strings.TrimSpace(*input.FullName)
		if trimmed == "" {
			return Customer{}, &ValidationError{Fields: FieldErrors{
				"fullName": {"full name cannot be empty"},
			}}
		}
		input.FullName = &trimmed
	}

	record, err := s.repo.Update(ctx, tenantID, customerID, persistence.UpdateCustomerParams{
		FullName: input.FullName,
		Email:    input.Email,
		Phone:    input.Phone,
		Notes:    input.Notes,
	})
	if err != nil {
		return Customer{}, mapPersistenceError(err)
	}
	return mapCustomer(record), nil
}

func (s *service) Delete(ctx context.Context, tenantID, customerID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrTenantRequired
	}
	if customerID == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, tenantID, customerID); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func mapCustomer(record persistence.Customer) Customer {
	return Customer{
		ID:        record.CustomerID,
		TenantID:  record.TenantID,
		FullName:  record.FullName,
		Email:     record.Email,
		Phone:     record.Phone,
		Notes:     record.Notes,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	if errors.Is(err, persistence.ErrCustomerNotFound) {
		return ErrNotFound
	}
	return err
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
