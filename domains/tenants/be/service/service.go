package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/repairhero/platform/platform/go/persistence"
)

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("tenant not found")
	ErrConflict = errors.New("tenant subdomain already exists")
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

// Tenant represents the domain view of a tenant registry entry.
type Tenant struct {
	ID          uuid.UUID
	Subdomain   string
	DisplayName string
	CreatedAt   time.Time
}

// CreateInput represents the request to create a tenant. The subdomain is
// immutable once the tenant is referenced externally, so there is no update
// path for it.
type CreateInput struct {
	Subdomain   string
	DisplayName string
}

// Repository abstracts persistence.
type Repository interface {
	Create(ctx context.Context, rec persistence.Tenant) (persistence.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error)
	List(ctx context.Context) ([]persistence.Tenant, error)
}

// Service defines the tenant registry operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

type service struct {
	repo Repository
}

// New constructs a tenants Service backed by the provided repository.
func New(r Repository) Service {
	if r == nil {
		panic("tenants repository is required")
	}
	return &service{repo: r}
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

func (s *service) Create(ctx context.Context, input CreateInput) (Tenant, error) {
	fieldErrors := FieldErrors{}

	subdomain := strings.ToLower(strings.TrimSpace(input.Subdomain))
	if subdomain == "" {
		fieldErrors.add("subdomain", "subdomain is required")
	} else if !subdomainPattern.MatchString(subdomain) {
		fieldErrors.add("subdomain", "subdomain must be a valid DNS label")
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = subdomain
	}

	if len(fieldErrors) > 0 {
		return Tenant{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.Create(ctx, persistence.Tenant{
		TenantID:    uuid.New(),
		Subdomain:   subdomain,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Tenant{}, mapPersistenceError(err)
	}

	return mapTenant(record), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	if id == uuid.Nil {
		return Tenant{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tenant{}, mapPersistenceError(err)
	}
	return mapTenant(record), nil
}

func (s *service) GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if subdomain == "" {
		return Tenant{}, ErrNotFound
	}

	record, err := s.repo.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return Tenant{}, mapPersistenceError(err)
	}
	return mapTenant(record), nil
}

func (s *service) List(ctx context.Context) ([]Tenant, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	tenants := make([]Tenant, 0, len(records))
	for _, record := range records {
		tenants = append(tenants, mapTenant(record))
	}
	return tenants, nil
}

func mapTenant(record persistence.Tenant) Tenant {
	return Tenant{
		ID:          record.TenantID,
		Subdomain:   record.Subdomain,
		DisplayName: record.DisplayName,
		CreatedAt:   record.CreatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrTenantNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrTenantConflict):
		return ErrConflict
	default:
		return err
	}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
