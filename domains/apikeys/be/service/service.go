package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
)

// Domain sentinel errors.
var (
	ErrNotFound     = errors.New("api key not found")
	ErrRoleNotFound = errors.New("role not found for tenant")
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

// Key is the operator-visible view of an API key. The secret is absent: only
// the non-secret prefix and usage metadata are ever readable after creation.
type Key struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Name          string
	Prefix        string
	RoleID        uuid.UUID
	RoleName      string
	IntegrationID *uuid.UUID
	IsActive      bool
	ExpiresAt     *time.Time
	LastUsedAt    *time.Time
	LastUsedIP    *string
	UsageCount    int64
	Notes         string
	CreatedAt     time.Time
}

// CreatedKey carries the plaintext secret alongside the stored key. It exists
// only in the create path; no other operation can reproduce the plaintext.
type CreatedKey struct {
	Key
	Plaintext string
}

// CreateInput represents the request to mint a new key.
type CreateInput struct {
	Name          string
	RoleName      string
	Environment   string
	ExpiresAt     *time.Time
	Notes         string
	IntegrationID *uuid.UUID
	CreatedBy     *uuid.UUID
}

// Repository abstracts persistence for keys and the role lookup needed to
// bind them.
type Repository interface {
	CreateKey(ctx context.Context, rec persistence.APIKey) (persistence.APIKey, error)
	ListKeys(ctx context.Context, tenantID uuid.UUID) ([]persistence.APIKey, error)
	RevokeKey(ctx context.Context, tenantID, keyID uuid.UUID) error
	RoleByName(ctx context.Context, tenantID uuid.UUID, name string) (persistence.Role, error)
	RoleByID(ctx context.Context, roleID uuid.UUID) (persistence.Role, error)
}

// Service defines the API key lifecycle operations. Keys are created once
// (plaintext revealed exactly once), tracked on use and soft-revoked; they are
// never hard-deleted and never move between tenants.
type Service interface {
	Create(ctx context.Context, tenantID uuid.UUID, input CreateInput) (CreatedKey, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Key, error)
	Revoke(ctx context.Context, tenantID, keyID uuid.UUID) error
}

type service struct {
	repo Repository
}

// New constructs an API key Service backed by the provided repository.
func New(r Repository) Service {
	if r == nil {
		panic("api keys repository is required")
	}
	return &service{repo: r}
}

func (s *service) Create(ctx context.Context, tenantID uuid.UUID, input CreateInput) (CreatedKey, error) {
	if tenantID == uuid.Nil {
		return CreatedKey{}, ErrRoleNotFound
	}

	fieldErrors := FieldErrors{}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		fieldErrors.add("name", "name is required")
	}

	roleName := strings.TrimSpace(input.RoleName)
	if roleName == "" {
		fieldErrors.add("role", "role is required")
	}

	environment := input.Environment
	if environment == "" {
		environment = platformauth.KeyEnvironmentLive
	}
	if environment != platformauth.KeyEnvironmentLive && environment != platformauth.KeyEnvironmentTest {
		fieldErrors.add("environment", "environment must be live or test")
	}

	if input.ExpiresAt != nil && !input.ExpiresAt.After(time.Now().UTC()) {
		fieldErrors.add("expiresAt", "expiration must be in the future")
	}

	if len(fieldErrors) > 0 {
		return CreatedKey{}, &ValidationError{Fields: fieldErrors}
	}

	role, err := s.repo.RoleByName(ctx, tenantID, roleName)
	if err != nil {
		if errors.Is(err, persistence.ErrRoleNotFound) {
			return CreatedKey{}, ErrRoleNotFound
		}
		return CreatedKey{}, err
	}

	plaintext, prefix, hash, err := platformauth.GenerateKey(environment)
	if err != nil {
		return CreatedKey{}, err
	}

	record, err := s.repo.CreateKey(ctx, persistence.APIKey{
		KeyID:         uuid.New(),
		TenantID:      tenantID,
		Name:          name,
		KeyHash:       hash,
		Prefix:        prefix,
		RoleID:        role.RoleID,
		IntegrationID: input.IntegrationID,
		IsActive:      true,
		ExpiresAt:     input.ExpiresAt,
		CreatedBy:     input.CreatedBy,
		Notes:         input.Notes,
	})
	if err != nil {
		return CreatedKey{}, err
	}

	key := mapKey(record)
	key.RoleName = role.Name
	return CreatedKey{Key: key, Plaintext: plaintext}, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID) ([]Key, error) {
	if tenantID == uuid.Nil {
		return []Key{}, nil
	}

	records, err := s.repo.ListKeys(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	keys := make([]Key, 0, len(records))
	for _, record := range records {
		key := mapKey(record)
		if role, err := s.repo.RoleByID(ctx, record.RoleID); err == nil {
			key.RoleName = role.Name
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *service) Revoke(ctx context.Context, tenantID, keyID uuid.UUID) error {
	if tenantID == uuid.Nil || keyID == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.RevokeKey(ctx, tenantID, keyID); err != nil {
		if errors.Is(err, persistence.ErrAPIKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func mapKey(record persistence.APIKey) Key {
	return Key{
		ID:            record.KeyID,
		TenantID:      record.TenantID,
		Name:          record.Name,
		Prefix:        record.Prefix,
		RoleID:        record.RoleID,
		IntegrationID: record.IntegrationID,
		IsActive:      record.IsActive,
		ExpiresAt:     record.ExpiresAt,
		LastUsedAt:    record.LastUsedAt,
		LastUsedIP:    record.LastUsedIP,
		UsageCount:    record.UsageCount,
		Notes:         record.Notes,
		CreatedAt:     record.CreatedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
