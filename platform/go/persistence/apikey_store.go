package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// APIKey is a long-lived machine credential bound to one tenant and one role.
// Only the bcrypt hash of the secret is stored; the prefix is a non-secret
// lookup fragment. Keys are soft-revoked via IsActive, never hard-deleted.
type APIKey struct {
	KeyID         uuid.UUID  `db:"key_id"`
	TenantID      uuid.UUID  `db:"tenant_id"`
	Name          string     `db:"name"`
	KeyHash       string     `db:"key_hash"`
	Prefix        string     `db:"prefix"`
	RoleID        uuid.UUID  `db:"role_id"`
	IntegrationID *uuid.UUID `db:"integration_id"`
	IsActive      bool       `db:"is_active"`
	ExpiresAt     *time.Time `db:"expires_at"`
	LastUsedAt    *time.Time `db:"last_used_at"`
	LastUsedIP    *string    `db:"last_used_ip"`
	UsageCount    int64      `db:"usage_count"`
	CreatedBy     *uuid.UUID `db:"created_by"`
	Notes         string     `db:"notes"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// IsValid reports whether the key may authenticate at the given instant:
// active and either non-expiring or not yet expired.
func (k APIKey) IsValid(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	if k.ExpiresAt != nil && !now.Before(*k.ExpiresAt) {
		return false
	}
	return true
}

// APIKeyStore provides access to the api_keys table.
type APIKeyStore struct {
	pool *pgxpool.Pool
}

// NewAPIKeyStore creates a store; assumes migrations already created the table.
func NewAPIKeyStore(pool *pgxpool.Pool) (*APIKeyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &APIKeyStore{pool: pool}, nil
}

const apiKeyColumns = `key_id, tenant_id, name, key_hash, prefix, role_id, integration_id,
        is_active, expires_at, last_used_at, last_used_ip, usage_count, created_by, notes,
        created_at, updated_at`

// CreateAPIKey inserts a key row. The hash must already be computed; plaintext
// never reaches this layer.
func (s *APIKeyStore) CreateAPIKey(ctx context.Context, rec APIKey) (APIKey, error) {
	if rec.KeyID == uuid.Nil {
		return APIKey{}, errors.New("key id is required")
	}
	if rec.TenantID == uuid.Nil {
		return APIKey{}, errors.New("tenant id is required")
	}
	if rec.RoleID == uuid.Nil {
		return APIKey{}, errors.New("role id is required")
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO api_keys (key_id, tenant_id, name, key_hash, prefix, role_id, integration_id,
            is_active, expires_at, created_by, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
        RETURNING `+apiKeyColumns,
		rec.KeyID, rec.TenantID, rec.Name, rec.KeyHash, rec.Prefix, rec.RoleID,
		rec.IntegrationID, rec.IsActive, rec.ExpiresAt, rec.CreatedBy, rec.Notes,
	)
	return scanAPIKey(row)
}

// GetAPIKey fetches a key by id within a tenant.
func (s *APIKeyStore) GetAPIKey(ctx context.Context, tenantID, keyID uuid.UUID) (APIKey, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE tenant_id = $1 AND key_id = $2`,
		tenantID, keyID)
	return scanAPIKey(row)
}

// FindActiveByPrefix returns all active keys sharing the lookup prefix.
// Expected cardinality is one, but prefix collisions must be tolerated; the
// caller verifies the full secret against each candidate hash.
func (s *APIKeyStore) FindActiveByPrefix(ctx context.Context, prefix string) ([]APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1 AND is_active = TRUE`,
		prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		rec, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, rec)
	}
	return keys, rows.Err()
}

// ListAPIKeys returns a tenant's keys ordered by creation time.
func (s *APIKeyStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		rec, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, rec)
	}
	return keys, rows.Err()
}

// RecordUsage stamps last-used metadata and bumps the usage counter with an
// atomic increment so concurrent authentications do not serialize. It is a
// targeted update: updated_at is left alone because usage is not a content
// edit.
func (s *APIKeyStore) RecordUsage(ctx context.Context, keyID uuid.UUID, ip *string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE api_keys
        SET last_used_at = $2,
            last_used_ip = COALESCE($3, last_used_ip),
            usage_count = usage_count + 1
        WHERE key_id = $1`,
		keyID, now, ip)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// RevokeAPIKey soft-revokes a key by clearing its active flag. The row is kept
// for the audit trail.
func (s *APIKeyStore) RevokeAPIKey(ctx context.Context, tenantID, keyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE api_keys SET is_active = FALSE, updated_at = now()
        WHERE tenant_id = $1 AND key_id = $2`,
		tenantID, keyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

func scanAPIKey(row pgx.Row) (APIKey, error) {
	var rec APIKey
	if err := row.Scan(&rec.KeyID, &rec.TenantID, &rec.Name, &rec.KeyHash, &rec.Prefix,
		&rec.RoleID, &rec.IntegrationID, &rec.IsActive, &rec.ExpiresAt, &rec.LastUsedAt,
		&rec.LastUsedIP, &rec.UsageCount, &rec.CreatedBy, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrAPIKeyNotFound
		}
		return APIKey{}, err
	}
	return rec, nil
}
