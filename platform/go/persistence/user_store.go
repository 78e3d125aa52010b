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

// User represents a persisted session principal. PasswordHash is a bcrypt
// digest and never leaves the persistence/service boundary.
type User struct {
	UserID         uuid.UUID  `db:"user_id"`
	Email          string     `db:"email"`
	FullName       string     `db:"full_name"`
	PasswordHash   string     `db:"password_hash"`
	IsSuperuser    bool       `db:"is_superuser"`
	ActiveTenantID *uuid.UUID `db:"active_tenant_id"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// UserStore provides access to the users table and the user→role membership chain.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a store; assumes migrations already created the tables.
func NewUserStore(pool *pgxpool.Pool) (*UserStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &UserStore{pool: pool}, nil
}

const userColumns = "user_id, email, full_name, password_hash, is_superuser, active_tenant_id, created_at, updated_at"

// CreateUser inserts a user row.
func (s *UserStore) CreateUser(ctx context.Context, rec User) (User, error) {
	if rec.UserID == uuid.Nil {
		return User{}, errors.New("user id is required")
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO users (user_id, email, full_name, password_hash, is_superuser, active_tenant_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, now(), now())
        RETURNING `+userColumns,
		rec.UserID, rec.Email, rec.FullName, rec.PasswordHash, rec.IsSuperuser, rec.ActiveTenantID,
	)

	out, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrUserConflict
		}
		return User{}, err
	}
	return out, nil
}

// GetUser fetches a user by id.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail fetches a user by email for login.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// SetActiveTenant stores the user's selected tenant. A nil tenant clears the selection.
func (s *UserStore) SetActiveTenant(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET active_tenant_id = $2, updated_at = now() WHERE user_id = $1`,
		userID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IsMember reports whether the user holds at least one role in the tenant.
// A user with zero roles in a tenant has no membership there.
func (s *UserStore) IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
            FROM user_roles ur
            JOIN roles r ON r.role_id = ur.role_id
            WHERE ur.user_id = $1 AND r.tenant_id = $2
        )`, userID, tenantID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// MemberTenantIDs returns the distinct tenants reachable through the user's roles.
func (s *UserStore) MemberTenantIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT DISTINCT r.tenant_id
        FROM user_roles ur
        JOIN roles r ON r.role_id = ur.role_id
        WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var rec User
	if err := row.Scan(&rec.UserID, &rec.Email, &rec.FullName, &rec.PasswordHash,
		&rec.IsSuperuser, &rec.ActiveTenantID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return rec, nil
}
