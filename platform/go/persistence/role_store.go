package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Role is scoped to exactly one tenant; its name is unique per tenant.
type Role struct {
	RoleID      uuid.UUID `db:"role_id"`
	TenantID    uuid.UUID `db:"tenant_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
}

// RoleStore provides access to roles, permissions and their assignments.
type RoleStore struct {
	pool *pgxpool.Pool
}

// NewRoleStore creates a store; assumes migrations already created the tables.
func NewRoleStore(pool *pgxpool.Pool) (*RoleStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &RoleStore{pool: pool}, nil
}

const roleColumns = "role_id, tenant_id, name, description"

// CreateRole inserts a role row.
func (s *RoleStore) CreateRole(ctx context.Context, rec Role) (Role, error) {
	if rec.RoleID == uuid.Nil {
		return Role{}, errors.New("role id is required")
	}
	if rec.TenantID == uuid.Nil {
		return Role{}, errors.New("tenant id is required")
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO roles (role_id, tenant_id, name, description)
        VALUES ($1, $2, $3, $4)
        RETURNING `+roleColumns,
		rec.RoleID, rec.TenantID, rec.Name, rec.Description,
	)

	out, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Role{}, ErrRoleConflict
		}
		return Role{}, err
	}
	return out, nil
}

// GetRole fetches a role by id.
func (s *RoleStore) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE role_id = $1`, id)
	return scanRole(row)
}

// GetRoleByName fetches a tenant's role by name.
func (s *RoleStore) GetRoleByName(ctx context.Context, tenantID uuid.UUID, name string) (Role, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	return scanRole(row)
}

// GrantPermissions ensures the permission codes exist and links them to the
// role. Granting an already-granted permission is a no-op.
func (s *RoleStore) GrantPermissions(ctx context.Context, roleID uuid.UUID, codes []string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, code := range codes {
		var permissionID uuid.UUID
		err := tx.QueryRow(ctx, `
            INSERT INTO permissions (permission_id, code)
            VALUES ($1, $2)
            ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
            RETURNING permission_id`,
			uuid.New(), code).Scan(&permissionID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO role_permissions (role_id, permission_id)
            VALUES ($1, $2)
            ON CONFLICT DO NOTHING`,
			roleID, permissionID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListPermissionCodes returns the codes granted to a role.
func (s *RoleStore) ListPermissionCodes(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT p.code
        FROM role_permissions rp
        JOIN permissions p ON p.permission_id = rp.permission_id
        WHERE rp.role_id = $1
        ORDER BY p.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// AssignUserRole binds a user to a role. Duplicate assignments are no-ops.
func (s *RoleStore) AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO user_roles (user_id, role_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

// RoleHasPermission reports whether the role grants the permission code.
func (s *RoleStore) RoleHasPermission(ctx context.Context, roleID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
            FROM role_permissions rp
            JOIN permissions p ON p.permission_id = rp.permission_id
            WHERE rp.role_id = $1 AND p.code = $2
        )`, roleID, code).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UserHasPermission reports whether the user holds the permission code in the
// tenant through any of their roles. Absence of rows is a definitive false.
func (s *RoleStore) UserHasPermission(ctx context.Context, userID, tenantID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
            FROM user_roles ur
            JOIN roles r ON r.role_id = ur.role_id
            JOIN role_permissions rp ON rp.role_id = r.role_id
            JOIN permissions p ON p.permission_id = rp.permission_id
            WHERE ur.user_id = $1 AND r.tenant_id = $2 AND p.code = $3
        )`, userID, tenantID, code).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var rec Role
	if err := row.Scan(&rec.RoleID, &rec.TenantID, &rec.Name, &rec.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return rec, nil
}
