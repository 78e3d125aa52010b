// Package authz answers "does this principal hold permission P in this
// tenant". It is called explicitly by every mutating or sensitive-read
// operation; tenant resolution never invokes it implicitly.
package authz

import (
	"context"

	"github.com/google/uuid"

	platformauth "github.com/repairhero/platform/platform/go/auth"
)

// PermissionStore is the role/permission lookup capability the evaluator
// needs. Implemented by persistence.RoleStore.
type PermissionStore interface {
	RoleHasPermission(ctx context.Context, roleID uuid.UUID, code string) (bool, error)
	UserHasPermission(ctx context.Context, userID, tenantID uuid.UUID, code string) (bool, error)
}

// Evaluator resolves permission checks against the Role → Permission
// assignment model.
type Evaluator struct {
	store PermissionStore
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(store PermissionStore) *Evaluator {
	if store == nil {
		panic("permission store is required")
	}
	return &Evaluator{store: store}
}

// HasPermission reports whether the principal holds the permission code in the
// tenant. Missing assignments are a definitive false, not an error.
//
//   - Session superusers hold every permission.
//   - Session principals need a role in the tenant granting the code.
//   - API-key principals need their bound tenant to equal the tenant and
//     their bound role to grant the code. They never act as superusers and
//     never inherit session roles.
func (e *Evaluator) HasPermission(ctx context.Context, principal platformauth.Principal, code string, tenantID uuid.UUID) (bool, error) {
	if principal == nil || tenantID == uuid.Nil {
		return false, nil
	}

	switch p := principal.(type) {
	case platformauth.SessionPrincipal:
		if p.IsSuperuser {
			return true, nil
		}
		return e.store.UserHasPermission(ctx, p.UserID, tenantID, code)
	case platformauth.APIKeyPrincipal:
		if p.TenantID != tenantID {
			return false, nil
		}
		return e.store.RoleHasPermission(ctx, p.RoleID, code)
	default:
		return false, nil
	}
}
