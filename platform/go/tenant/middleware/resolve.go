// Package middleware wires tenant resolution and membership enforcement into
// the HTTP pipeline. It runs after credential resolution and before any
// resource handler.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/httpapi"
	"github.com/repairhero/platform/platform/go/logging"
	"github.com/repairhero/platform/platform/go/tenant"
)

// MembershipChecker verifies a session user's association with a tenant.
// Implemented by persistence.UserStore.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
}

// DefaultTenantOptionalPaths lists endpoints that must work before a tenant
// association exists: login, logout, session probe and CSRF bootstrap.
var DefaultTenantOptionalPaths = []string{
	"/v1/auth/login",
	"/v1/auth/logout",
	"/v1/auth/session",
	"/v1/auth/csrf",
}

// WithTenant resolves the active tenant and, for session-authenticated
// requests outside the allow-list, enforces membership. API-key requests skip
// the membership check: the key's tenant binding is the authorization.
// A request that resolves no tenant continues; downstream reads fail closed
// and writes reject.
func WithTenant(resolver *tenant.Resolver, members MembershipChecker, optionalPaths []string, base *zap.Logger) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}
	if members == nil {
		panic("tenant middleware: membership checker is required")
	}
	if optionalPaths == nil {
		optionalPaths = DefaultTenantOptionalPaths
	}
	if base == nil {
		base = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromRequest(r, base)

			info, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				logger.Error("tenant resolution failed", zap.Error(err))
				httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
				return
			}

			if info == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := tenant.WithInfo(r.Context(), *info)

			// Membership guard: session principals only. A resolved tenant a
			// user does not belong to is a hard 403, never a silent downgrade.
			if principal, ok := platformauth.PrincipalFromContext(ctx); ok {
				if session, isSession := principal.(platformauth.SessionPrincipal); isSession &&
					!session.IsSuperuser && !pathIsTenantOptional(r.URL.Path, optionalPaths) {
					member, err := members.IsMember(ctx, session.UserID, info.TenantID)
					if err != nil {
						logger.Error("membership check failed", zap.Error(err))
						httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
						return
					}
					if !member {
						httpapi.WriteError(w, http.StatusForbidden, "forbidden",
							"you do not have access to this tenant")
						return
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func pathIsTenantOptional(path string, optionalPaths []string) bool {
	for _, p := range optionalPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
