package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
)

// SelectorHeader is the advisory tenant hint a client may send. It ranks below
// an authenticated user's own selection and above host derivation.
const SelectorHeader = "X-Tenant"

// Registry is the tenant lookup capability the resolver needs.
// Implemented by persistence.TenantStore.
type Registry interface {
	GetTenant(ctx context.Context, id uuid.UUID) (persistence.Tenant, error)
	GetTenantBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error)
}

// Resolver determines the active tenant for a request. Precedence, first
// success wins:
//
//  1. API-key credential → the key's bound tenant, non-negotiable.
//  2. Session principal's active tenant selection.
//  3. X-Tenant header, matched against tenant subdomains.
//  4. Host-derived subdomain.
//  5. The deployment's default tenant subdomain, when configured.
//
// Header and host resolution sit after the active-tenant selection so a stale
// header cannot silently override what a logged-in user chose, and before the
// deployment default. An unresolvable tenant is not an error here; reads fail
// closed to empty results and writes are rejected downstream.
type Resolver struct {
	registry         Registry
	defaultSubdomain string
}

// NewResolver constructs a Resolver. defaultSubdomain may be empty.
func NewResolver(registry Registry, defaultSubdomain string) *Resolver {
	if registry == nil {
		panic("tenant registry is required")
	}
	return &Resolver{registry: registry, defaultSubdomain: defaultSubdomain}
}

// Resolve returns the tenant for the request, or nil when none resolves.
// Lookup misses fall through to the next source; infrastructure errors abort.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Info, error) {
	// 1. API key binding. Membership checks do not apply: the binding is
	// itself the authorization.
	if key, ok := platformauth.APIKeyFromContext(ctx); ok {
		return r.byID(ctx, key.TenantID)
	}

	// 2. The authenticated user's own selection.
	if principal, ok := platformauth.PrincipalFromContext(ctx); ok {
		if session, ok := principal.(platformauth.SessionPrincipal); ok && session.ActiveTenantID != nil {
			info, err := r.byID(ctx, *session.ActiveTenantID)
			if err != nil || info != nil {
				return info, err
			}
		}
	}

	// 3. Advisory header.
	if subdomain := req.Header.Get(SelectorHeader); subdomain != "" {
		info, err := r.bySubdomain(ctx, subdomain)
		if err != nil || info != nil {
			return info, err
		}
	}

	// 4. Host-derived subdomain.
	if subdomain := SubdomainFromHost(req.Host); subdomain != "" {
		info, err := r.bySubdomain(ctx, subdomain)
		if err != nil || info != nil {
			return info, err
		}
	}

	// 5. Deployment default.
	if r.defaultSubdomain != "" {
		return r.bySubdomain(ctx, r.defaultSubdomain)
	}

	return nil, nil
}

func (r *Resolver) byID(ctx context.Context, id uuid.UUID) (*Info, error) {
	rec, err := r.registry.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrTenantNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Info{TenantID: rec.TenantID, Subdomain: rec.Subdomain, DisplayName: rec.DisplayName}, nil
}

func (r *Resolver) bySubdomain(ctx context.Context, subdomain string) (*Info, error) {
	rec, err := r.registry.GetTenantBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, persistence.ErrTenantNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Info{TenantID: rec.TenantID, Subdomain: rec.Subdomain, DisplayName: rec.DisplayName}, nil
}
