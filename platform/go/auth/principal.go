package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/repairhero/platform/platform/go/persistence"
)

type ctxKey string

const (
	ctxPrincipal  ctxKey = "REPAIRHERO_PRINCIPAL"
	ctxCredential ctxKey = "REPAIRHERO_API_KEY"
)

// Principal is the authenticated caller: either a persisted session user or a
// transient identity derived from a valid API key. Authorization decisions
// switch on the concrete variant; there is no dynamic method injection.
type Principal interface {
	// Superuser reports whether the principal bypasses membership and
	// permission checks. API-key principals never do.
	Superuser() bool
	// Label is a short identifier for logs and audit lines.
	Label() string

	isPrincipal()
}

// SessionPrincipal is a persisted user authenticated through a session token.
type SessionPrincipal struct {
	UserID         uuid.UUID
	Email          string
	IsSuperuser    bool
	ActiveTenantID *uuid.UUID
}

func (SessionPrincipal) isPrincipal() {}

func (p SessionPrincipal) Superuser() bool { return p.IsSuperuser }

func (p SessionPrincipal) Label() string { return "user:" + p.Email }

// APIKeyPrincipal is constructed per-request from a verified API key. Its
// tenant and role are fixed by the key and cannot be overridden by headers,
// host names or session state.
type APIKeyPrincipal struct {
	KeyID    uuid.UUID
	TenantID uuid.UUID
	RoleID   uuid.UUID
	Name     string
}

func (APIKeyPrincipal) isPrincipal() {}

func (APIKeyPrincipal) Superuser() bool { return false }

func (p APIKeyPrincipal) Label() string { return "apikey:" + p.Name }

// WithPrincipal returns a derived context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

// PrincipalFromContext extracts the principal and a boolean indicating presence.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	return p, ok
}

// WithAPIKey returns a derived context carrying the API key credential.
func WithAPIKey(ctx context.Context, key *persistence.APIKey) context.Context {
	return context.WithValue(ctx, ctxCredential, key)
}

// APIKeyFromContext extracts the API key credential when the request was
// key-authenticated.
func APIKeyFromContext(ctx context.Context) (*persistence.APIKey, bool) {
	key, ok := ctx.Value(ctxCredential).(*persistence.APIKey)
	if !ok || key == nil {
		return nil, false
	}
	return key, true
}
