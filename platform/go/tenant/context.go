// Package tenant resolves and carries the active tenant for a request. The
// tenant is the isolation boundary: every tenant-owned query downstream is
// constrained to the tenant attached here, and requests without one read
// empty and may not write.
package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Info captures the resolved tenant for a request. It is attached to the
// context by middleware once resolution succeeds.
type Info struct {
	TenantID    uuid.UUID
	Subdomain   string
	DisplayName string
}

type ctxKey string

const infoKey ctxKey = "REPAIRHERO_TENANT"

// WithInfo returns a derived context carrying the tenant Info.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// FromContext extracts the tenant Info and a boolean indicating presence.
func FromContext(ctx context.Context) (Info, bool) {
	v := ctx.Value(infoKey)
	if v == nil {
		return Info{}, false
	}

	info, ok := v.(Info)
	return info, ok
}
