package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/repairhero/platform/platform/go/httpapi"
	"github.com/repairhero/platform/platform/go/logging"
	"github.com/repairhero/platform/platform/go/persistence"
)

// Generic rejection messages. Unknown, inactive and wrong-secret keys all get
// the same message so callers cannot enumerate prefixes.
const (
	msgInvalidKey     = "invalid or inactive API key"
	msgExpiredKey     = "API key has expired"
	msgInvalidSession = "invalid session token"
)

// KeyStore is the slice of the API key store the authenticator needs.
// Implemented by persistence.APIKeyStore.
type KeyStore interface {
	FindActiveByPrefix(ctx context.Context, prefix string) ([]persistence.APIKey, error)
	RecordUsage(ctx context.Context, keyID uuid.UUID, ip *string, now time.Time) error
}

// UserLookup loads the persisted user behind a verified session token.
// Implemented by persistence.UserStore.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (persistence.User, error)
}

// Authenticator resolves the caller's credential from the Authorization
// header: a Stripe-style API key (sk_...) or a session JWT. Requests without
// a well-formed Bearer header pass through anonymously; tenant resolution and
// the endpoints decide what anonymous callers may do.
type Authenticator struct {
	keys    KeyStore
	users   UserLookup
	tokens  *TokenIssuer
	logger  *zap.Logger
	failure func(reason string)
}

// NewAuthenticator constructs the middleware. The failure callback feeds the
// auth-failure metric and may be nil.
func NewAuthenticator(keys KeyStore, users UserLookup, tokens *TokenIssuer, logger *zap.Logger, failure func(reason string)) *Authenticator {
	if keys == nil {
		panic("api key store is required")
	}
	if users == nil {
		panic("user store is required")
	}
	if tokens == nil {
		panic("token issuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if failure == nil {
		failure = func(string) {}
	}
	return &Authenticator{keys: keys, users: users, tokens: tokens, logger: logger, failure: failure}
}

// Middleware is the credential resolver stage of the request pipeline.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Fields(r.Header.Get("Authorization"))
		if len(parts) != 2 || parts[0] != "Bearer" {
			// Absent or malformed header: not an error, other mechanisms
			// (or anonymous access) take over.
			next.ServeHTTP(w, r)
			return
		}

		token := parts[1]
		if strings.HasPrefix(token, "sk_") {
			a.serveAPIKey(w, r, next, token)
			return
		}
		a.serveSession(w, r, next, token)
	})
}

func (a *Authenticator) serveAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	logger := logging.FromRequest(r, a.logger)

	if len(token) < PrefixLength {
		a.failure("malformed_key")
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", msgInvalidKey)
		return
	}

	candidates, err := a.keys.FindActiveByPrefix(r.Context(), token[:PrefixLength])
	if err != nil {
		logger.Error("api key lookup failed", zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	// Expected cardinality is one, but prefix collisions are possible; the
	// bcrypt comparison is the only authentication step.
	var key *persistence.APIKey
	for i := range candidates {
		if VerifyKey(token, candidates[i].KeyHash) {
			key = &candidates[i]
			break
		}
	}
	if key == nil {
		a.failure("unknown_key")
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", msgInvalidKey)
		return
	}

	now := time.Now().UTC()
	if !key.IsValid(now) {
		a.failure("expired_key")
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", msgExpiredKey)
		return
	}

	// Usage tracking is best-effort audit data; a failed write never aborts
	// an otherwise successful authentication.
	ip := ClientIP(r)
	if err := a.keys.RecordUsage(r.Context(), key.KeyID, ip, now); err != nil {
		logger.Warn("api key usage tracking failed",
			zap.String("key_prefix", key.Prefix),
			zap.Error(err))
	}

	principal := APIKeyPrincipal{
		KeyID:    key.KeyID,
		TenantID: key.TenantID,
		RoleID:   key.RoleID,
		Name:     key.Name,
	}

	ctx := WithPrincipal(r.Context(), principal)
	ctx = WithAPIKey(ctx, key)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (a *Authenticator) serveSession(w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	logger := logging.FromRequest(r, a.logger)

	userID, _, err := a.tokens.Verify(token)
	if err != nil {
		a.failure("invalid_session")
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", msgInvalidSession)
		return
	}

	user, err := a.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			a.failure("unknown_user")
			httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", msgInvalidSession)
			return
		}
		logger.Error("session user lookup failed", zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	principal := SessionPrincipal{
		UserID:         user.UserID,
		Email:          user.Email,
		IsSuperuser:    user.IsSuperuser,
		ActiveTenantID: user.ActiveTenantID,
	}
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
}

// ClientIP extracts the caller address for usage audit: the first entry of
// X-Forwarded-For when present, otherwise the direct connection address. It is
// never used for authorization decisions.
func ClientIP(r *http.Request) *string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return &first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return nil
		}
		addr := r.RemoteAddr
		return &addr
	}
	return &host
}
