package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/repairhero/platform/domains/apikeys/be/service"
	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/httpapi"
	platformlogging "github.com/repairhero/platform/platform/go/logging"
	platformtenant "github.com/repairhero/platform/platform/go/tenant"
)

// Permission codes guarding the key admin surface.
const (
	permViewKey   = "core.view_apikey"
	permAddKey    = "core.add_apikey"
	permDeleteKey = "core.delete_apikey"
)

// PermissionChecker decides whether a principal holds a permission within a tenant.
type PermissionChecker interface {
	HasPermission(ctx context.Context, principal platformauth.Principal, code string, tenantID uuid.UUID) (bool, error)
}

// Handler exposes API key administration. Every route requires an
// authenticated principal, a resolved tenant and the matching permission.
type Handler struct {
	svc    service.Service
	authz  PermissionChecker
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, authz PermissionChecker, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("api keys service is required")
	}
	if authz == nil {
		panic("permission checker is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, authz: authz, logger: logger}
}

// Routes mounts the API key endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{keyID}", h.revoke)
}

type keyResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Prefix        string     `json:"prefix"`
	Role          string     `json:"role"`
	IntegrationID *string    `json:"integrationId,omitempty"`
	IsActive      bool       `json:"isActive"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt    *time.Time `json:"lastUsedAt,omitempty"`
	LastUsedIP    *string    `json:"lastUsedIp,omitempty"`
	UsageCount    int64      `json:"usageCount"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type createdKeyResponse struct {
	keyResponse
	// Key carries the plaintext secret. It appears in this response only and
	// can never be retrieved again.
	Key     string `json:"key"`
	Warning string `json:"warning"`
}

type createKeyRequest struct {
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Environment   string  `json:"environment"`
	ExpiresAt     *string `json:"expiresAt"`
	Notes         string  `json:"notes"`
	IntegrationID *string `json:"integrationId"`
}

const revealOnceWarning = "store this key now; it cannot be shown again"

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authorize(w, r, permViewKey)
	if !ok {
		return
	}

	keys, err := h.svc.List(r.Context(), tenantID)
	if err != nil {
		h.internalError(w, r, "list api keys", err)
		return
	}

	items := make([]keyResponse, 0, len(keys))
	for _, key := range keys {
		items = append(items, toKeyResponse(key))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authorize(w, r, permAddKey)
	if !ok {
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	input := service.CreateInput{
		Name:        req.Name,
		RoleName:    req.Role,
		Environment: req.Environment,
		Notes:       req.Notes,
	}

	if req.ExpiresAt != nil && strings.TrimSpace(*req.ExpiresAt) != "" {
		expires, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			httpapi.WriteValidationError(w, map[string][]string{
				"expiresAt": {"expiresAt must be an RFC 3339 timestamp"},
			})
			return
		}
		input.ExpiresAt = &expires
	}

	if req.IntegrationID != nil && strings.TrimSpace(*req.IntegrationID) != "" {
		integrationID, err := uuid.Parse(*req.IntegrationID)
		if err != nil {
			httpapi.WriteValidationError(w, map[string][]string{
				"integrationId": {"integrationId must be a UUID"},
			})
			return
		}
		input.IntegrationID = &integrationID
	}

	if principal, ok := platformauth.PrincipalFromContext(r.Context()); ok {
		if sp, isSession := principal.(platformauth.SessionPrincipal); isSession {
			userID := sp.UserID
			input.CreatedBy = &userID
		}
	}

	created, err := h.svc.Create(r.Context(), tenantID, input)
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			httpapi.WriteValidationError(w, validationErr.Fields)
		case errors.Is(err, service.ErrRoleNotFound):
			httpapi.WriteValidationError(w, map[string][]string{
				"role": {"role does not exist for this tenant"},
			})
		default:
			h.internalError(w, r, "create api key", err)
		}
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, createdKeyResponse{
		keyResponse: toKeyResponse(created.Key),
		Key:         created.Plaintext,
		Warning:     revealOnceWarning,
	})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authorize(w, r, permDeleteKey)
	if !ok {
		return
	}

	keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "api key not found")
		return
	}

	if err := h.svc.Revoke(r.Context(), tenantID, keyID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			httpapi.WriteError(w, http.StatusNotFound, "not_found", "api key not found")
			return
		}
		h.internalError(w, r, "revoke api key", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorize enforces the common preconditions of every key admin route:
// an authenticated principal, a resolved tenant and the given permission.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return uuid.Nil, false
	}

	info, ok := platformtenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusBadRequest, "tenant_required", "tenant not resolved")
		return uuid.Nil, false
	}

	allowed, err := h.authz.HasPermission(r.Context(), principal, code, info.TenantID)
	if err != nil {
		h.internalError(w, r, "check permission", err)
		return uuid.Nil, false
	}
	if !allowed {
		httpapi.WriteError(w, http.StatusForbidden, "forbidden", "permission denied")
		return uuid.Nil, false
	}
	return info.TenantID, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	platformlogging.FromRequest(r, h.logger).Error(op+" failed", zap.Error(err))
	httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func toKeyResponse(key service.Key) keyResponse {
	resp := keyResponse{
		ID:         key.ID.String(),
		Name:       key.Name,
		Prefix:     key.Prefix,
		Role:       key.RoleName,
		IsActive:   key.IsActive,
		ExpiresAt:  key.ExpiresAt,
		LastUsedAt: key.LastUsedAt,
		LastUsedIP: key.LastUsedIP,
		UsageCount: key.UsageCount,
		Notes:      key.Notes,
		CreatedAt:  key.CreatedAt,
	}
	if key.IntegrationID != nil {
		id := key.IntegrationID.String()
		resp.IntegrationID = &id
	}
	return resp
}
