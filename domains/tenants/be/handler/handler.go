package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/repairhero/platform/domains/tenants/be/service"
	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/httpapi"
	platformlogging "github.com/repairhero/platform/platform/go/logging"
)

// Handler exposes the tenant registry. Creating and listing tenants is an
// operator surface: superuser only.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the tenant registry endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{subdomain}", h.get)
}

type tenantResponse struct {
	ID          string    `json:"id"`
	Subdomain   string    `json:"subdomain"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type createTenantRequest struct {
	Subdomain   string `json:"subdomain"`
	DisplayName string `json:"displayName"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if !requireSuperuser(w, r) {
		return
	}

	tenants, err := h.svc.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list tenants", err)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		items = append(items, toTenantResponse(t))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if !requireSuperuser(w, r) {
		return
	}

	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		Subdomain:   req.Subdomain,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			httpapi.WriteValidationError(w, validationErr.Fields)
		case errors.Is(err, service.ErrConflict):
			httpapi.WriteError(w, http.StatusConflict, "conflict", "tenant subdomain already exists")
		default:
			h.internalError(w, r, "create tenant", err)
		}
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, toTenantResponse(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if !requireSuperuser(w, r) {
		return
	}

	found, err := h.svc.GetBySubdomain(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			httpapi.WriteError(w, http.StatusNotFound, "not_found", "tenant not found")
			return
		}
		h.internalError(w, r, "get tenant", err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, toTenantResponse(found))
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	platformlogging.FromRequest(r, h.logger).Error(op+" failed", zap.Error(err))
	httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func requireSuperuser(w http.ResponseWriter, r *http.Request) bool {
	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return false
	}
	if !principal.Superuser() {
		httpapi.WriteError(w, http.StatusForbidden, "forbidden", "superuser access required")
		return false
	}
	return true
}

func toTenantResponse(t service.Tenant) tenantResponse {
	return tenantResponse{
		ID:          t.ID.String(),
		Subdomain:   t.Subdomain,
		DisplayName: t.DisplayName,
		CreatedAt:   t.CreatedAt,
	}
}
