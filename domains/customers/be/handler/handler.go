package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/repairhero/platform/domains/customers/be/service"
	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/httpapi"
	platformlogging "github.com/repairhero/platform/platform/go/logging"
	platformtenant "github.com/repairhero/platform/platform/go/tenant"
)

// Permission codes guarding customer mutations. Reads are tenant-scoped but
// not permission-gated.
const (
	permAddCustomer    = "customers.add_customer"
	permChangeCustomer = "customers.change_customer"
	permDeleteCustomer = "customers.delete_customer"
)

// PermissionChecker decides whether a principal holds a permission within a tenant.
type PermissionChecker interface {
	HasPermission(ctx context.Context, principal platformauth.Principal, code string, tenantID uuid.UUID) (bool, error)
}

// Handler exposes the customers resource. List and get rely on tenant
// scoping alone: with no tenant resolved they return empty or not found,
// never data from another tenant.
type Handler struct {
	svc    service.Service
	authz  PermissionChecker
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, authz PermissionChecker, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("customers service is required")
	}
	if authz == nil {
		panic("permission checker is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, authz: authz, logger: logger}
}

// Routes mounts the customer endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{customerID}", h.get)
	r.Put("/{customerID}", h.update)
	r.Delete("/{customerID}", h.remove)
}

type customerResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type createCustomerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Notes    string `json:"notes"`
}

type updateCustomerRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Notes    *string `json:"notes"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.List(r.Context(), tenantID(r))
	if err != nil {
		h.internalError(w, r, "list customers", err)
		return
	}

	items := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		items = append(items, toCustomerResponse(c))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "customer not found")
		return
	}

	found, err := h.svc.Get(r.Context(), tenantID(r), customerID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			httpapi.WriteError(w, http.StatusNotFound, "not_found", "customer not found")
			return
		}
		h.internalError(w, r, "get customer", err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, toCustomerResponse(found))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tid, ok := h.authorizeMutation(w, r, permAddCustomer)
	if !ok {
		return
	}

	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	created, err := h.svc.Create(r.Context(), tid, service.CreateInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, "create customer", err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, toCustomerResponse(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tid, ok := h.authorizeMutation(w, r, permChangeCustomer)
	if !ok {
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "customer not found")
		return
	}

	var req updateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	updated, err := h.svc.Update(r.Context(), tid, customerID, service.UpdateInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, "update customer", err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, toCustomerResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	tid, ok := h.authorizeMutation(w, r, permDeleteCustomer)
	if !ok {
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "customer not found")
		return
	}

	if err := h.svc.Delete(r.Context(), tid, customerID); err != nil {
		h.writeServiceError(w, r, "delete customer", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorizeMutation enforces the write preconditions: an authenticated
// principal, a resolved tenant and the given permission.
func (h *Handler) authorizeMutation(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
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

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httpapi.WriteValidationError(w, validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "customer not found")
	case errors.Is(err, service.ErrTenantRequired):
		httpapi.WriteError(w, http.StatusBadRequest, "tenant_required", "tenant not resolved")
	default:
		h.internalError(w, r, op, err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	platformlogging.FromRequest(r, h.logger).Error(op+" failed", zap.Error(err))
	httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func tenantID(r *http.Request) uuid.UUID {
	if info, ok := platformtenant.FromContext(r.Context()); ok {
		return info.TenantID
	}
	return uuid.Nil
}

func toCustomerResponse(c service.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID.String(),
		FullName:  c.FullName,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
