package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/repairhero/platform/domains/sessions/be/service"
	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/httpapi"
	platformlogging "github.com/repairhero/platform/platform/go/logging"
)

// Handler exposes the session endpoints. These are mounted on the
// tenant-optional path list: login and logout must work before any tenant is
// resolvable.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("sessions service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the session endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/session", h.session)
	r.Put("/session/tenant", h.selectTenant)
	r.Get("/csrf", h.csrf)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type selectTenantRequest struct {
	Subdomain string `json:"subdomain"`
}

type tenantSummaryResponse struct {
	ID          string `json:"id"`
	Subdomain   string `json:"subdomain"`
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	UserID       string                  `json:"userId"`
	Email        string                  `json:"email"`
	FullName     string                  `json:"fullName"`
	IsSuperuser  bool                    `json:"isSuperuser"`
	ActiveTenant *tenantSummaryResponse  `json:"activeTenant,omitempty"`
	Tenants      []tenantSummaryResponse `json:"tenants"`
}

type loginResponse struct {
	Token   string          `json:"token"`
	Session sessionResponse `json:"session"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpapi.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.internalError(w, r, "login", err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, loginResponse{
		Token:   result.Token,
		Session: toSessionResponse(result.Session),
	})
}

// logout is stateless: tokens are not stored server side, so the client just
// discards its copy. The endpoint exists so clients have a uniform flow.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}

	current, err := h.svc.Describe(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid session token")
			return
		}
		h.internalError(w, r, "describe session", err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, toSessionResponse(current))
}

func (h *Handler) selectTenant(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req selectTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	updated, err := h.svc.SelectTenant(r.Context(), principal.UserID, req.Subdomain)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantNotFound):
			httpapi.WriteError(w, http.StatusNotFound, "not_found", "tenant not found")
		case errors.Is(err, service.ErrNotMember):
			httpapi.WriteError(w, http.StatusForbidden, "forbidden", "you do not have access to this tenant")
		case errors.Is(err, service.ErrUserNotFound):
			httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid session token")
		default:
			h.internalError(w, r, "select tenant", err)
		}
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, toSessionResponse(updated))
}

// csrf hands browser clients an opaque token for double-submit protection.
// The API itself is token-authenticated, so the value is not validated server
// side; the endpoint keeps the browser bootstrap sequence working.
func (h *Handler) csrf(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		h.internalError(w, r, "generate csrf token", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": hex.EncodeToString(buf)})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	platformlogging.FromRequest(r, h.logger).Error(op+" failed", zap.Error(err))
	httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func requireSession(w http.ResponseWriter, r *http.Request) (platformauth.SessionPrincipal, bool) {
	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return platformauth.SessionPrincipal{}, false
	}
	session, ok := principal.(platformauth.SessionPrincipal)
	if !ok {
		httpapi.WriteError(w, http.StatusForbidden, "forbidden", "session authentication required")
		return platformauth.SessionPrincipal{}, false
	}
	return session, true
}

func toSessionResponse(s service.Session) sessionResponse {
	resp := sessionResponse{
		UserID:      s.UserID.String(),
		Email:       s.Email,
		FullName:    s.FullName,
		IsSuperuser: s.IsSuperuser,
		Tenants:     make([]tenantSummaryResponse, 0, len(s.Tenants)),
	}
	if s.ActiveTenant != nil {
		summary := toTenantSummary(*s.ActiveTenant)
		resp.ActiveTenant = &summary
	}
	for _, t := range s.Tenants {
		resp.Tenants = append(resp.Tenants, toTenantSummary(t))
	}
	return resp
}

func toTenantSummary(t service.TenantSummary) tenantSummaryResponse {
	return tenantSummaryResponse{
		ID:          t.ID.String(),
		Subdomain:   t.Subdomain,
		DisplayName: t.DisplayName,
	}
}
