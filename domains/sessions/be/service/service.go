package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
)

// Domain sentinel errors. ErrInvalidCredentials deliberately covers both
// unknown emails and wrong passwords so login failures are indistinguishable.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotMember          = errors.New("user is not a member of the tenant")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrUserNotFound       = errors.New("user not found")
)

// TenantSummary is the session view of a tenant the user can act in.
type TenantSummary struct {
	ID          uuid.UUID
	Subdomain   string
	DisplayName string
}

// Session describes an authenticated browser or CLI session.
type Session struct {
	UserID       uuid.UUID
	Email        string
	FullName     string
	IsSuperuser  bool
	ActiveTenant *TenantSummary
	Tenants      []TenantSummary
}

// LoginResult carries the freshly issued token together with the session view.
type LoginResult struct {
	Token   string
	Session Session
}

// Repository abstracts the persistence needed for session management.
type Repository interface {
	UserByEmail(ctx context.Context, email string) (persistence.User, error)
	UserByID(ctx context.Context, userID uuid.UUID) (persistence.User, error)
	SetActiveTenant(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID) error
	IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
	MemberTenantIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	TenantByID(ctx context.Context, tenantID uuid.UUID) (persistence.Tenant, error)
	TenantBySubdomain(ctx context.Context, subdomain string) (persistence.Tenant, error)
	AllTenants(ctx context.Context) ([]persistence.Tenant, error)
}

// Service defines session operations: password login, session introspection
// and active-tenant selection. Logout is stateless (tokens are not stored) so
// it lives entirely in the transport layer.
type Service interface {
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Describe(ctx context.Context, userID uuid.UUID) (Session, error)
	SelectTenant(ctx context.Context, userID uuid.UUID, subdomain string) (Session, error)
}

type service struct {
	repo   Repository
	tokens *platformauth.TokenIssuer
}

// New constructs a sessions Service.
func New(r Repository, tokens *platformauth.TokenIssuer) Service {
	if r == nil {
		panic("sessions repository is required")
	}
	if tokens == nil {
		panic("token issuer is required")
	}
	return &service{repo: r, tokens: tokens}
}

func (s *service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !platformauth.VerifyPassword(password, user.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.UserID, user.Email, time.Now().UTC())
	if err != nil {
		return LoginResult{}, err
	}

	session, err := s.buildSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, Session: session}, nil
}

func (s *service) Describe(ctx context.Context, userID uuid.UUID) (Session, error) {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, err
	}
	return s.buildSession(ctx, user)
}

// SelectTenant records the user's active tenant. Non-superusers must hold a
// role in the target tenant; superusers may select any tenant.
func (s *service) SelectTenant(ctx context.Context, userID uuid.UUID, subdomain string) (Session, error) {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, err
	}

	target, err := s.repo.TenantBySubdomain(ctx, strings.ToLower(strings.TrimSpace(subdomain)))
	if err != nil {
		if errors.Is(err, persistence.ErrTenantNotFound) {
			return Session{}, ErrTenantNotFound
		}
		return Session{}, err
	}

	if !user.IsSuperuser {
		member, err := s.repo.IsMember(ctx, user.UserID, target.TenantID)
		if err != nil {
			return Session{}, err
		}
		if !member {
			return Session{}, ErrNotMember
		}
	}

	tenantID := target.TenantID
	if err := s.repo.SetActiveTenant(ctx, user.UserID, &tenantID); err != nil {
		return Session{}, err
	}

	user.ActiveTenantID = &tenantID
	return s.buildSession(ctx, user)
}

func (s *service) buildSession(ctx context.Context, user persistence.User) (Session, error) {
	session := Session{
		UserID:      user.UserID,
		Email:       user.Email,
		FullName:    user.FullName,
		IsSuperuser: user.IsSuperuser,
	}

	if user.ActiveTenantID != nil {
		tenant, err := s.repo.TenantByID(ctx, *user.ActiveTenantID)
		if err == nil {
			summary := toSummary(tenant)
			session.ActiveTenant = &summary
		} else if !errors.Is(err, persistence.ErrTenantNotFound) {
			return Session{}, err
		}
	}

	tenants, err := s.memberTenants(ctx, user)
	if err != nil {
		return Session{}, err
	}
	session.Tenants = tenants
	return session, nil
}

func (s *service) memberTenants(ctx context.Context, user persistence.User) ([]TenantSummary, error) {
	if user.IsSuperuser {
		all, err := s.repo.AllTenants(ctx)
		if err != nil {
			return nil, err
		}
		summaries := make([]TenantSummary, 0, len(all))
		for _, t := range all {
			summaries = append(summaries, toSummary(t))
		}
		return summaries, nil
	}

	ids, err := s.repo.MemberTenantIDs(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	summaries := make([]TenantSummary, 0, len(ids))
	for _, id := range ids {
		tenant, err := s.repo.TenantByID(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrTenantNotFound) {
				continue
			}
			return nil, err
		}
		summaries = append(summaries, toSummary(tenant))
	}
	return summaries, nil
}

func toSummary(t persistence.Tenant) TenantSummary {
	return TenantSummary{
		ID:          t.TenantID,
		Subdomain:   t.Subdomain,
		DisplayName: t.DisplayName,
	}
}
