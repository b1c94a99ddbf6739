package ports

import (
	"context"

	"github.com/forkful/marketplace/internal/core/domain"
)

// RequestMeta is the client information attached to audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService drives the token lifecycle.
type AuthService interface {
	SignUp(ctx context.Context, in SignUpInput, meta RequestMeta) (*domain.Session, *domain.Account, error)
	SignIn(ctx context.Context, email, password string, meta RequestMeta) (*domain.Session, *domain.Account, error)
	Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*domain.Session, error)
	// Authenticate resolves the account behind an access token or fails
	// with domain.ErrUnauthorized.
	Authenticate(ctx context.Context, accessToken string) (*domain.Account, error)
	Logout(ctx context.Context, account *domain.Account, meta RequestMeta)
}

// SelfUpdateInput is a partial profile change requested by the owner.
type SelfUpdateInput struct {
	Name     *string
	Email    *string
	Password *string
}

// AdminUpdateInput is a partial change applied by an admin to any account.
type AdminUpdateInput struct {
	Name  *string
	Email *string
	Admin *bool
}

// AccountService serves the account endpoints.
type AccountService interface {
	Get(ctx context.Context, id string) (*domain.Account, error)
	// UpdateSelf bumps the fence and therefore returns a fresh session.
	UpdateSelf(ctx context.Context, account *domain.Account, in SelfUpdateInput, meta RequestMeta) (*domain.Session, *domain.Account, error)
	UpdateByAdmin(ctx context.Context, actor *domain.Account, id string, in AdminUpdateInput, meta RequestMeta) (*domain.Account, error)
}
