package ports

import (
	"context"

	"github.com/forkful/marketplace/internal/core/domain"
)

// AccountRepository is the credential store the auth core reads from.
// Soft-deleted accounts are invisible to both finders.
type AccountRepository interface {
	// FindByID returns domain.ErrAccountNotFound when absent.
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByEmail returns domain.ErrAccountNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Create returns domain.ErrAccountExists on a duplicate email.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// Update applies the mutation, bumps updated_at and returns the fresh account.
	Update(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error)
}

// SignInGuard throttles repeated failed sign-ins per key.
type SignInGuard interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
