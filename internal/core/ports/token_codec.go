package ports

import (
	"time"

	"github.com/forkful/marketplace/internal/core/domain"
)

// TokenCodec creates and verifies signed access and refresh tokens.
type TokenCodec interface {
	IssueAccessToken(account *domain.Account) (string, error)
	IssueRefreshToken(account *domain.Account) (string, error)
	// VerifyAccessToken fails with domain.ErrTokenInvalid or domain.ErrTokenExpired.
	VerifyAccessToken(token string) (domain.AccessClaims, error)
	// DecodeRefreshTokenUnverified reads the claimed account id without
	// checking the signature. The result must only drive the account lookup.
	DecodeRefreshTokenUnverified(token string) (domain.RefreshClaims, error)
	// VerifyRefreshToken checks the signature with the key salted by the
	// account's current fence.
	VerifyRefreshToken(token string, account *domain.Account) error

	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}
