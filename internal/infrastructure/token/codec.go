// Package token implements the access/refresh token codec on HS256 JWTs.
//
// Access tokens are signed with a process-wide secret and carry the account
// fence. Refresh tokens are signed with the refresh secret concatenated with
// the account fence, so any account mutation silently invalidates every
// refresh token issued before it.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/forkful/marketplace/internal/core/domain"
)

const (
	AudienceAccess  = "marketplace:access"
	AudienceRefresh = "marketplace:refresh"

	DefaultAccessTTL  = 3600 * time.Second
	DefaultRefreshTTL = 86400 * time.Second
)

// Config holds the secrets and lifetimes. It is read-only after startup.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type accessClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"id"`
	UpdatedAt int64  `json:"updatedAt"`
}

type refreshClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"id"`
}

// Codec implements ports.TokenCodec.
type Codec struct {
	cfg Config
	now func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.cfg.AccessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// IssueAccessToken encodes {id, updatedAt} signed with the access secret.
func (c *Codec) IssueAccessToken(account *domain.Account) (string, error) {
	now := c.now()
	claims := accessClaims{
		RegisteredClaims: c.registered(account.ID, AudienceAccess, now, c.cfg.AccessTTL),
		AccountID:        account.ID,
		UpdatedAt:        account.Fence(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken encodes {id} signed with the salted refresh key.
func (c *Codec) IssueRefreshToken(account *domain.Account) (string, error) {
	now := c.now()
	claims := refreshClaims{
		RegisteredClaims: c.registered(account.ID, AudienceRefresh, now, c.cfg.RefreshTTL),
		AccountID:        account.ID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshKey(account))
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (c *Codec) VerifyAccessToken(raw string) (domain.AccessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, staticKey([]byte(c.cfg.AccessSecret)), c.parserOptions(AudienceAccess)...)
	if err != nil {
		return domain.AccessClaims{}, classify(err)
	}
	if claims.AccountID == "" {
		return domain.AccessClaims{}, fmt.Errorf("%w: missing account id", domain.ErrTokenInvalid)
	}

	return domain.AccessClaims{
		AccountID: claims.AccountID,
		UpdatedAt: claims.UpdatedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// DecodeRefreshTokenUnverified parses the envelope only. The signature is
// not checked because the key depends on the account it names.
func (c *Codec) DecodeRefreshTokenUnverified(raw string) (domain.RefreshClaims, error) {
	claims := &refreshClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return domain.RefreshClaims{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if claims.AccountID == "" {
		return domain.RefreshClaims{}, fmt.Errorf("%w: missing account id", domain.ErrTokenInvalid)
	}

	out := domain.RefreshClaims{AccountID: claims.AccountID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// VerifyRefreshToken re-derives the salted key from the account loaded from
// trusted storage and checks signature, expiry and subject.
func (c *Codec) VerifyRefreshToken(raw string, account *domain.Account) error {
	claims := &refreshClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, staticKey(c.refreshKey(account)), c.parserOptions(AudienceRefresh)...)
	if err != nil {
		return classify(err)
	}
	if claims.AccountID != account.ID {
		return fmt.Errorf("%w: account mismatch", domain.ErrTokenInvalid)
	}
	return nil
}

// refreshKey is REFRESH_SECRET + decimal epoch millis of account.UpdatedAt.
func (c *Codec) refreshKey(account *domain.Account) []byte {
	return []byte(c.cfg.RefreshSecret + strconv.FormatInt(account.Fence(), 10))
}

func (c *Codec) registered(subject, audience string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) parserOptions(audience string) []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(c.now),
	}
}

func staticKey(key []byte) jwt.Keyfunc {
	return func(*jwt.Token) (interface{}, error) {
		return key, nil
	}
}

func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
}
