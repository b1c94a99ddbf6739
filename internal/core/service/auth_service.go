package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/ports"
)

// AuthService implements sign-up, sign-in, token refresh and request
// authentication.
type AuthService struct {
	accounts ports.AccountRepository
	codec    ports.TokenCodec
	guard    ports.SignInGuard
	audit    ports.AuditRecorder
	log      zerolog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService wires the service. guard and audit may be nil.
func NewAuthService(
	accounts ports.AccountRepository,
	codec ports.TokenCodec,
	guard ports.SignInGuard,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) *AuthService {
	if audit == nil {
		audit = nopRecorder{}
	}
	return &AuthService{
		accounts: accounts,
		codec:    codec,
		guard:    guard,
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

func (s *AuthService) SignUp(ctx context.Context, in ports.SignUpInput, meta ports.RequestMeta) (*domain.Session, *domain.Account, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" || in.Name == "" {
		return nil, nil, domain.Validation("name, email and password are required", "name", "email", "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, domain.Internal(err, "hash password")
	}

	now := s.now().UTC()
	created, err := s.accounts.Create(ctx, &domain.Account{
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return nil, nil, domain.Conflict("email already registered")
		}
		return nil, nil, domain.Internal(err, "create account")
	}

	session, err := issueSession(s.codec, created)
	if err != nil {
		return nil, nil, err
	}

	s.record(domain.AuditSignUp, created, email, meta)
	return session, created, nil
}

// SignIn checks the credentials and issues a fresh session. Unknown email and
// wrong password produce the same error.
func (s *AuthService) SignIn(ctx context.Context, email, password string, meta ports.RequestMeta) (*domain.Session, *domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, domain.Validation("email and password are required", "email", "password")
	}

	if s.guard != nil {
		allowed, err := s.guard.Allow(ctx, email)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("sign-in guard unavailable, continuing")
		case !allowed:
			return nil, nil, &domain.Error{
				Kind:    domain.ErrTooManyAttempts,
				Message: "too many sign-in attempts, try again later",
			}
		}
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return nil, nil, domain.Internal(err, "find account by email")
		}
		// Burn the same bcrypt time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, nil, s.rejectSignIn(ctx, email, "", meta)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, nil, s.rejectSignIn(ctx, email, account.ID, meta)
	}

	if s.guard != nil {
		if err := s.guard.Reset(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("sign-in guard reset failed")
		}
	}

	session, err := issueSession(s.codec, account)
	if err != nil {
		return nil, nil, err
	}

	s.record(domain.AuditSignIn, account, email, meta)
	return session, account, nil
}

func (s *AuthService) rejectSignIn(ctx context.Context, email, accountID string, meta ports.RequestMeta) error {
	if s.guard != nil {
		if err := s.guard.Fail(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("sign-in guard update failed")
		}
	}
	s.audit.Record(domain.AuditEvent{
		Kind:      domain.AuditSignInFailed,
		AccountID: accountID,
		Email:     email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		At:        s.now().UTC(),
	})
	return domain.Unauthorized(domain.MsgInvalidCredentials)
}

// Refresh verifies a refresh token in two phases: the untrusted envelope
// names the account, and the key derived from that account's stored fence
// verifies the signature. Both tokens are rotated on success.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta ports.RequestMeta) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.Validation(domain.MsgMissingRefreshToken, "refresh_token")
	}

	claims, err := s.codec.DecodeRefreshTokenUnverified(refreshToken)
	if err != nil {
		return nil, domain.UnauthorizedCause(domain.MsgInvalidRefreshToken, err)
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.UnauthorizedCause(domain.MsgInvalidRefreshToken, err)
		}
		return nil, domain.Internal(err, "find account by id")
	}

	if err := s.codec.VerifyRefreshToken(refreshToken, account); err != nil {
		return nil, domain.UnauthorizedCause(domain.MsgInvalidRefreshToken, err)
	}

	session, err := issueSession(s.codec, account)
	if err != nil {
		return nil, err
	}

	s.record(domain.AuditRefresh, account, account.Email, meta)
	return session, nil
}

// Authenticate resolves the account behind an access token. Every failure
// carries the same public message; the cause is kept for logs and metrics.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.Account, error) {
	if accessToken == "" {
		return nil, domain.Unauthorized(domain.MsgNoToken)
	}

	claims, err := s.codec.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, domain.UnauthorizedCause(domain.MsgInvalidToken, err)
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.UnauthorizedCause(domain.MsgInvalidToken, err)
		}
		return nil, domain.Internal(err, "find account by id")
	}

	// Exact equality: a token minted before the last mutation is revoked.
	if account.Fence() != claims.UpdatedAt {
		return nil, domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrStaleToken)
	}

	return account, nil
}

// Logout only records the event. Sessions are stateless; clearing cookies is
// the transport's job.
func (s *AuthService) Logout(_ context.Context, account *domain.Account, meta ports.RequestMeta) {
	s.record(domain.AuditLogout, account, account.Email, meta)
}

func (s *AuthService) record(kind domain.AuditKind, account *domain.Account, email string, meta ports.RequestMeta) {
	s.audit.Record(domain.AuditEvent{
		Kind:      kind,
		AccountID: account.ID,
		Email:     email,
		ActorID:   account.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		At:        s.now().UTC(),
	})
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
		if err != nil {
			s.log.Error().Err(err).Msg("dummy hash generation failed")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// issueSession mints a new access/refresh pair for the account's current fence.
func issueSession(codec ports.TokenCodec, account *domain.Account) (*domain.Session, error) {
	access, err := codec.IssueAccessToken(account)
	if err != nil {
		return nil, domain.Internal(err, "issue access token")
	}
	refresh, err := codec.IssueRefreshToken(account)
	if err != nil {
		return nil, domain.Internal(err, "issue refresh token")
	}
	return &domain.Session{
		AccessToken:      access,
		AccessExpiresIn:  codec.AccessTTL(),
		RefreshToken:     refresh,
		RefreshExpiresIn: codec.RefreshTTL(),
	}, nil
}

type nopRecorder struct{}

func (nopRecorder) Record(domain.AuditEvent) {}
