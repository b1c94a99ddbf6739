package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/core/domain"
)

type stubAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*domain.Account, error)
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, token string) (*domain.Account, error) {
	return s.authenticateFn(ctx, token)
}

// acceptOnly authenticates exactly one token value.
func acceptOnly(want string, account *domain.Account) *stubAuthenticator {
	return &stubAuthenticator{
		authenticateFn: func(_ context.Context, token string) (*domain.Account, error) {
			if token == "" {
				return nil, domain.Unauthorized(domain.MsgNoToken)
			}
			if token != want {
				return nil, domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrTokenInvalid)
			}
			return account, nil
		},
	}
}

func runAuth(t *testing.T, authn Authenticator, req *http.Request) (*httptest.ResponseRecorder, *domain.Account, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *domain.Account
	handler := Auth(authn, zerolog.Nop())(func(c echo.Context) error {
		got, _ = domain.AccountFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	return rec, got, err
}

func assertUnauthorized(t *testing.T, err error, msg string) {
	t.Helper()
	de, ok := domain.AsError(err)
	if !ok || !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if de.Message != msg {
		t.Fatalf("expected message %q, got %q", msg, de.Message)
	}
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	account := &domain.Account{ID: "u1"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")

	rec, got, err := runAuth(t, acceptOnly("good", account), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("account not attached to context: %+v", got)
	}
}

func TestAuthMiddleware_CookieFallback(t *testing.T) {
	account := &domain.Account{ID: "u1"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})

	_, got, err := runAuth(t, acceptOnly("good", account), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected account from cookie token")
	}
}

func TestAuthMiddleware_HeaderWinsOverCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})

	_, _, err := runAuth(t, acceptOnly("good", &domain.Account{ID: "u1"}), req)
	assertUnauthorized(t, err, domain.MsgInvalidToken)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, got, err := runAuth(t, acceptOnly("good", &domain.Account{ID: "u1"}), req)
	assertUnauthorized(t, err, domain.MsgNoToken)
	if got != nil {
		t.Fatalf("next must not run")
	}
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	for _, header := range []string{"good", "Basic good", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)

		_, _, err := runAuth(t, acceptOnly("good", &domain.Account{ID: "u1"}), req)
		assertUnauthorized(t, err, domain.MsgInvalidToken)
	}
}

func TestAuthMiddleware_InternalErrorPassesThrough(t *testing.T) {
	boom := domain.Internal(errors.New("db down"), "find account by id")
	authn := &stubAuthenticator{authenticateFn: func(context.Context, string) (*domain.Account, error) {
		return nil, boom
	}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")

	_, _, err := runAuth(t, authn, req)
	if !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.Unauthorized(domain.MsgNoToken), "no_token"},
		{domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrTokenInvalid), "invalid_token"},
		{domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrTokenExpired), "expired"},
		{domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrAccountNotFound), "account_not_found"},
		{domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrStaleToken), "stale_token"},
		{domain.Unauthorized(domain.MsgNotAuthorized), "not_admin"},
	}
	for _, tc := range tests {
		if got := failureReason(tc.err); got != tc.want {
			t.Fatalf("failureReason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
