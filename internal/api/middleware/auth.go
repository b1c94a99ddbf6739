package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/api/metrics"
	"github.com/forkful/marketplace/internal/core/domain"
)

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "access_token"

// Authenticator resolves the account behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Account, error)
}

// Auth verifies the caller's access token and attaches the resolved account
// to the request context. The Authorization header wins over the cookie.
func Auth(authn Authenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			raw, err := bearerToken(c)
			if err != nil {
				return reject(c, log, err)
			}

			account, err := authn.Authenticate(req.Context(), raw)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					return err
				}
				return reject(c, log, err)
			}

			c.SetRequest(req.WithContext(domain.ContextWithAccount(req.Context(), account)))
			return next(c)
		}
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>", falling
// back to the access_token cookie. An empty result means no token was sent.
func bearerToken(c echo.Context) (string, error) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return "", domain.Unauthorized(domain.MsgInvalidToken)
		}
		return strings.TrimSpace(token), nil
	}

	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", nil
}

func reject(c echo.Context, log zerolog.Logger, err error) error {
	reason := failureReason(err)
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	log.Debug().
		Err(err).
		Str("reason", reason).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("request rejected")
	return err
}

// failureReason names the internal cause of an authentication failure. It is
// never sent to the client.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStaleToken):
		return "stale_token"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid_token"
	}
	if de, ok := domain.AsError(err); ok {
		switch de.Message {
		case domain.MsgNoToken:
			return "no_token"
		case domain.MsgNotAuthorized:
			return "not_admin"
		}
	}
	return "invalid_token"
}
