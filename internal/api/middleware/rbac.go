package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/core/domain"
)

// RequireRole gates a route on the account attached by Auth. Insufficient
// role is reported as 401, like any other authorization failure.
func RequireRole(role domain.Role, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			account, ok := domain.AccountFromContext(c.Request().Context())
			if !ok {
				return reject(c, log, domain.Unauthorized(domain.MsgNoToken))
			}
			if !account.Satisfies(role) {
				return reject(c, log, domain.Unauthorized(domain.MsgNotAuthorized))
			}
			return next(c)
		}
	}
}
