package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/ports"
)

// currentAccount returns the account attached by the Auth middleware. Its
// absence means the route was mounted without the middleware, which is
// still reported as unauthenticated.
func currentAccount(c echo.Context) (*domain.Account, error) {
	account, ok := domain.AccountFromContext(c.Request().Context())
	if !ok {
		return nil, domain.Unauthorized(domain.MsgNoToken)
	}
	return account, nil
}

func requestMeta(c echo.Context) ports.RequestMeta {
	return ports.RequestMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

// bindAndValidate decodes the JSON body into req and runs the struct tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Validation("invalid payload")
	}
	return c.Validate(req)
}
