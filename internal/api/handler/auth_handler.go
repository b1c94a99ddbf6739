package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/forkful/marketplace/internal/api/metrics"
	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignUp creates an account and opens a session for it.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Account details"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, _, err := h.authService.SignUp(c.Request().Context(), ports.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, requestMeta(c))
	if err != nil {
		return err
	}

	setSessionCookies(c, session)
	return c.JSON(http.StatusOK, toAuthResponse(session))
}

// SignIn exchanges credentials for an access/refresh token pair.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      429   {object}  errorBody
// @Router       /signin [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, _, err := h.authService.SignIn(c.Request().Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTooManyAttempts):
			metrics.SignInsTotal.WithLabelValues("throttled").Inc()
		case errors.Is(err, domain.ErrUnauthorized):
			metrics.SignInsTotal.WithLabelValues("invalid_credentials").Inc()
		}
		return err
	}

	metrics.SignInsTotal.WithLabelValues("success").Inc()
	setSessionCookies(c, session)
	return c.JSON(http.StatusOK, toAuthResponse(session))
}

// Refresh rotates both tokens. The refresh token is read from the cookie,
// or from the body for non-cookie clients.
//
// @Summary      Refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  false  "Refresh token when no cookie is sent"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Router       /refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(refreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req refreshRequest
		if err := c.Bind(&req); err != nil {
			return domain.Validation("invalid payload")
		}
		token = req.RefreshToken
	}

	session, err := h.authService.Refresh(c.Request().Context(), token, requestMeta(c))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			metrics.RefreshesTotal.WithLabelValues("rejected").Inc()
		}
		return err
	}

	metrics.RefreshesTotal.WithLabelValues("success").Inc()
	setSessionCookies(c, session)
	return c.JSON(http.StatusOK, toAuthResponse(session))
}

// Logout clears both session cookies.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse
// @Failure      401  {object}  errorBody
// @Router       /logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	h.authService.Logout(c.Request().Context(), account, requestMeta(c))
	clearSessionCookies(c)
	return c.JSON(http.StatusOK, successResponse{Success: true})
}
