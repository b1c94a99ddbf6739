package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/forkful/marketplace/internal/core/ports"
)

// AccountHandler serves the account endpoints behind the authorization gate.
type AccountHandler struct {
	service ports.AccountService
}

func NewAccountHandler(service ports.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Self returns the caller's account.
//
// @Summary      Current account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorBody
// @Router       /accounts/self [get]
func (h *AccountHandler) Self(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// UpdateSelf edits the caller's profile. Every outstanding token of the
// caller is revoked, so a fresh pair is issued.
//
// @Summary      Update current account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateSelfRequest  true  "Fields to change"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /accounts/self [put]
func (h *AccountHandler) UpdateSelf(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req updateSelfRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, _, err := h.service.UpdateSelf(c.Request().Context(), account, ports.SelfUpdateInput{
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

// Get returns any account. Admin only.
//
// @Summary      Get account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /accounts/{id} [get]
func (h *AccountHandler) Get(c echo.Context) error {
	account, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// Update edits any account. Admin only.
//
// @Summary      Update account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "Account id"
// @Param        body  body      adminUpdateRequest  true  "Fields to change"
// @Success      200   {object}  accountResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /accounts/{id} [put]
func (h *AccountHandler) Update(c echo.Context) error {
	actor, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req adminUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := h.service.UpdateByAdmin(c.Request().Context(), actor, c.Param("id"), ports.AdminUpdateInput{
		Name:  req.Name,
		Email: req.Email,
		Admin: req.Admin,
	}, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(updated))
}
