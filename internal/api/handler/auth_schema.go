package handler

import (
	"time"

	"github.com/forkful/marketplace/internal/core/domain"
)

// errorBody mirrors the envelope rendered by the HTTP error handler. It is
// only referenced by the swagger annotations.
type errorBody struct {
	Error struct {
		Message string   `json:"message"`
		Fields  []string `json:"fields,omitempty"`
	} `json:"error"`
	Status int `json:"status"`
}

// --- Request / Response types ---

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signUpRequest struct {
	Name     string `json:"name"     validate:"required,max=120"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updateSelfRequest struct {
	Name     *string `json:"name"     validate:"omitempty,min=1,max=120"`
	Email    *string `json:"email"    validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

type adminUpdateRequest struct {
	Name  *string `json:"name"  validate:"omitempty,min=1,max=120"`
	Email *string `json:"email" validate:"omitempty,email"`
	Admin *bool   `json:"admin"`
}

type authResponse struct {
	TokenType             string `json:"token_type"`
	AccessToken           string `json:"access_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type accountResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Admin     bool   `json:"admin"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// --- Mappers ---

func toAuthResponse(s *domain.Session) authResponse {
	return authResponse{
		TokenType:             "Bearer",
		AccessToken:           s.AccessToken,
		ExpiresIn:             int64(s.AccessExpiresIn / time.Second),
		RefreshToken:          s.RefreshToken,
		RefreshTokenExpiresIn: int64(s.RefreshExpiresIn / time.Second),
	}
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Admin:     a.Admin,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
