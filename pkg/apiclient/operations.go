package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthResponse is returned by sign-in, sign-up, refresh and profile updates.
type AuthResponse struct {
	TokenType             string `json:"token_type"`
	AccessToken           string `json:"access_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Admin     bool   `json:"admin"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AccountUpdate carries optional profile changes; nil fields are omitted.
type AccountUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Decode unmarshals the response data into T.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if resp == nil || resp.Data == nil {
		return out, fmt.Errorf("apiclient: empty response body")
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("apiclient: decode: %w", err)
	}
	return out, nil
}

func call[T any](ctx context.Context, c *Client, path string, opts RequestOptions) (T, error) {
	resp, err := c.Request(ctx, path, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](resp)
}

// SignIn opens a session. Auth endpoints are sent already-refreshed: a 401
// there means bad credentials, not an expired session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	out, err := call[AuthResponse](ctx, c, "/signin", RequestOptions{
		Method:    http.MethodPost,
		Body:      map[string]string{"email": email, "password": password},
		Refreshed: true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	out, err := call[AuthResponse](ctx, c, "/signup", RequestOptions{
		Method:    http.MethodPost,
		Body:      map[string]string{"name": name, "email": email, "password": password},
		Refreshed: true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates the session explicitly.
func (c *Client) Refresh(ctx context.Context) (*AuthResponse, error) {
	out, err := call[AuthResponse](ctx, c, refreshPath, RequestOptions{
		Method:    http.MethodPost,
		Refreshed: true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Request(ctx, "/logout", RequestOptions{Method: http.MethodPost})
	return err
}

func (c *Client) Self(ctx context.Context) (*Account, error) {
	out, err := call[Account](ctx, c, "/accounts/self", RequestOptions{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSelf changes the caller's profile. The server revokes every earlier
// token and the new pair arrives in cookies and in the result.
func (c *Client) UpdateSelf(ctx context.Context, update AccountUpdate) (*AuthResponse, error) {
	out, err := call[AuthResponse](ctx, c, "/accounts/self", RequestOptions{
		Method: http.MethodPut,
		Body:   update,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
