package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/forkful/marketplace/internal/api/middleware"
	"github.com/forkful/marketplace/internal/core/domain"
)

const refreshTokenCookie = "refresh_token"

// setSessionCookies delivers both tokens as httpOnly, secure, strict cookies
// that live exactly as long as the tokens they carry.
func setSessionCookies(c echo.Context, s *domain.Session) {
	c.SetCookie(sessionCookie(middleware.AccessTokenCookie, s.AccessToken, s.AccessExpiresIn))
	c.SetCookie(sessionCookie(refreshTokenCookie, s.RefreshToken, s.RefreshExpiresIn))
}

func clearSessionCookies(c echo.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		cookie := sessionCookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		c.SetCookie(cookie)
	}
}

func sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
