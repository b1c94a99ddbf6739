package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/core/domain"
)

type errorDetail struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error  errorDetail `json:"error"`
	Status int         `json:"status"`
}

const unexpectedErrorMessage = "unexpected error"

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error kinds to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": {"message": "..."}, "status": <code>}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, detail := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: detail, Status: code})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorDetail) {
	if de, ok := domain.AsError(err); ok {
		if code, known := statusFor(de); known {
			return code, errorDetail{Message: de.Message, Fields: de.Fields}
		}
	}

	// Echo's own errors (router 404/405, rate limiter, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		return he.Code, errorDetail{Message: fmt.Sprintf("%v", he.Message)}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorDetail{Message: unexpectedErrorMessage}
}

func statusFor(de *domain.Error) (int, bool) {
	switch de.Kind {
	case domain.ErrValidation:
		return http.StatusBadRequest, true
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized, true
	case domain.ErrNotFound:
		return http.StatusNotFound, true
	case domain.ErrConflict:
		return http.StatusConflict, true
	case domain.ErrTooManyAttempts:
		return http.StatusTooManyRequests, true
	default:
		return 0, false
	}
}
