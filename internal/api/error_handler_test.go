package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/core/domain"
)

func render(t *testing.T, err error) (int, errorResponse, string) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var resp errorResponse
	if jerr := json.Unmarshal(rec.Body.Bytes(), &resp); jerr != nil {
		t.Fatalf("invalid json: %v", jerr)
	}
	return rec.Code, resp, rec.Body.String()
}

func TestErrorHandler_Taxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", domain.Validation("invalid request", "email is required"), http.StatusBadRequest, "invalid request"},
		{"unauthorized", domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrStaleToken), http.StatusUnauthorized, domain.MsgInvalidToken},
		{"not found", domain.NotFound("account not found"), http.StatusNotFound, "account not found"},
		{"conflict", domain.Conflict("email already registered"), http.StatusConflict, "email already registered"},
		{"throttled", &domain.Error{Kind: domain.ErrTooManyAttempts, Message: "slow down"}, http.StatusTooManyRequests, "slow down"},
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"internal", domain.Internal(errors.New("mongo: connection refused"), "find account by id"), http.StatusInternalServerError, unexpectedErrorMessage},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, unexpectedErrorMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, resp, _ := render(t, tc.err)
			if code != tc.code || resp.Status != tc.code {
				t.Fatalf("expected %d, got code=%d status=%d", tc.code, code, resp.Status)
			}
			if resp.Error.Message != tc.msg {
				t.Fatalf("expected message %q, got %q", tc.msg, resp.Error.Message)
			}
		})
	}
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	_, resp, _ := render(t, domain.Validation("invalid request", "email is required", "password is required"))
	if len(resp.Error.Fields) != 2 {
		t.Fatalf("expected field list, got %+v", resp.Error.Fields)
	}
}

func TestErrorHandler_InternalCauseNotLeaked(t *testing.T) {
	_, _, body := render(t, domain.Internal(errors.New("mongo: secret-host:27017 refused"), "find account"))
	if strings.Contains(body, "secret-host") || strings.Contains(body, "find account") {
		t.Fatalf("internal details leaked: %s", body)
	}
}

func TestErrorHandler_UnauthorizedCauseNotLeaked(t *testing.T) {
	_, _, body := render(t, domain.UnauthorizedCause(domain.MsgInvalidToken, domain.ErrStaleToken))
	if strings.Contains(body, "fence") {
		t.Fatalf("internal cause leaked: %s", body)
	}
}
