package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx outcome after the retry protocol has run.
type APIError struct {
	Status     int
	StatusText string
	Message    string
	Fields     []string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, strings.Join(e.Fields, "; "))
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports a 401 that survived the silent refresh. Callers
// treat it as logged out.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsUnauthorized unwraps err and reports whether it is a final 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}

type errorEnvelope struct {
	Error *struct {
		Message string   `json:"message"`
		Fields  []string `json:"fields"`
	} `json:"error"`
	Status int `json:"status"`
}

// newAPIError reads the server's error envelope, or synthesizes one from the
// status line when the body is not the expected shape.
func newAPIError(resp *Response) *APIError {
	e := &APIError{
		Status:     resp.HTTP.StatusCode,
		StatusText: http.StatusText(resp.HTTP.StatusCode),
	}

	var env errorEnvelope
	if resp.Data != nil && json.Unmarshal(resp.Data, &env) == nil && env.Error != nil {
		e.Message = env.Error.Message
		e.Fields = env.Error.Fields
	}
	if e.Message == "" {
		e.Message = e.StatusText
	}
	return e
}
