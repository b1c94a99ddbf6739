package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the core matches exactly one of these via
// errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

var (
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrStaleToken      = errors.New("token fence does not match account")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrTooManyAttempts = errors.New("too many sign-in attempts")
)

// User-facing messages. Wording is part of the API contract.
const (
	MsgNoToken             = "No token provided"
	MsgInvalidToken        = "Invalid token"
	MsgNotAuthorized       = "Not authorized"
	MsgInvalidCredentials  = "Incorrect email or password"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgMissingRefreshToken = "refresh_token is required"
)

// Error is a classified failure with a message that is safe to show to the
// client. Err keeps the underlying cause for logs.
type Error struct {
	Kind    error
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// UnauthorizedCause is Unauthorized with the internal cause attached.
func UnauthorizedCause(msg string, cause error) error {
	return &Error{Kind: ErrUnauthorized, Message: msg, Err: cause}
}

func Validation(msg string, fields ...string) error {
	return &Error{Kind: ErrValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Internal wraps an unexpected failure. The message never reaches clients.
func Internal(err error, context string) error {
	return &Error{Kind: ErrInternal, Message: context, Err: err}
}

// AsError extracts the classified error, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
