package domain

import (
	"strings"
	"time"
)

// Role is the access level an endpoint demands from the caller.
type Role string

const (
	RoleAuthenticated Role = "authenticated"
	RoleAdmin         Role = "admin"
)

// Account models a diner or restaurant admin. It is owned by the credential
// store; the auth core only reads it.
type Account struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Admin        bool       `json:"admin"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

// Fence returns the token generation fence: UpdatedAt at millisecond
// resolution. Every issued token embeds it and must match it exactly.
func (a *Account) Fence() int64 {
	return a.UpdatedAt.UnixMilli()
}

// Satisfies reports whether the account holds the given role.
func (a *Account) Satisfies(role Role) bool {
	switch role {
	case RoleAuthenticated:
		return true
	case RoleAdmin:
		return a.Admin
	default:
		return false
	}
}

// AccountUpdate carries a partial account mutation. Nil fields are left
// untouched. Any applied update bumps UpdatedAt in the store.
type AccountUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Admin        *bool
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil && u.Admin == nil
}

// NormalizeEmail lowercases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MillisToTime converts a stored epoch-millisecond value back to UTC.
func MillisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
