package domain

import "time"

// AuditKind names an auth lifecycle event.
type AuditKind string

const (
	AuditSignIn        AuditKind = "signin"
	AuditSignInFailed  AuditKind = "signin_failed"
	AuditSignUp        AuditKind = "signup"
	AuditRefresh       AuditKind = "refresh"
	AuditLogout        AuditKind = "logout"
	AuditAccountUpdate AuditKind = "account_update"
)

// AuditEvent records one auth lifecycle event for the audit trail.
type AuditEvent struct {
	Kind      AuditKind
	AccountID string // empty for failed sign-ins against unknown emails
	Email     string
	ActorID   string // differs from AccountID when an admin edits someone else
	IP        string
	UserAgent string
	At        time.Time
}

// ShardKey groups events of one account onto one worker.
func (e AuditEvent) ShardKey() string {
	if e.AccountID != "" {
		return e.AccountID
	}
	return e.Email
}
