package domain

import "time"

// AccessClaims is what a verified access token asserts.
type AccessClaims struct {
	AccountID string
	// UpdatedAt is the account fence (epoch millis) at issuance.
	UpdatedAt int64
	ExpiresAt time.Time
}

// RefreshClaims is the envelope of a refresh token. When produced by the
// unverified decode it is untrusted and only good for the account lookup.
type RefreshClaims struct {
	AccountID string
	ExpiresAt time.Time
}

// Session is the pair of tokens handed to a client at sign-in or refresh.
// It is never stored server side.
type Session struct {
	AccessToken      string
	AccessExpiresIn  time.Duration
	RefreshToken     string
	RefreshExpiresIn time.Duration
}
