package models

import "time"

type Session struct {
	ID        string
	UserID    string
	TenantID  *string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// RefreshToken is stored by hash. SessionID is empty for tokens not tied to a login session.
type RefreshToken struct {
	ID        string
	TokenHash []byte
	UserID    string
	SessionID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type VerificationPurpose string

const (
	PurposePasswordReset     VerificationPurpose = "password_reset"
	PurposeEmailVerification VerificationPurpose = "email_verification"
)

// Verification is a single-use secret bound to an email address.
type Verification struct {
	ID         string
	Identifier string
	ValueHash  []byte
	Purpose    VerificationPurpose
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

func (v Verification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
