package repository

import (
	"context"
	"errors"
	"time"

	"fitdesk/internal/models"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrRefreshTokenNotFound  = errors.New("refresh token not found")
	ErrVerificationNotFound  = errors.New("verification not found")
	ErrCalendarTokenNotFound = errors.New("calendar token not found")
)

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	MarkEmailVerified(ctx context.Context, id string) error
}

type TenantStore interface {
	GetByID(ctx context.Context, id string) (models.Tenant, error)
	FindBySubdomain(ctx context.Context, subdomain string) (models.Tenant, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	// DeleteByID is idempotent: deleting a missing session is not an error.
	DeleteByID(ctx context.Context, id string) error
	// DeleteForUser removes one session only if it belongs to userID.
	DeleteForUser(ctx context.Context, userID string, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token models.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash []byte) (models.RefreshToken, error)
	// Consume deletes the token and returns the deleted row in one step.
	Consume(ctx context.Context, tokenHash []byte) (models.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash []byte) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type VerificationStore interface {
	Create(ctx context.Context, v models.Verification) error
	// Consume deletes a non-expired verification and returns it in one step.
	Consume(ctx context.Context, purpose models.VerificationPurpose, valueHash []byte, now time.Time) (models.Verification, error)
	DeleteByIdentifier(ctx context.Context, identifier string, purpose models.VerificationPurpose) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type CalendarTokenStore interface {
	Get(ctx context.Context, userID, tenantID string) (models.GoogleCalendarToken, error)
	Upsert(ctx context.Context, token models.GoogleCalendarToken) error
	UpdateAccessToken(ctx context.Context, userID, tenantID, accessToken, refreshToken string, expiresAt time.Time) error
}

// Stores groups every store bound to the same connection or transaction.
type Stores struct {
	Users          UserStore
	Tenants        TenantStore
	Sessions       SessionStore
	RefreshTokens  RefreshTokenStore
	Verifications  VerificationStore
	CalendarTokens CalendarTokenStore
}

type Transactor interface {
	// WithinTx runs fn against stores bound to one transaction. A returned error rolls back.
	WithinTx(ctx context.Context, fn func(Stores) error) error
}
