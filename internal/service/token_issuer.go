package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitdesk/internal/ids"
	"fitdesk/internal/models"
	"fitdesk/internal/repository"
	"fitdesk/internal/security"
)

const refreshTokenBytes = 48

// IssuedRefreshToken carries the clear token. It is never stored.
type IssuedRefreshToken struct {
	Token     string
	ExpiresAt time.Time
}

type TokenIssuer struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     repository.RefreshTokenStore
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, tokens repository.RefreshTokenStore) *TokenIssuer {
	return &TokenIssuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		tokens:     tokens,
		now:        time.Now,
	}
}

func (t *TokenIssuer) GenerateAccessToken(user models.User, sessionID string) (string, error) {
	return security.GenerateAccessToken(t.secret, security.AccessTokenInput{
		UserID:    user.ID,
		Role:      string(user.Role),
		TenantID:  user.TenantRef(),
		SessionID: sessionID,
	}, t.accessTTL)
}

func (t *TokenIssuer) ParseAccessToken(token string) (*security.AccessClaims, error) {
	return security.ParseAccessToken(token, t.secret)
}

func (t *TokenIssuer) CreateRefreshToken(ctx context.Context, userID, sessionID string) (IssuedRefreshToken, error) {
	raw, err := security.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return IssuedRefreshToken{}, err
	}

	expiresAt := t.now().Add(t.refreshTTL)
	if err := t.tokens.Create(ctx, models.RefreshToken{
		ID:        ids.New(),
		TokenHash: security.HashToken(raw),
		UserID:    userID,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return IssuedRefreshToken{}, fmt.Errorf("store refresh token: %w", err)
	}

	return IssuedRefreshToken{Token: raw, ExpiresAt: expiresAt}, nil
}

// ValidateRefreshToken returns nil when the token is unknown or expired.
func (t *TokenIssuer) ValidateRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if token == "" {
		return nil, nil
	}
	record, err := t.tokens.FindByHash(ctx, security.HashToken(token))
	if errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.Expired(t.now()) {
		return nil, nil
	}
	return &record, nil
}

// ConsumeRefreshToken deletes the token and returns it if it was still valid.
// Concurrent callers presenting the same token get at most one record back.
func (t *TokenIssuer) ConsumeRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if token == "" {
		return nil, nil
	}
	record, err := t.tokens.Consume(ctx, security.HashToken(token))
	if errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.Expired(t.now()) {
		return nil, nil
	}
	return &record, nil
}

func (t *TokenIssuer) DeleteRefreshToken(ctx context.Context, token string) error {
	return t.tokens.DeleteByHash(ctx, security.HashToken(token))
}

func (t *TokenIssuer) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	return t.tokens.DeleteByUser(ctx, userID)
}

// ExpiresIn is the access token lifetime in seconds.
func (t *TokenIssuer) ExpiresIn() int64 {
	return int64(t.accessTTL / time.Second)
}
