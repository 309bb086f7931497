package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"fitdesk/internal/models"
)

type RefreshTokenRepository struct {
	db Querier
}

func NewRefreshTokenRepository(db Querier) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const refreshTokenColumns = `id, token_hash, user_id, COALESCE(session_id, ''), expires_at, created_at`

func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (id, token_hash, user_id, session_id, expires_at, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW())
	`
	_, err := r.db.Exec(ctx, query, token.ID, token.TokenHash, token.UserID, token.SessionID, token.ExpiresAt)
	return err
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash []byte) (models.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	return scanRefreshToken(r.db.QueryRow(ctx, query, tokenHash))
}

// Consume is a single DELETE ... RETURNING so two callers can never both receive the row.
func (r *RefreshTokenRepository) Consume(ctx context.Context, tokenHash []byte) (models.RefreshToken, error) {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING ` + refreshTokenColumns
	return scanRefreshToken(r.db.QueryRow(ctx, query, tokenHash))
}

func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, tokenHash []byte) error {
	const query = `DELETE FROM refresh_tokens WHERE token_hash = $1`
	_, err := r.db.Exec(ctx, query, tokenHash)
	return err
}

func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at <= $1`
	cmd, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanRefreshToken(row rowScanner) (models.RefreshToken, error) {
	var token models.RefreshToken
	if err := row.Scan(&token.ID, &token.TokenHash, &token.UserID, &token.SessionID, &token.ExpiresAt, &token.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return models.RefreshToken{}, err
	}
	return token, nil
}

var _ RefreshTokenStore = (*RefreshTokenRepository)(nil)
