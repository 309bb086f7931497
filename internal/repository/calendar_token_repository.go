package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"fitdesk/internal/models"
)

type CalendarTokenRepository struct {
	db Querier
}

func NewCalendarTokenRepository(db Querier) *CalendarTokenRepository {
	return &CalendarTokenRepository{db: db}
}

func (r *CalendarTokenRepository) Get(ctx context.Context, userID, tenantID string) (models.GoogleCalendarToken, error) {
	const query = `
		SELECT id, user_id, tenant_id, access_token, refresh_token, expires_at, scope, created_at, updated_at
		FROM google_calendar_tokens
		WHERE user_id = $1 AND tenant_id = $2
	`

	var t models.GoogleCalendarToken
	err := r.db.QueryRow(ctx, query, userID, tenantID).Scan(
		&t.ID,
		&t.UserID,
		&t.TenantID,
		&t.AccessToken,
		&t.RefreshToken,
		&t.ExpiresAt,
		&t.Scope,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GoogleCalendarToken{}, ErrCalendarTokenNotFound
		}
		return models.GoogleCalendarToken{}, err
	}
	return t, nil
}

// Upsert keeps the stored refresh token when the incoming one is empty.
func (r *CalendarTokenRepository) Upsert(ctx context.Context, t models.GoogleCalendarToken) error {
	const query = `
		INSERT INTO google_calendar_tokens (
			id, user_id, tenant_id, access_token, refresh_token, expires_at, scope, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
		ON CONFLICT (user_id, tenant_id)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), google_calendar_tokens.refresh_token),
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.TenantID,
		t.AccessToken,
		t.RefreshToken,
		t.ExpiresAt,
		t.Scope,
	)
	return err
}

func (r *CalendarTokenRepository) UpdateAccessToken(ctx context.Context, userID, tenantID, accessToken, refreshToken string, expiresAt time.Time) error {
	const query = `
		UPDATE google_calendar_tokens
		SET access_token = $3,
		    refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
		    expires_at = $5,
		    updated_at = NOW()
		WHERE user_id = $1 AND tenant_id = $2
	`
	cmd, err := r.db.Exec(ctx, query, userID, tenantID, accessToken, refreshToken, expiresAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCalendarTokenNotFound
	}
	return nil
}

var _ CalendarTokenStore = (*CalendarTokenRepository)(nil)
