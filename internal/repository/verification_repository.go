package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"fitdesk/internal/models"
)

type VerificationRepository struct {
	db Querier
}

func NewVerificationRepository(db Querier) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(ctx context.Context, v models.Verification) error {
	const query = `
		INSERT INTO verifications (id, identifier, value_hash, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.Exec(ctx, query, v.ID, v.Identifier, v.ValueHash, v.Purpose, v.ExpiresAt)
	return err
}

func (r *VerificationRepository) Consume(ctx context.Context, purpose models.VerificationPurpose, valueHash []byte, now time.Time) (models.Verification, error) {
	const query = `
		DELETE FROM verifications
		WHERE value_hash = $1 AND purpose = $2 AND expires_at > $3
		RETURNING id, identifier, value_hash, purpose, expires_at, created_at
	`

	var v models.Verification
	err := r.db.QueryRow(ctx, query, valueHash, purpose, now).Scan(
		&v.ID,
		&v.Identifier,
		&v.ValueHash,
		&v.Purpose,
		&v.ExpiresAt,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Verification{}, ErrVerificationNotFound
		}
		return models.Verification{}, err
	}
	return v, nil
}

func (r *VerificationRepository) DeleteByIdentifier(ctx context.Context, identifier string, purpose models.VerificationPurpose) error {
	const query = `DELETE FROM verifications WHERE identifier = $1 AND purpose = $2`
	_, err := r.db.Exec(ctx, query, identifier, purpose)
	return err
}

func (r *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM verifications WHERE expires_at <= $1`
	cmd, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

var _ VerificationStore = (*VerificationRepository)(nil)
