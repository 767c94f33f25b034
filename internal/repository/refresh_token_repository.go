package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"textile-store/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
)

// RefreshTokenRepository stores refresh sessions. Only a digest of each
// token reaches the database, so a leaked table cannot be replayed.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error
	// DeleteExpiredForUser drops the user's sessions that expired before cutoff.
	DeleteExpiredForUser(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db DBTX
}

func NewRefreshTokenRepository(db *sql.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *refreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.UserID, digestToken(t.Token), t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// FindByToken looks a session up by its plaintext token. Revoked sessions
// yield ErrRefreshTokenRevoked; expiry is left to the caller.
func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	t := &domain.RefreshToken{Token: token}
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at, created_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, digestToken(token)).Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.CreatedAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
		return nil, ErrRefreshTokenRevoked
	}
	return t, nil
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, token string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, digestToken(token), at)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return rowsAffectedOr(result, ErrRefreshTokenNotFound)
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID, at)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) DeleteExpiredForUser(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE user_id = $1 AND expires_at < $2
	`, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	return result.RowsAffected()
}
