package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"textile-store/internal/domain"
)

var (
	ErrLoginLinkNotFound = errors.New("login link not found")
	ErrLoginLinkUsed     = errors.New("login link already used")
)

// LoginLinkRepository stores single-use sign-in links, keyed by the digest
// of the token that was mailed out.
type LoginLinkRepository interface {
	Create(ctx context.Context, link *domain.LoginLink) error
	FindByToken(ctx context.Context, token string) (*domain.LoginLink, error)
	MarkUsed(ctx context.Context, token string, at time.Time) error
}

type loginLinkRepository struct {
	db DBTX
}

func NewLoginLinkRepository(db *sql.DB) LoginLinkRepository {
	return &loginLinkRepository{db: db}
}

func (r *loginLinkRepository) Create(ctx context.Context, link *domain.LoginLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_links (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, digestToken(link.Token), link.UserID, link.ExpiresAt, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create login link: %w", err)
	}
	return nil
}

func (r *loginLinkRepository) FindByToken(ctx context.Context, token string) (*domain.LoginLink, error) {
	link := &domain.LoginLink{Token: token}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at, used_at, created_at
		FROM login_links
		WHERE token_hash = $1
	`, digestToken(token)).Scan(&link.UserID, &link.ExpiresAt, &usedAt, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoginLinkNotFound
		}
		return nil, fmt.Errorf("failed to find login link: %w", err)
	}
	if usedAt.Valid {
		link.UsedAt = &usedAt.Time
	}
	return link, nil
}

// MarkUsed consumes the link. Only the first caller succeeds; later calls get ErrLoginLinkUsed.
func (r *loginLinkRepository) MarkUsed(ctx context.Context, token string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE login_links SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL
	`, digestToken(token), at)
	if err != nil {
		return fmt.Errorf("failed to mark login link used: %w", err)
	}
	return rowsAffectedOr(result, ErrLoginLinkUsed)
}
