package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"textile-store/internal/domain"

	"github.com/google/uuid"
)

// FavoriteRepository defines the interface for favorite data access
type FavoriteRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error)
	// Add is idempotent; adding an existing favorite is not an error
	Add(ctx context.Context, userID, fabricID uuid.UUID) error
	// Remove reports whether a favorite was deleted
	Remove(ctx context.Context, userID, fabricID uuid.UUID) (bool, error)
	Exists(ctx context.Context, userID, fabricID uuid.UUID) (bool, error)
}

type favoriteRepository struct {
	db DBTX
}

// NewFavoriteRepository creates a new instance of FavoriteRepository
func NewFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) List(ctx context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, fabric_id, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []*domain.Favorite{}
	for rows.Next() {
		fav := &domain.Favorite{}
		if err := rows.Scan(&fav.UserID, &fav.FabricID, &fav.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorites: %w", err)
	}

	return favorites, nil
}

func (r *favoriteRepository) Add(ctx context.Context, userID, fabricID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO favorites (user_id, fabric_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, fabric_id) DO NOTHING
	`, userID, fabricID, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrFabricNotFound
		}
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (r *favoriteRepository) Remove(ctx context.Context, userID, fabricID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = $1 AND fabric_id = $2`, userID, fabricID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *favoriteRepository) Exists(ctx context.Context, userID, fabricID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND fabric_id = $2)
	`, userID, fabricID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return exists, nil
}
