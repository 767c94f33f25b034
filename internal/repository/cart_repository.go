package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"textile-store/internal/domain"

	"github.com/google/uuid"
)

var ErrCartItemNotFound = errors.New("cart item not found")

// CartRepository defines the interface for cart data access
type CartRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error)
	// Add increases the quantity of a line, creating it when absent, and returns the new quantity
	Add(ctx context.Context, userID, fabricID uuid.UUID, qty int) (int, error)
	// SetQuantity replaces the quantity of a line, creating it when absent
	SetQuantity(ctx context.Context, userID, fabricID uuid.UUID, qty int) error
	Remove(ctx context.Context, userID, fabricID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) List(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, fabric_id, quantity, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY updated_at, fabric_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item := &domain.CartItem{}
		if err := rows.Scan(&item.UserID, &item.FabricID, &item.Quantity, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

func (r *cartRepository) Add(ctx context.Context, userID, fabricID uuid.UUID, qty int) (int, error) {
	var quantity int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (user_id, fabric_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uq_cart_items_user_fabric
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING quantity
	`, userID, fabricID, qty, time.Now()).Scan(&quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrFabricNotFound
		}
		return 0, fmt.Errorf("failed to add cart item: %w", err)
	}
	return quantity, nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, userID, fabricID uuid.UUID, qty int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, fabric_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uq_cart_items_user_fabric
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
	`, userID, fabricID, qty, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrFabricNotFound
		}
		return fmt.Errorf("failed to set cart quantity: %w", err)
	}
	return nil
}

func (r *cartRepository) Remove(ctx context.Context, userID, fabricID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND fabric_id = $2`, userID, fabricID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return rowsAffectedOr(result, ErrCartItemNotFound)
}

func (r *cartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
