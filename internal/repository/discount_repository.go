package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"textile-store/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrDiscountNotFound  = errors.New("discount code not found")
	ErrDiscountExists    = errors.New("discount code already exists")
	ErrDiscountExhausted = errors.New("discount code usage limit reached")
)

// DiscountRepository defines the interface for discount code data access
type DiscountRepository interface {
	Create(ctx context.Context, code *domain.DiscountCode) error
	Update(ctx context.Context, code *domain.DiscountCode) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DiscountCode, error)
	FindByCode(ctx context.Context, code string) (*domain.DiscountCode, error)
	List(ctx context.Context) ([]*domain.DiscountCode, error)
	// IncrementUses records one redemption, failing with ErrDiscountExhausted once the cap is reached
	IncrementUses(ctx context.Context, id uuid.UUID) error
}

type discountRepository struct {
	db DBTX
}

// NewDiscountRepository creates a new instance of DiscountRepository
func NewDiscountRepository(db *sql.DB) DiscountRepository {
	return &discountRepository{db: db}
}

const discountColumns = `id, code, percentage, starts_at, expires_at, max_uses, uses, active, created_at`

func scanDiscount(row interface{ Scan(...any) error }) (*domain.DiscountCode, error) {
	d := &domain.DiscountCode{}
	err := row.Scan(&d.ID, &d.Code, &d.Percentage, &d.StartsAt, &d.ExpiresAt, &d.MaxUses, &d.Uses, &d.Active, &d.CreatedAt)
	return d, err
}

func (r *discountRepository) Create(ctx context.Context, code *domain.DiscountCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discount_codes (`+discountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, code.ID, code.Code, code.Percentage, code.StartsAt, code.ExpiresAt, code.MaxUses, code.Uses, code.Active, code.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "discount_codes_code_key") {
			return ErrDiscountExists
		}
		return fmt.Errorf("failed to create discount code: %w", err)
	}
	return nil
}

func (r *discountRepository) Update(ctx context.Context, code *domain.DiscountCode) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE discount_codes
		SET code = $2, percentage = $3, starts_at = $4, expires_at = $5, max_uses = $6, active = $7
		WHERE id = $1
	`, code.ID, code.Code, code.Percentage, code.StartsAt, code.ExpiresAt, code.MaxUses, code.Active)
	if err != nil {
		if isUniqueViolation(err, "discount_codes_code_key") {
			return ErrDiscountExists
		}
		return fmt.Errorf("failed to update discount code: %w", err)
	}
	return rowsAffectedOr(result, ErrDiscountNotFound)
}

func (r *discountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM discount_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete discount code: %w", err)
	}
	return rowsAffectedOr(result, ErrDiscountNotFound)
}

func (r *discountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DiscountCode, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByCode looks up a code in its normalized form
func (r *discountRepository) FindByCode(ctx context.Context, code string) (*domain.DiscountCode, error) {
	return r.findOne(ctx, "code = $1", domain.NormalizeCode(code))
}

func (r *discountRepository) findOne(ctx context.Context, where string, arg any) (*domain.DiscountCode, error) {
	d, err := scanDiscount(r.db.QueryRowContext(ctx, `SELECT `+discountColumns+` FROM discount_codes WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDiscountNotFound
		}
		return nil, fmt.Errorf("failed to find discount code: %w", err)
	}
	return d, nil
}

func (r *discountRepository) List(ctx context.Context) ([]*domain.DiscountCode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+discountColumns+` FROM discount_codes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount codes: %w", err)
	}
	defer rows.Close()

	codes := []*domain.DiscountCode{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discount code: %w", err)
		}
		codes = append(codes, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating discount codes: %w", err)
	}

	return codes, nil
}

func (r *discountRepository) IncrementUses(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE discount_codes SET uses = uses + 1
		WHERE id = $1 AND (max_uses = 0 OR uses < max_uses)
	`, id)
	if err != nil {
		return fmt.Errorf("failed to record discount use: %w", err)
	}
	return rowsAffectedOr(result, ErrDiscountExhausted)
}
