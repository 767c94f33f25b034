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
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryAlreadyExists = errors.New("category with this name already exists")
)

// CategoryRepository stores fabric categories. Reads report how many active
// fabrics each category holds.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

const categorySelect = `
	SELECT c.id, c.name, c.slug, c.description, c.created_at,
		(SELECT COUNT(*) FROM fabrics f WHERE f.category_id = c.id AND f.is_active) AS fabric_count
	FROM categories c`

func scanCategory(row interface{ Scan(...any) error }) (*domain.Category, error) {
	c := &domain.Category{}
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.FabricCount); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *categoryRepository) Create(ctx context.Context, c *domain.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, c.Slug, c.Description, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *categoryRepository) Update(ctx context.Context, c *domain.Category) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, slug = $3, description = $4
		WHERE id = $1
	`, c.ID, c.Name, c.Slug, c.Description)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	return rowsAffectedOr(result, ErrCategoryNotFound)
}

// Delete removes a category; its fabrics become uncategorised.
func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return rowsAffectedOr(result, ErrCategoryNotFound)
}

func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, categorySelect+` ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return r.findOne(ctx, `c.id = $1`, id)
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return r.findOne(ctx, `c.slug = $1`, slug)
}

func (r *categoryRepository) findOne(ctx context.Context, where string, arg any) (*domain.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}
