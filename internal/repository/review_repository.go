package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"textile-store/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrReviewExists   = errors.New("user has already reviewed this fabric")
)

// ReviewFilter narrows the moderation listing
type ReviewFilter struct {
	Approved *bool
	FabricID *uuid.UUID
	Page     int
	PageSize int
}

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	ListByFabric(ctx context.Context, fabricID uuid.UUID, approvedOnly bool) ([]*domain.Review, error)
	ListPending(ctx context.Context) ([]*domain.Review, error)
	List(ctx context.Context, filter ReviewFilter) ([]*domain.Review, int, error)
	Approve(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	Summary(ctx context.Context, fabricID uuid.UUID) (*domain.RatingSummary, error)
}

type reviewRepository struct {
	db DBTX
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

const reviewColumns = `id, fabric_id, user_id, author, rating, comment, approved, created_at`

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, review.ID, review.FabricID, review.UserID, review.Author, review.Rating, review.Comment, review.Approved, review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "uq_reviews_user_fabric") {
			return ErrReviewExists
		}
		if isForeignKeyViolation(err) {
			return ErrFabricNotFound
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (r *reviewRepository) ListByFabric(ctx context.Context, fabricID uuid.UUID, approvedOnly bool) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE fabric_id = $1`
	if approvedOnly {
		query += ` AND approved = TRUE`
	}
	query += ` ORDER BY created_at DESC`
	return r.list(ctx, query, fabricID)
}

func (r *reviewRepository) ListPending(ctx context.Context) ([]*domain.Review, error) {
	return r.list(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE approved = FALSE ORDER BY created_at`)
}

func (r *reviewRepository) List(ctx context.Context, filter ReviewFilter) ([]*domain.Review, int, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	conditions := []string{}
	args := []any{}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		conditions = append(conditions, fmt.Sprintf("approved = $%d", len(args)))
	}
	if filter.FabricID != nil {
		args = append(args, *filter.FabricID)
		conditions = append(conditions, fmt.Sprintf("fabric_id = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM reviews%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		reviewColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	reviews, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *reviewRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		rv := &domain.Review{}
		if err := rows.Scan(&rv.ID, &rv.FabricID, &rv.UserID, &rv.Author, &rv.Rating, &rv.Comment, &rv.Approved, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

func (r *reviewRepository) Approve(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE reviews SET approved = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to approve review: %w", err)
	}
	return rowsAffectedOr(result, ErrReviewNotFound)
}

func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return rowsAffectedOr(result, ErrReviewNotFound)
}

// Summary averages the approved ratings of a fabric
func (r *reviewRepository) Summary(ctx context.Context, fabricID uuid.UUID) (*domain.RatingSummary, error) {
	summary := &domain.RatingSummary{FabricID: fabricID}
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(rating)::float8, 0), COUNT(*)
		FROM reviews
		WHERE fabric_id = $1 AND approved = TRUE
	`, fabricID).Scan(&summary.Average, &summary.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reviews: %w", err)
	}
	return summary, nil
}
