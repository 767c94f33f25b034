package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"textile-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrFabricNotFound      = errors.New("fabric not found")
	ErrFabricSlugTaken     = errors.New("fabric with this slug already exists")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptyFabricPatch    = errors.New("no fields to update")
	ErrUnknownFabricFilter = errors.New("unknown category")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// FabricFilter narrows and orders a catalog listing
type FabricFilter struct {
	CategoryID *uuid.UUID
	Featured   *bool
	ActiveOnly bool
	Query      string
	MaxStock   *int
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  SortOrder
}

// FabricPatch carries the fields a bulk update sets; nil fields are left untouched
type FabricPatch struct {
	PriceNGN   *decimal.Decimal
	PriceUSD   *decimal.Decimal
	Stock      *int
	CategoryID *uuid.UUID
	IsActive   *bool
	IsFeatured *bool
}

func (p FabricPatch) Empty() bool {
	return p.PriceNGN == nil && p.PriceUSD == nil && p.Stock == nil &&
		p.CategoryID == nil && p.IsActive == nil && p.IsFeatured == nil
}

// FabricRepository defines the interface for fabric data access
type FabricRepository interface {
	Create(ctx context.Context, fabric *domain.Fabric) error
	Update(ctx context.Context, fabric *domain.Fabric) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Fabric, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Fabric, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Fabric, error)
	List(ctx context.Context, filter FabricFilter) ([]*domain.Fabric, int, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
	BulkUpdate(ctx context.Context, ids []uuid.UUID, patch FabricPatch) (int64, error)
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
	Count(ctx context.Context) (int, error)
}

type fabricRepository struct {
	db DBTX
}

// NewFabricRepository creates a new instance of FabricRepository
func NewFabricRepository(db *sql.DB) FabricRepository {
	return &fabricRepository{db: db}
}

const fabricColumns = `id, name, slug, description, category_id, price_ngn, price_usd, images, stock, is_featured, is_active, created_at, updated_at`

func scanFabric(row interface{ Scan(...any) error }) (*domain.Fabric, error) {
	fabric := &domain.Fabric{}
	var categoryID uuid.NullUUID
	var images []byte
	err := row.Scan(
		&fabric.ID,
		&fabric.Name,
		&fabric.Slug,
		&fabric.Description,
		&categoryID,
		&fabric.PriceNGN,
		&fabric.PriceUSD,
		&images,
		&fabric.Stock,
		&fabric.IsFeatured,
		&fabric.IsActive,
		&fabric.CreatedAt,
		&fabric.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		fabric.CategoryID = &categoryID.UUID
	}
	fabric.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &fabric.Images); err != nil {
			return nil, fmt.Errorf("failed to decode images: %w", err)
		}
	}
	return fabric, nil
}

func encodeImages(images []string) string {
	if images == nil {
		images = []string{}
	}
	data, _ := json.Marshal(images)
	return string(data)
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Create inserts a new fabric into the database using parameterized queries
func (r *fabricRepository) Create(ctx context.Context, fabric *domain.Fabric) error {
	query := `
		INSERT INTO fabrics (` + fabricColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		fabric.ID,
		fabric.Name,
		fabric.Slug,
		fabric.Description,
		nullableUUID(fabric.CategoryID),
		fabric.PriceNGN,
		fabric.PriceUSD,
		encodeImages(fabric.Images),
		fabric.Stock,
		fabric.IsFeatured,
		fabric.IsActive,
		fabric.CreatedAt,
		fabric.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "fabrics_slug_key") {
			return ErrFabricSlugTaken
		}
		if isForeignKeyViolation(err) {
			return ErrUnknownFabricFilter
		}
		return fmt.Errorf("failed to create fabric: %w", err)
	}

	return nil
}

// Update updates an existing fabric in the database using parameterized queries
func (r *fabricRepository) Update(ctx context.Context, fabric *domain.Fabric) error {
	query := `
		UPDATE fabrics
		SET name = $2, slug = $3, description = $4, category_id = $5, price_ngn = $6,
		    price_usd = $7, images = $8::jsonb, stock = $9, is_featured = $10, is_active = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		fabric.ID,
		fabric.Name,
		fabric.Slug,
		fabric.Description,
		nullableUUID(fabric.CategoryID),
		fabric.PriceNGN,
		fabric.PriceUSD,
		encodeImages(fabric.Images),
		fabric.Stock,
		fabric.IsFeatured,
		fabric.IsActive,
		fabric.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "fabrics_slug_key") {
			return ErrFabricSlugTaken
		}
		if isForeignKeyViolation(err) {
			return ErrUnknownFabricFilter
		}
		return fmt.Errorf("failed to update fabric: %w", err)
	}

	return rowsAffectedOr(result, ErrFabricNotFound)
}

// Delete removes a fabric from the database using parameterized queries
func (r *fabricRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fabrics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fabric: %w", err)
	}

	return rowsAffectedOr(result, ErrFabricNotFound)
}

// FindByID retrieves a fabric by ID using parameterized queries
func (r *fabricRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Fabric, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindBySlug retrieves a fabric by its URL slug
func (r *fabricRepository) FindBySlug(ctx context.Context, slug string) (*domain.Fabric, error) {
	return r.findOne(ctx, "slug = $1", slug)
}

func (r *fabricRepository) findOne(ctx context.Context, where string, arg any) (*domain.Fabric, error) {
	query := `SELECT ` + fabricColumns + ` FROM fabrics WHERE ` + where

	fabric, err := scanFabric(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFabricNotFound
		}
		return nil, fmt.Errorf("failed to find fabric: %w", err)
	}

	return fabric, nil
}

// FindByIDs loads the fabrics with the given ids, keyed by id. Missing ids are absent from the map.
func (r *fabricRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Fabric, error) {
	fabrics := make(map[uuid.UUID]*domain.Fabric, len(ids))
	if len(ids) == 0 {
		return fabrics, nil
	}

	placeholders, args := inClause(ids, 1)
	rows, err := r.db.QueryContext(ctx, `SELECT `+fabricColumns+` FROM fabrics WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load fabrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		fabric, err := scanFabric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fabric: %w", err)
		}
		fabrics[fabric.ID] = fabric
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fabrics: %w", err)
	}

	return fabrics, nil
}

// List retrieves fabrics with optional filtering, search, pagination, and sorting
func (r *fabricRepository) List(ctx context.Context, filter FabricFilter) ([]*domain.Fabric, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":       true,
		"price_ngn":  true,
		"price_usd":  true,
		"created_at": true,
		"stock":      true,
	}

	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	// Build the WHERE clause
	conditions := []string{}
	args := []any{}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		conditions = append(conditions, fmt.Sprintf("is_featured = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if filter.MaxStock != nil {
		args = append(args, *filter.MaxStock)
		conditions = append(conditions, fmt.Sprintf("stock <= $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total fabrics
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fabrics "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count fabrics: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM fabrics
		%s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d
	`, fabricColumns, whereClause, sortBy, sortOrder, len(args)+1, len(args)+2)

	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fabrics: %w", err)
	}
	defer rows.Close()

	fabrics := []*domain.Fabric{}
	for rows.Next() {
		fabric, err := scanFabric(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan fabric: %w", err)
		}
		fabrics = append(fabrics, fabric)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating fabrics: %w", err)
	}

	return fabrics, total, nil
}

// DecrementStock takes qty pieces out of stock in a single conditional
// statement, so two concurrent checkouts can never oversell.
func (r *fabricRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE fabrics SET stock = stock - $2, updated_at = $3
		WHERE id = $1 AND is_active = TRUE AND stock >= $2
	`, id, qty, time.Now())
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	return rowsAffectedOr(result, ErrInsufficientStock)
}

// IncrementStock returns qty pieces to stock
func (r *fabricRepository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE fabrics SET stock = stock + $2, updated_at = $3
		WHERE id = $1
	`, id, qty, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return rowsAffectedOr(result, ErrFabricNotFound)
}

// BulkUpdate applies patch to every fabric in ids and returns the number of rows changed
func (r *fabricRepository) BulkUpdate(ctx context.Context, ids []uuid.UUID, patch FabricPatch) (int64, error) {
	if patch.Empty() {
		return 0, ErrEmptyFabricPatch
	}
	if len(ids) == 0 {
		return 0, nil
	}

	sets := []string{}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.PriceNGN != nil {
		set("price_ngn", *patch.PriceNGN)
	}
	if patch.PriceUSD != nil {
		set("price_usd", *patch.PriceUSD)
	}
	if patch.Stock != nil {
		set("stock", *patch.Stock)
	}
	if patch.CategoryID != nil {
		set("category_id", *patch.CategoryID)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	if patch.IsFeatured != nil {
		set("is_featured", *patch.IsFeatured)
	}
	set("updated_at", time.Now())

	placeholders, idArgs := inClause(ids, len(args)+1)
	args = append(args, idArgs...)

	query := fmt.Sprintf("UPDATE fabrics SET %s WHERE id IN (%s)", strings.Join(sets, ", "), placeholders)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrUnknownFabricFilter
		}
		return 0, fmt.Errorf("failed to bulk update fabrics: %w", err)
	}

	return result.RowsAffected()
}

// BulkDelete removes every fabric in ids and returns the number of rows deleted
func (r *fabricRepository) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders, args := inClause(ids, 1)
	result, err := r.db.ExecContext(ctx, `DELETE FROM fabrics WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete fabrics: %w", err)
	}

	return result.RowsAffected()
}

func (r *fabricRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fabrics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fabrics: %w", err)
	}
	return n, nil
}

// inClause renders "$start, $start+1, ..." for ids and returns them as query args.
func inClause(ids []uuid.UUID, start int) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

// normalizePage clamps pagination input to sane bounds.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
