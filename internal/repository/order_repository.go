package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"textile-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderReferenceUsed = errors.New("order reference already exists")
)

// OrderFilter narrows an order listing
type OrderFilter struct {
	Status   domain.OrderStatus
	UserID   *uuid.UUID
	Page     int
	PageSize int
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create inserts the order and its items. Run it inside Store.WithTx.
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByReference(ctx context.Context, reference string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	StatusCounts(ctx context.Context) (map[domain.OrderStatus]int, error)
	// Revenue sums order totals per currency, excluding cancelled orders
	Revenue(ctx context.Context) (map[string]decimal.Decimal, error)
}

type orderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, reference, user_id, customer_name, customer_phone, customer_email, shipping_address,
	currency, exchange_rate, subtotal, discount, total, discount_code, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	o := &domain.Order{}
	var userID uuid.NullUUID
	err := row.Scan(
		&o.ID,
		&o.Reference,
		&userID,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.CustomerEmail,
		&o.ShippingAddress,
		&o.Currency,
		&o.ExchangeRate,
		&o.Subtotal,
		&o.Discount,
		&o.Total,
		&o.DiscountCode,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		o.UserID = &userID.UUID
	}
	o.Items = []domain.OrderItem{}
	return o, nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		order.ID,
		order.Reference,
		nullableUUID(order.UserID),
		order.CustomerName,
		order.CustomerPhone,
		order.CustomerEmail,
		order.ShippingAddress,
		order.Currency,
		order.ExchangeRate,
		order.Subtotal,
		order.Discount,
		order.Total,
		order.DiscountCode,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_reference_key") {
			return ErrOrderReferenceUsed
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, fabric_id, fabric_name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.FabricID, item.FabricName, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *orderRepository) FindByReference(ctx context.Context, reference string) (*domain.Order, error) {
	return r.findOne(ctx, "reference = $1", strings.ToUpper(strings.TrimSpace(reference)))
}

func (r *orderRepository) findOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	items, err := r.items(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) items(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, fabric_id, fabric_name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY fabric_name, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.FabricID, &it.FabricName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// List returns orders newest first. Items are not loaded.
func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]*domain.Order, int, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	conditions := []string{}
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return rowsAffectedOr(result, ErrOrderNotFound)
}

// Delete removes the order; its items go with it through the cascade
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return rowsAffectedOr(result, ErrOrderNotFound)
}

func (r *orderRepository) StatusCounts(ctx context.Context) (map[domain.OrderStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OrderStatus]int, len(domain.OrderStatuses))
	for _, s := range domain.OrderStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status domain.OrderStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

func (r *orderRepository) Revenue(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT currency, COALESCE(SUM(total), 0)
		FROM orders
		WHERE status <> 'cancelled'
		GROUP BY currency
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	defer rows.Close()

	revenue := map[string]decimal.Decimal{}
	for rows.Next() {
		var currency string
		var sum decimal.Decimal
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan revenue: %w", err)
		}
		revenue[currency] = sum
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revenue: %w", err)
	}

	return revenue, nil
}
