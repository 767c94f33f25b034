package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status an order may carry, in fulfilment order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Restockable reports whether deleting an order in this status should
// return its pieces to inventory.
func (s OrderStatus) Restockable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed || s == OrderStatusCancelled
}

// Order is a checkout placed through the messaging flow
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Reference       string          `json:"reference" db:"reference"`
	UserID          *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	CustomerName    string          `json:"customer_name" db:"customer_name"`
	CustomerPhone   string          `json:"customer_phone" db:"customer_phone"`
	CustomerEmail   string          `json:"customer_email" db:"customer_email"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	Currency        string          `json:"currency" db:"currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate" db:"exchange_rate"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount        decimal.Decimal `json:"discount" db:"discount"`
	Total           decimal.Decimal `json:"total" db:"total"`
	DiscountCode    string          `json:"discount_code,omitempty" db:"discount_code"`
	Status          OrderStatus     `json:"status" db:"status"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type OrderItem struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	OrderID    uuid.UUID       `json:"order_id" db:"order_id"`
	FabricID   uuid.UUID       `json:"fabric_id" db:"fabric_id"`
	FabricName string          `json:"fabric_name" db:"fabric_name"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total" db:"line_total"`
}
