package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one fabric line in a user's cart, quantity in pieces
type CartItem struct {
	UserID    uuid.UUID `json:"-" db:"user_id"`
	FabricID  uuid.UUID `json:"fabric_id" db:"fabric_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Favorite struct {
	UserID    uuid.UUID `json:"-" db:"user_id"`
	FabricID  uuid.UUID `json:"fabric_id" db:"fabric_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
