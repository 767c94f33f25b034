package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FabricID  uuid.UUID `json:"fabric_id" db:"fabric_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Author    string    `json:"author" db:"author"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	Approved  bool      `json:"approved" db:"approved"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RatingSummary aggregates the approved reviews of a fabric
type RatingSummary struct {
	FabricID uuid.UUID `json:"fabric_id"`
	Average  float64   `json:"average"`
	Count    int       `json:"count"`
}
