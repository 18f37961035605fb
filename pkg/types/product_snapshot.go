package types

import (
	"time"

	"github.com/google/uuid"
)

// ProductSnapshot is the denormalized product captured when an order item is
// written. It is never refreshed from the catalog.
type ProductSnapshot struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Team        string    `json:"team"`
	Year        int       `json:"year"`
	PriceCents  int64     `json:"priceCents"`
	Condition   string    `json:"condition"`
	Size        string    `json:"size"`
	SKU         string    `json:"sku"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CapturedAt  time.Time `json:"capturedAt"`
}
