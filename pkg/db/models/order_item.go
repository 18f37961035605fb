package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/types"
)

// OrderItem is one purchased line with the product captured at purchase time.
type OrderItem struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	ProductSnapshot types.ProductSnapshot `gorm:"column:product_snapshot;type:jsonb;serializer:json;not null"`
	Quantity        int                   `gorm:"column:quantity;not null"`
	PriceCents      int64                 `gorm:"column:price_cents;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// LineTotalCents returns price × quantity.
func (i OrderItem) LineTotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}
