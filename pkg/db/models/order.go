package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// Order is a customer purchase. TotalCents is fixed at creation.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	TotalCents      int64             `gorm:"column:total_cents;not null"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	ShippingAddress types.Address     `gorm:"column:shipping_address;type:jsonb;not null"`
	TrackingNumber  *string           `gorm:"column:tracking_number"`
	Notes           *string           `gorm:"column:notes"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;references:ID"`
	Payments        []Payment         `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
