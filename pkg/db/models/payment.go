package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// Payment is one provider attempt against an order.
type Payment struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	PaymentMethod  enums.PaymentMethod  `gorm:"column:payment_method;not null"`
	TransactionID  *string              `gorm:"column:transaction_id"`
	AmountCents    int64                `gorm:"column:amount_cents;not null"`
	Status         enums.PaymentStatus  `gorm:"column:status;not null;default:'pending'"`
	PaymentDetails types.PaymentDetails `gorm:"column:payment_details;type:jsonb;not null"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// HasTransaction reports whether the provider id has been recorded.
func (p Payment) HasTransaction() bool {
	return p.TransactionID != nil && *p.TransactionID != ""
}
