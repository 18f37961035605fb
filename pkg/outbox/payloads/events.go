package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/enums"
)

// OrderLine is the compact line summary carried on order.created.
type OrderLine struct {
	ProductID      uuid.UUID `json:"productId"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
}

// OrderCreatedEvent is emitted once the order, its items and the inventory
// reservation have committed.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"orderId"`
	UserID        uuid.UUID           `json:"userId"`
	TotalCents    int64               `json:"totalCents"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Items         []OrderLine         `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// OrderPaidEvent is emitted when a payment completes and the order moves to processing.
type OrderPaidEvent struct {
	OrderID       uuid.UUID           `json:"orderId"`
	PaymentID     uuid.UUID           `json:"paymentId"`
	Provider      enums.PaymentMethod `json:"provider"`
	TransactionID string              `json:"transactionId"`
	AmountCents   int64               `json:"amountCents"`
	PaidAt        time.Time           `json:"paidAt"`
}

// PaymentFailedEvent is emitted when a provider reports a failed attempt.
type PaymentFailedEvent struct {
	OrderID       uuid.UUID           `json:"orderId"`
	PaymentID     uuid.UUID           `json:"paymentId"`
	Provider      enums.PaymentMethod `json:"provider"`
	TransactionID string              `json:"transactionId,omitempty"`
	Reason        string              `json:"reason,omitempty"`
	FailedAt      time.Time           `json:"failedAt"`
}

// OrderStatusChangedEvent is emitted on admin transitions and order expiry.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"orderId"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	TrackingNumber *string           `json:"trackingNumber,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	ChangedAt      time.Time         `json:"changedAt"`
}

// PaymentRefundedEvent is emitted after a provider accepts a refund.
type PaymentRefundedEvent struct {
	OrderID     uuid.UUID           `json:"orderId"`
	PaymentID   uuid.UUID           `json:"paymentId"`
	Provider    enums.PaymentMethod `json:"provider"`
	RefundID    string              `json:"refundId"`
	AmountCents int64               `json:"amountCents"`
	RefundedAt  time.Time           `json:"refundedAt"`
}
