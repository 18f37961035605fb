package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// OrderDTO is the API shape of an order. Money fields are decimal strings.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	TotalPrice      string            `json:"totalPrice"`
	Status          enums.OrderStatus `json:"status"`
	ShippingAddress types.Address     `json:"shippingAddress"`
	TrackingNumber  *string           `json:"trackingNumber,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	Items           []OrderItemDTO    `json:"items"`
	Payments        []PaymentDTO      `json:"payments,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type OrderItemDTO struct {
	ID              uuid.UUID             `json:"id"`
	ProductID       uuid.UUID             `json:"productId"`
	Quantity        int                   `json:"quantity"`
	Price           string                `json:"price"`
	LineTotal       string                `json:"lineTotal"`
	ProductSnapshot types.ProductSnapshot `json:"productSnapshot"`
}

type PaymentDTO struct {
	ID             uuid.UUID            `json:"id"`
	OrderID        uuid.UUID            `json:"orderId"`
	PaymentMethod  enums.PaymentMethod  `json:"paymentMethod"`
	TransactionID  *string              `json:"transactionId,omitempty"`
	Amount         string               `json:"amount"`
	Status         enums.PaymentStatus  `json:"status"`
	PaymentDetails types.PaymentDetails `json:"paymentDetails"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// OrderList is one page of orders.
type OrderList struct {
	Orders     []OrderDTO      `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		TotalPrice:      types.FormatCents(order.TotalCents),
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			Price:           types.FormatCents(item.PriceCents),
			LineTotal:       types.FormatCents(item.LineTotalCents()),
			ProductSnapshot: item.ProductSnapshot,
		})
	}
	for _, payment := range order.Payments {
		dto.Payments = append(dto.Payments, NewPaymentDTO(payment))
	}
	return dto
}

func NewPaymentDTO(p models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:             p.ID,
		OrderID:        p.OrderID,
		PaymentMethod:  p.PaymentMethod,
		TransactionID:  p.TransactionID,
		Amount:         types.FormatCents(p.AmountCents),
		Status:         p.Status,
		PaymentDetails: p.PaymentDetails,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
