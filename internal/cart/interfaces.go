package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Find(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error)
	AddQuantity(ctx context.Context, item *models.CartItem) error
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (bool, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
