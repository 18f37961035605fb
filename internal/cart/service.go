package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// Service exposes the per-user cart.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

// AddItemInput is the POST /cart body. Quantity defaults to 1.
type AddItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"omitempty,min=1,max=100"`
}

// UpdateItemInput is the PUT /cart/{productId} body.
type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100"`
}

// CartDTO is the cart payload.
type CartDTO struct {
	Items    []ItemDTO `json:"items"`
	Count    int       `json:"count"`
	Subtotal string    `json:"subtotal"`
}

// ItemDTO is one cart line with its live product.
type ItemDTO struct {
	ID        uuid.UUID           `json:"id"`
	ProductID uuid.UUID           `json:"productId"`
	Quantity  int                 `json:"quantity"`
	Product   *product.ProductDTO `json:"product,omitempty"`
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products *product.Repository
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products *product.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return BuildCartDTO(rows), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		p, err := s.loadProduct(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}

		existing := 0
		if line, err := repo.Find(ctx, userID, input.ProductID); err == nil {
			existing = line.Quantity
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		if err := checkStock(p, existing+qty); err != nil {
			return err
		}

		item := &models.CartItem{UserID: userID, ProductID: input.ProductID, Quantity: qty}
		if err := repo.AddQuantity(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		p, err := s.loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if err := checkStock(p, quantity); err != nil {
			return err
		}
		updated, err := s.repo.WithTx(tx).SetQuantity(ctx, userID, productID, quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	removed, err := s.repo.Remove(ctx, userID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) loadProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	p, err := s.products.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return p, nil
}

func checkStock(p *models.Product, quantity int) error {
	if quantity > p.Inventory {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient inventory").WithDetails(map[string]any{
			"productId": p.ID,
			"name":      p.Name,
			"available": p.Inventory,
			"requested": quantity,
		})
	}
	return nil
}

// BuildCartDTO renders cart lines. Subtotal uses live catalog prices.
func BuildCartDTO(rows []models.CartItem) *CartDTO {
	out := &CartDTO{Items: make([]ItemDTO, 0, len(rows))}
	var subtotal int64
	for _, row := range rows {
		item := ItemDTO{ID: row.ID, ProductID: row.ProductID, Quantity: row.Quantity}
		if row.Product != nil {
			item.Product = product.NewProductDTO(row.Product)
			subtotal += row.Product.PriceCents * int64(row.Quantity)
		}
		out.Items = append(out.Items, item)
		out.Count += row.Quantity
	}
	out.Subtotal = types.FormatCents(subtotal)
	return out
}
