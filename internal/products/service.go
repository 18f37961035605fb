package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

const (
	minYear = 1900
	maxYear = 2100

	skuConstraint = "ux_products_sku"
)

// Service exposes catalog reads for shoppers and catalog management for admins.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListFeatured(ctx context.Context, limit int) ([]ProductDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	SetInventory(ctx context.Context, id uuid.UUID, inventory int) (*ProductDTO, error)
}

// ImageInput is one image URL supplied on create or update.
type ImageInput struct {
	ImageURL     string  `json:"imageUrl" validate:"required,url"`
	AltText      *string `json:"altText,omitempty" validate:"omitempty,max=255"`
	DisplayOrder *int    `json:"displayOrder,omitempty" validate:"omitempty,min=0"`
}

// CreateProductInput is the admin payload for a new listing.
type CreateProductInput struct {
	Name        string                 `json:"name" validate:"required,max=255"`
	Team        string                 `json:"team" validate:"required,max=255"`
	Year        int                    `json:"year" validate:"required,min=1900,max=2100"`
	Price       decimal.Decimal        `json:"price" validate:"required"`
	Condition   enums.ProductCondition `json:"condition" validate:"required,oneof=Mint Excellent Good Fair"`
	Size        enums.ProductSize      `json:"size" validate:"required,oneof=XS S M L XL XXL"`
	Description *string                `json:"description,omitempty"`
	SKU         string                 `json:"sku" validate:"required,max=100"`
	Inventory   *int                   `json:"inventory,omitempty" validate:"omitempty,min=0"`
	Featured    bool                   `json:"featured"`
	Images      []ImageInput           `json:"images" validate:"omitempty,dive"`
}

// UpdateProductInput is a partial update; nil fields are left untouched.
// Images, when present, replace the full set.
type UpdateProductInput struct {
	Name        *string                 `json:"name,omitempty" validate:"omitempty,max=255"`
	Team        *string                 `json:"team,omitempty" validate:"omitempty,max=255"`
	Year        *int                    `json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	Price       *decimal.Decimal        `json:"price,omitempty"`
	Condition   *enums.ProductCondition `json:"condition,omitempty"`
	Size        *enums.ProductSize      `json:"size,omitempty"`
	Description *string                 `json:"description,omitempty"`
	SKU         *string                 `json:"sku,omitempty" validate:"omitempty,max=100"`
	Inventory   *int                    `json:"inventory,omitempty" validate:"omitempty,min=0"`
	Featured    *bool                   `json:"featured,omitempty"`
	Images      *[]ImageInput           `json:"images,omitempty"`
}

type service struct {
	repo *Repository
	tx   db.TxRunner
	now  func() time.Time
}

// NewService builds the catalog service.
func NewService(repo *Repository, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{repo: repo, tx: tx, now: time.Now}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	params := input.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, input.Filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return &ProductListResult{
		Products:   out,
		Pagination: pagination.NewMeta(params, total),
	}, nil
}

func (s *service) ListFeatured(ctx context.Context, limit int) ([]ProductDTO, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	rows, err := s.repo.ListFeatured(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list featured products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return NewProductDTO(product), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	priceCents, err := priceToCents(input.Price)
	if err != nil {
		return nil, err
	}
	if err := validateAttributes(input.Year, input.Condition, input.Size); err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(input.SKU)
	if sku == "" || strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Team) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name, team and sku are required")
	}

	inventory := 1
	if input.Inventory != nil {
		if *input.Inventory < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory cannot be negative")
		}
		inventory = *input.Inventory
	}

	product := &models.Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Team:        strings.TrimSpace(input.Team),
		Year:        input.Year,
		PriceCents:  priceCents,
		Condition:   input.Condition,
		Size:        input.Size,
		Description: input.Description,
		SKU:         sku,
		Inventory:   inventory,
		Featured:    input.Featured,
	}
	product.Images = buildImages(product.ID, input.Images)

	if _, err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, skuConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists").WithDetails(map[string]string{"sku": sku})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		if err := applyUpdate(product, input); err != nil {
			return err
		}
		if _, err := repo.UpdateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, skuConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists").WithDetails(map[string]string{"sku": product.SKU})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
		}
		if input.Images != nil {
			if err := repo.ReplaceImages(ctx, id, buildImages(id, *input.Images)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replace images")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	var deleted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.WithTx(tx).DeleteProduct(ctx, id)
		return err
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "product has order history")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) SetInventory(ctx context.Context, id uuid.UUID, inventory int) (*ProductDTO, error) {
	if inventory < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory cannot be negative")
	}
	updated, err := s.repo.SetInventory(ctx, id, inventory)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update inventory")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.GetProduct(ctx, id)
}

func mapLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
}

func priceToCents(price decimal.Decimal) (int64, error) {
	if !price.IsPositive() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	cents, err := types.DecimalToCents(price)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return cents, nil
}

func validateAttributes(year int, condition enums.ProductCondition, size enums.ProductSize) error {
	if year < minYear || year > maxYear {
		return pkgerrors.New(pkgerrors.CodeValidation, "year must be between 1900 and 2100")
	}
	if !condition.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid condition")
	}
	if !size.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid size")
	}
	return nil
}

func applyUpdate(product *models.Product, input UpdateProductInput) error {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Team != nil {
		product.Team = strings.TrimSpace(*input.Team)
	}
	if input.Year != nil {
		product.Year = *input.Year
	}
	if input.Price != nil {
		cents, err := priceToCents(*input.Price)
		if err != nil {
			return err
		}
		product.PriceCents = cents
	}
	if input.Condition != nil {
		product.Condition = *input.Condition
	}
	if input.Size != nil {
		product.Size = *input.Size
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.SKU != nil {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Inventory != nil {
		if *input.Inventory < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "inventory cannot be negative")
		}
		product.Inventory = *input.Inventory
	}
	if input.Featured != nil {
		product.Featured = *input.Featured
	}
	if product.Name == "" || product.Team == "" || product.SKU == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name, team and sku cannot be blank")
	}
	return validateAttributes(product.Year, product.Condition, product.Size)
}

func buildImages(productID uuid.UUID, inputs []ImageInput) []models.ProductImage {
	images := make([]models.ProductImage, 0, len(inputs))
	for i, in := range inputs {
		order := i
		if in.DisplayOrder != nil {
			order = *in.DisplayOrder
		}
		images = append(images, models.ProductImage{
			ID:           uuid.New(),
			ProductID:    productID,
			ImageURL:     strings.TrimSpace(in.ImageURL),
			AltText:      in.AltText,
			DisplayOrder: order,
		})
	}
	return images
}
