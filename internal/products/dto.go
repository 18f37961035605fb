package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// ProductDTO represents the catalog payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Team        string                 `json:"team"`
	Year        int                    `json:"year"`
	Price       string                 `json:"price"`
	Condition   enums.ProductCondition `json:"condition"`
	Size        enums.ProductSize      `json:"size"`
	Description *string                `json:"description,omitempty"`
	SKU         string                 `json:"sku"`
	Inventory   int                    `json:"inventory"`
	Featured    bool                   `json:"featured"`
	Images      []ImageDTO             `json:"images"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// ImageDTO is one ordered product image.
type ImageDTO struct {
	ID           uuid.UUID `json:"id"`
	ImageURL     string    `json:"imageUrl"`
	AltText      *string   `json:"altText,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Team:        p.Team,
		Year:        p.Year,
		Price:       types.FormatCents(p.PriceCents),
		Condition:   p.Condition,
		Size:        p.Size,
		Description: p.Description,
		SKU:         p.SKU,
		Inventory:   p.Inventory,
		Featured:    p.Featured,
		Images:      make([]ImageDTO, 0, len(p.Images)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, img := range p.Images {
		dto.Images = append(dto.Images, ImageDTO{
			ID:           img.ID,
			ImageURL:     img.ImageURL,
			AltText:      img.AltText,
			DisplayOrder: img.DisplayOrder,
		})
	}
	return dto
}

// Snapshot captures the product as it will be embedded on an order item.
func Snapshot(p models.Product, at time.Time) types.ProductSnapshot {
	snap := types.ProductSnapshot{
		ID:         p.ID,
		Name:       p.Name,
		Team:       p.Team,
		Year:       p.Year,
		PriceCents: p.PriceCents,
		Condition:  string(p.Condition),
		Size:       string(p.Size),
		SKU:        p.SKU,
		CapturedAt: at.UTC(),
	}
	if p.Description != nil {
		snap.Description = *p.Description
	}
	if len(p.Images) > 0 {
		snap.ImageURL = p.Images[0].ImageURL
	}
	return snap
}
