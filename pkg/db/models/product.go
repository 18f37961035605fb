package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/enums"
)

// Product is a single jersey listing. Inventory never drops below zero.
type Product struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string                 `gorm:"column:name;not null"`
	Team        string                 `gorm:"column:team;not null"`
	Year        int                    `gorm:"column:year;not null"`
	PriceCents  int64                  `gorm:"column:price_cents;not null"`
	Condition   enums.ProductCondition `gorm:"column:condition;not null"`
	Size        enums.ProductSize      `gorm:"column:size;not null"`
	Description *string                `gorm:"column:description"`
	SKU         string                 `gorm:"column:sku;not null;uniqueIndex"`
	Inventory   int                    `gorm:"column:inventory;not null;default:1"`
	Featured    bool                   `gorm:"column:featured;not null;default:false"`
	Images      []ProductImage         `gorm:"foreignKey:ProductID;references:ID"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
