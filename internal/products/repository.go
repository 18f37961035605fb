package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/repo"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC")
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetDetail loads the product with its images in display order.
func (r *Repository) GetDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the given products with images, keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// List returns one filtered page, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, int64, error) {
	qb := applyFilters(r.db.WithContext(ctx).Model(&models.Product{}), filters)

	var total int64
	if err := qb.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var rows []models.Product
	err := qb.
		Preload("Images", orderedImages).
		Order("created_at DESC").
		Order("id DESC").
		Scopes(repo.Page(params)).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func applyFilters(qb *gorm.DB, filter ListFilters) *gorm.DB {
	if team := strings.TrimSpace(filter.Team); team != "" {
		qb = qb.Where("LOWER(team) LIKE ?", "%"+strings.ToLower(team)+"%")
	}
	if filter.Year != nil {
		qb = qb.Where("year = ?", *filter.Year)
	}
	if filter.Condition != nil {
		qb = qb.Where("condition = ?", *filter.Condition)
	}
	if filter.Size != nil {
		qb = qb.Where("size = ?", *filter.Size)
	}
	if filter.MinPriceCents != nil {
		qb = qb.Where("price_cents >= ?", *filter.MinPriceCents)
	}
	if filter.MaxPriceCents != nil {
		qb = qb.Where("price_cents <= ?", *filter.MaxPriceCents)
	}
	if filter.Featured != nil {
		qb = qb.Where("featured = ?", *filter.Featured)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(team) LIKE ? OR LOWER(sku) LIKE ?)", pattern, pattern, pattern)
	}
	return qb
}

// ListFeatured returns in-stock featured products, newest first.
func (r *Repository) ListFeatured(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("featured = ? AND inventory > 0", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CreateProduct inserts a new product row together with its images.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct saves the product columns. Images are managed separately.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Omit("Images").Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ReplaceImages swaps the product's image set.
func (r *Repository) ReplaceImages(ctx context.Context, productID uuid.UUID, images []models.ProductImage) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	return tx.Create(&images).Error
}

// DeleteProduct removes a product and its images. It reports false when no row matched.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
		return false, err
	}
	res := tx.Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetInventory overwrites the stock count. It reports false when no row matched.
func (r *Repository) SetInventory(ctx context.Context, id uuid.UUID, inventory int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("inventory", inventory)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Reserve decrements inventory only when enough stock remains. A false result
// means the product is missing or short; nothing was written.
func (r *Repository) Reserve(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND inventory >= ?", id, qty).
		UpdateColumn("inventory", gorm.Expr("inventory - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Restock returns previously reserved units to inventory.
func (r *Repository) Restock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("inventory", gorm.Expr("inventory + ?", qty)).Error
}
