package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/repo"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
)

// Repository persists the per-user address book.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

// ListByUser returns the default address first, then newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// FindForUser loads an address only when it belongs to userID.
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	var row models.Address
	if err := r.DB(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ClearDefault unsets the default flag on every address owned by userID.
func (r *Repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		UpdateColumn("is_default", false).Error
}

func (r *Repository) Create(ctx context.Context, row *models.Address) error {
	return r.DB(ctx).Create(row).Error
}

// Delete removes the address and reports whether a row was owned by userID.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Address{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
