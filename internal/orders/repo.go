package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classickits/jerseystore-backend/internal/repo"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

// Repository persists orders, their items and their payment attempts.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListFilter narrows order listings. A nil UserID lists every customer.
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

func itemsByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.created_at ASC")
}

func paymentsNewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("payments.created_at DESC")
}

// Create inserts the order together with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Payments").Create(order).Error
}

// FindByID loads the order with items and payment history.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", itemsByCreation).
		Preload("Payments", paymentsNewestFirst).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate loads the bare order row, locking it on Postgres.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	qb := r.db.WithContext(ctx)
	if qb.Dialector != nil && qb.Dialector.Name() == "postgres" {
		qb = qb.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := qb.Preload("Items", itemsByCreation).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns a newest-first page with items preloaded.
func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	params = params.Normalize()
	qb := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		qb = qb.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		qb = qb.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := qb.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := qb.
		Preload("Items", itemsByCreation).
		Order("created_at DESC").
		Order("id DESC").
		Scopes(repo.Page(params)).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// TransitionStatus moves the order from one status to another. The update only
// applies while the row still holds from; a false result means it did not.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateFulfillment sets tracking number and notes without touching status.
func (r *Repository) UpdateFulfillment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListExpiredPending returns pending orders created before cutoff that have
// no completed payment.
func (r *Repository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id AND p.status = ?)", enums.PaymentStatusCompleted).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CreatePayment inserts a payment attempt.
func (r *Repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *Repository) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListPayments returns the order's attempts, newest first.
func (r *Repository) ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// FindPaymentByTransaction looks up an attempt by the provider's id.
func (r *Repository) FindPaymentByTransaction(ctx context.Context, method enums.PaymentMethod, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND transaction_id = ?", method, transactionID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment applies column updates to one payment row.
func (r *Repository) UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListStalePendingPayments returns pending attempts that already carry a
// provider id and have not moved since cutoff.
func (r *Repository) ListStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND transaction_id IS NOT NULL AND transaction_id <> '' AND updated_at < ?", enums.PaymentStatusPending, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// AttachTransaction records the provider id on an attempt that has none yet.
// False means another request attached one first.
func (r *Repository) AttachTransaction(ctx context.Context, id uuid.UUID, transactionID string, updates map[string]any) (bool, error) {
	values := map[string]any{
		"transaction_id": transactionID,
		"updated_at":     time.Now().UTC(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND (transaction_id IS NULL OR transaction_id = '')", id).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionPayment moves an attempt between statuses, guarded on from.
func (r *Repository) TransitionPayment(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
