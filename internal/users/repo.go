package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/repo"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

const adminExists = "EXISTS (SELECT 1 FROM admin_users au WHERE au.user_id = users.id)"

// Repository reads and writes the users and admin_users tables.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

// ListFilter narrows the back-office user listing. Search matches email and
// names case-insensitively.
type ListFilter struct {
	Search string
	Role   *enums.UserRole
}

// List returns a page of users, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.User, int64, error) {
	qb := r.DB(ctx).Model(&models.User{})
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		qb = qb.Where("(lower(email) LIKE ? OR lower(first_name) LIKE ? OR lower(last_name) LIKE ?)", like, like, like)
	}
	if filter.Role != nil {
		if *filter.Role == enums.UserRoleAdmin {
			qb = qb.Where(adminExists)
		} else {
			qb = qb.Where("NOT " + adminExists)
		}
	}

	var total int64
	if err := qb.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.User
	err := qb.
		Order("created_at DESC").
		Order("id DESC").
		Scopes(repo.Page(params)).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// AdminsFor maps each listed user id that holds an admin grant to that grant.
func (r *Repository) AdminsFor(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.AdminUser, error) {
	out := make(map[uuid.UUID]*models.AdminUser, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []models.AdminUser
	if err := r.DB(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].UserID] = &rows[i]
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail matches on the normalized address, so lookups ignore case and
// surrounding whitespace.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](r.DB(ctx).Where("lower(email) = ?", normalizeEmail(email)))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return first[models.User](r.DB(ctx).Where("id = ?", id))
}

// FindAdmin returns gorm.ErrRecordNotFound for a plain customer.
func (r *Repository) FindAdmin(ctx context.Context, userID uuid.UUID) (*models.AdminUser, error) {
	return first[models.AdminUser](r.DB(ctx).Where("user_id = ?", userID))
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.touch(ctx, id, "last_login_at", at)
}

// UpdatePasswordHash stores a hash re-encoded with current argon2 parameters.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.touch(ctx, id, "password_hash", hash)
}

func (r *Repository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return r.touch(ctx, id, "email_verified", true)
}

// UpdateProfile applies column updates and bumps updated_at.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.DB(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

// SaveAdmin rewrites an existing grant's role and permissions.
func (r *Repository) SaveAdmin(ctx context.Context, admin *models.AdminUser) error {
	return r.DB(ctx).Save(admin).Error
}

func (r *Repository) RevokeAdmin(ctx context.Context, userID uuid.UUID) error {
	return r.DB(ctx).Where("user_id = ?", userID).Delete(&models.AdminUser{}).Error
}

// Delete removes the user and any admin grant. Addresses and cart rows go
// with the user through ON DELETE CASCADE; orders block the delete.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.RevokeAdmin(ctx, id); err != nil {
		return err
	}
	return r.DB(ctx).Where("id = ?", id).Delete(&models.User{}).Error
}

// GrantAdmin promotes an existing user. A second grant for the same user
// fails on the admin_users unique index.
func (r *Repository) GrantAdmin(ctx context.Context, userID uuid.UUID, role string, permissions []string) (*models.AdminUser, error) {
	grant := AdminGrant{UserID: userID, Role: role, Permissions: permissions}.ToModel()
	if err := r.DB(ctx).Create(grant).Error; err != nil {
		return nil, err
	}
	return grant, nil
}

// touch writes one column without bumping updated_at or running hooks.
func (r *Repository) touch(ctx context.Context, id uuid.UUID, column string, value any) error {
	return r.DB(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn(column, value).Error
}

func first[T any](q *gorm.DB) (*T, error) {
	var row T
	if err := q.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
