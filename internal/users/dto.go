package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
)

// UserDTO is the public account shape. It never carries the password hash.
type UserDTO struct {
	ID            uuid.UUID        `json:"id"`
	Email         string           `json:"email"`
	FirstName     string           `json:"firstName"`
	LastName      string           `json:"lastName"`
	Phone         *string          `json:"phone,omitempty"`
	EmailVerified bool             `json:"emailVerified"`
	Role          enums.UserRole   `json:"role"`
	AdminRole     *enums.AdminRole `json:"adminRole,omitempty"`
	Permissions   []string         `json:"permissions,omitempty"`
	LastLoginAt   *time.Time       `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// FromModel maps a user row to its public shape. The role is derived from
// the admin_users row, so a nil admin means customer.
func FromModel(u *models.User, admin *models.AdminUser) *UserDTO {
	if u == nil {
		return nil
	}
	out := UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		Role:          enums.UserRoleCustomer,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
	if admin != nil {
		out.Role = enums.UserRoleAdmin
		out.AdminRole = &admin.Role
		out.Permissions = admin.Permissions
	}
	return &out
}

// CreateUserDTO is a registration that already passed validation and hashing.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		Phone:        c.Phone,
	}
}

// AdminGrant describes an admin_users row. Unknown roles fall back to admin.
type AdminGrant struct {
	UserID      uuid.UUID
	Role        string
	Permissions []string
}

func (g AdminGrant) ToModel() *models.AdminUser {
	role := enums.AdminRoleAdmin
	if enums.AdminRole(g.Role) == enums.AdminRoleSuperAdmin {
		role = enums.AdminRoleSuperAdmin
	}
	return &models.AdminUser{
		ID:          uuid.New(),
		UserID:      g.UserID,
		Role:        role,
		Permissions: append([]string{}, g.Permissions...),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
