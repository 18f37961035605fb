package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/enums"
)

// AdminUser grants back-office access to an existing user.
type AdminUser struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Role        enums.AdminRole `gorm:"column:role;not null;default:'admin'"`
	Permissions []string        `gorm:"column:permissions;type:jsonb;serializer:json"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
