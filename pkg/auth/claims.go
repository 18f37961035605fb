package auth

import (
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Email     string
	Role      enums.UserRole
	AdminRole *enums.AdminRole
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID    uuid.UUID        `json:"user_id"`
	Email     string           `json:"email,omitempty"`
	Role      enums.UserRole   `json:"role"`
	AdminRole *enums.AdminRole `json:"admin_role,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token was minted for an admin_users member.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.UserRoleAdmin
}
