package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/enums"
)

type identityKey struct{}

// Identity is the authenticated caller as established by Auth.
type Identity struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	SessionID string
}

func (id Identity) IsAdmin() bool {
	return id.Role == enums.UserRoleAdmin
}

// WithIdentity stores the caller on ctx. Tests use it to skip token minting.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom reports false on routes that did not pass through Auth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != uuid.Nil
}
