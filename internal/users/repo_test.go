package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/dbtest"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
)

func TestRepositoryCreateAndFindByEmailIgnoresCase(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "  Keeper@Example.com ",
		PasswordHash: "hash",
		FirstName:    "Gordon",
		LastName:     "Banks",
	})
	require.NoError(t, err)
	require.Equal(t, "keeper@example.com", created.Email)

	found, err := repo.FindByEmail(ctx, "KEEPER@example.COM")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = repo.Create(ctx, CreateUserDTO{Email: "keeper@example.com", PasswordHash: "x", FirstName: "a", LastName: "b"})
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err, "ux_users_email"))
}

func TestRepositoryUpdatesAndAdminLookup(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "admin@example.com", PasswordHash: "old", FirstName: "A", LastName: "D"})
	require.NoError(t, err)

	_, err = repo.FindAdmin(ctx, user.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "new"))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "new", reloaded.PasswordHash)
	require.NotNil(t, reloaded.LastLoginAt)
	require.True(t, reloaded.LastLoginAt.Equal(at))

	_, err = repo.GrantAdmin(ctx, user.ID, "super_admin", []string{"orders:write"})
	require.NoError(t, err)

	admin, err := repo.FindAdmin(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AdminRoleSuperAdmin, admin.Role)
	require.Equal(t, []string{"orders:write"}, admin.Permissions)

	_, err = repo.FindByID(ctx, uuid.New())
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestFromModelMarksAdmins(t *testing.T) {
	require.Nil(t, FromModel(nil, nil))

	user := CreateUserDTO{Email: "fan@example.com", FirstName: "F", LastName: "N"}.ToModel()
	customer := FromModel(user, nil)
	require.Equal(t, enums.UserRoleCustomer, customer.Role)
	require.Nil(t, customer.AdminRole)

	admin := FromModel(user, &models.AdminUser{UserID: user.ID, Role: enums.AdminRoleAdmin})
	require.Equal(t, enums.UserRoleAdmin, admin.Role)
	require.NotNil(t, admin.AdminRole)
	require.Equal(t, enums.AdminRoleAdmin, *admin.AdminRole)
}

func TestAdminGrantNormalizesRole(t *testing.T) {
	userID := uuid.New()

	grant := AdminGrant{UserID: userID, Role: "owner"}.ToModel()
	require.Equal(t, enums.AdminRoleAdmin, grant.Role)
	require.NotNil(t, grant.Permissions)
	require.Empty(t, grant.Permissions)

	perms := []string{"products:write"}
	super := AdminGrant{UserID: userID, Role: "super_admin", Permissions: perms}.ToModel()
	perms[0] = "changed"
	require.Equal(t, enums.AdminRoleSuperAdmin, super.Role)
	require.Equal(t, []string{"products:write"}, super.Permissions)
}

func TestGrantAdminTwiceConflicts(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "ops@example.com", PasswordHash: "h", FirstName: "O", LastName: "P"})
	require.NoError(t, err)
	_, err = repo.GrantAdmin(ctx, user.ID, "admin", nil)
	require.NoError(t, err)
	_, err = repo.GrantAdmin(ctx, user.ID, "admin", nil)
	require.Error(t, err)
}

func TestRepositoryMarkEmailVerified(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "new@example.com", PasswordHash: "h", FirstName: "N", LastName: "U"})
	require.NoError(t, err)
	require.False(t, user.EmailVerified)

	require.NoError(t, repo.MarkEmailVerified(ctx, user.ID))
	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, reloaded.EmailVerified)
}
