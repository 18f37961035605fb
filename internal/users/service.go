package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
	"github.com/classickits/jerseystore-backend/pkg/security"
)

// Service is the back-office view of customer and admin accounts. Role
// changes reach a user's token on their next refresh.
type Service interface {
	List(ctx context.Context, input ListInput) (*UserList, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input UpdateUserInput) (*UserDTO, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

type ListInput struct {
	Search     string
	Role       *enums.UserRole
	Pagination pagination.Params
}

type UserList struct {
	Users      []UserDTO       `json:"users"`
	Pagination pagination.Meta `json:"pagination"`
}

// UpdateUserInput is a partial update. Nil fields are left alone; an empty
// phone clears it. IsAdmin grants or revokes back-office access.
type UpdateUserInput struct {
	Email         *string          `json:"email" validate:"omitempty,email"`
	Password      *string          `json:"password" validate:"omitempty,min=8"`
	FirstName     *string          `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName      *string          `json:"lastName" validate:"omitempty,min=1,max=100"`
	Phone         *string          `json:"phone" validate:"omitempty,max=32"`
	EmailVerified *bool            `json:"emailVerified"`
	IsAdmin       *bool            `json:"isAdmin"`
	AdminRole     *enums.AdminRole `json:"adminRole" validate:"omitempty,oneof=admin super_admin"`
	Permissions   []string         `json:"permissions" validate:"omitempty,dive,required,max=64"`
}

type ServiceParams struct {
	Repo           *Repository
	Tx             db.TxRunner
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type service struct {
	repo        *Repository
	tx          db.TxRunner
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*UserList, error) {
	if input.Role != nil && !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	params := input.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, ListFilter{Search: input.Search, Role: input.Role}, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	admins, err := s.repo.AdminsFor(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load admin grants")
	}

	out := &UserList{
		Users:      make([]UserDTO, 0, len(rows)),
		Pagination: pagination.NewMeta(params, total),
	}
	for i := range rows {
		out.Users = append(out.Users, *FromModel(&rows[i], admins[rows[i].ID]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	return s.load(ctx, s.repo, id)
}

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	if input.IsAdmin != nil && !*input.IsAdmin && actorID == id {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot revoke your own admin access")
	}
	updates, err := s.profileUpdates(input)
	if err != nil {
		return nil, err
	}

	var out *UserDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, id); err != nil {
			return err
		}
		if err := repo.UpdateProfile(ctx, id, updates); err != nil {
			if db.IsUniqueViolation(err, "ux_users_email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
		}
		if err := applyAdminChange(ctx, repo, id, input); err != nil {
			return err
		}
		out, err = s.load(ctx, repo, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id":  id.String(),
			"actor_id": actorID.String(),
			"role":     string(out.Role),
		}), "user updated")
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete your own account")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, id); err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "user has orders and cannot be deleted")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id":  id.String(),
			"actor_id": actorID.String(),
		}), "user deleted")
	}
	return nil
}

func (s *service) profileUpdates(input UpdateUserInput) (map[string]any, error) {
	updates := map[string]any{}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be blank")
		}
		updates["email"] = email
	}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Phone != nil {
		if phone := strings.TrimSpace(*input.Phone); phone != "" {
			updates["phone"] = phone
		} else {
			updates["phone"] = nil
		}
	}
	if input.EmailVerified != nil {
		updates["email_verified"] = *input.EmailVerified
	}
	if input.Password != nil {
		if err := security.CheckPasswordPolicy(*input.Password); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		updates["password_hash"] = hash
	}
	return updates, nil
}

// applyAdminChange grants, revokes or edits the admin row. Role and
// permissions on a customer without IsAdmin=true are ignored.
func applyAdminChange(ctx context.Context, repo *Repository, id uuid.UUID, input UpdateUserInput) error {
	current, err := repo.FindAdmin(ctx, id)
	if err != nil && !db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup admin")
	}

	switch {
	case input.IsAdmin != nil && !*input.IsAdmin:
		if current == nil {
			return nil
		}
		if err := repo.RevokeAdmin(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke admin")
		}
	case current == nil:
		if input.IsAdmin == nil {
			return nil
		}
		role := ""
		if input.AdminRole != nil {
			role = string(*input.AdminRole)
		}
		if _, err := repo.GrantAdmin(ctx, id, role, input.Permissions); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "grant admin")
		}
	default:
		if input.AdminRole == nil && input.Permissions == nil {
			return nil
		}
		if input.AdminRole != nil {
			current.Role = *input.AdminRole
		}
		if input.Permissions != nil {
			current.Permissions = append([]string{}, input.Permissions...)
		}
		if err := repo.SaveAdmin(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update admin")
		}
	}
	return nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*UserDTO, error) {
	user, err := repo.FindByID(ctx, id)
	if db.IsNotFound(err) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	admin, err := repo.FindAdmin(ctx, id)
	if err != nil && !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup admin")
	}
	return FromModel(user, admin), nil
}
