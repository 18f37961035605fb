package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/users"
	pkgAuth "github.com/classickits/jerseystore-backend/pkg/auth"
	"github.com/classickits/jerseystore-backend/pkg/auth/onetime"
	"github.com/classickits/jerseystore-backend/pkg/auth/session"
	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error)
	Login(ctx context.Context, req LoginRequest) (*SessionResponse, error)
	Refresh(ctx context.Context, accessToken string, req RefreshRequest) (*SessionResponse, error)
	Logout(ctx context.Context, accessToken string) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error)
	CheckResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) (*users.UserDTO, error)
	VerifyEmail(ctx context.Context, token string) (*users.UserDTO, error)
}

type service struct {
	users       userRepository
	session     sessionManager
	tokens      oneTimeTokens
	app         config.AppConfig
	accounts    config.AccountsConfig
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindAdmin(ctx context.Context, userID uuid.UUID) (*models.AdminUser, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type oneTimeTokens interface {
	Issue(ctx context.Context, purpose onetime.Purpose, userID uuid.UUID, ttl time.Duration) (string, error)
	Peek(ctx context.Context, purpose onetime.Purpose, token string) (uuid.UUID, error)
	Consume(ctx context.Context, purpose onetime.Purpose, token string) (uuid.UUID, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Tokens         oneTimeTokens
	AppConfig      config.AppConfig
	AccountsConfig config.AccountsConfig
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	return &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		tokens:      params.Tokens,
		app:         params.AppConfig,
		accounts:    params.AccountsConfig,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	s.upgradeHash(ctx, user, req.Password)

	admin, err := s.lookupAdmin(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, now, user, admin)
}

func (s *service) Refresh(ctx context.Context, accessToken string, req RefreshRequest) (*SessionResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	newAccessID, refreshToken, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	// Role is re-derived so a revoked admin grant takes effect on the next refresh.
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	admin, err := s.lookupAdmin(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.mint(s.now(), user, admin, newAccessID)
	if err != nil {
		return nil, err
	}
	return &SessionResponse{
		AccessToken:  token,
		RefreshToken: refreshToken,
		User:         users.FromModel(user, admin),
	}, nil
}

func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := strings.TrimSpace(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, strings.ToLower(input))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// upgradeHash re-encodes the password when the configured argon2 cost has
// grown. Failures are logged and never block the login.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "password rehash failed")
		}
		return
	}
	user.PasswordHash = hash
}

func (s *service) lookupAdmin(ctx context.Context, userID uuid.UUID) (*models.AdminUser, error) {
	admin, err := s.users.FindAdmin(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup admin")
	}
	return admin, nil
}

func (s *service) issueSession(ctx context.Context, now time.Time, user *models.User, admin *models.AdminUser) (*SessionResponse, error) {
	accessID := session.NewAccessID()
	token, err := s.mint(now, user, admin, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return &SessionResponse{
		AccessToken:  token,
		RefreshToken: refreshToken,
		User:         users.FromModel(user, admin),
	}, nil
}

func (s *service) mint(now time.Time, user *models.User, admin *models.AdminUser, accessID string) (string, error) {
	payload := pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   enums.UserRoleCustomer,
		JTI:    accessID,
	}
	if admin != nil {
		role := admin.Role
		payload.Role = enums.UserRoleAdmin
		payload.AdminRole = &role
	}
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}
