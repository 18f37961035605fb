package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/internal/users"
	"github.com/classickits/jerseystore-backend/pkg/auth/onetime"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/security"
)

const (
	resetRequestedMessage = "if an account with that email exists, a password reset link has been sent"
	badResetTokenMessage  = "invalid or expired reset token"
	badVerifyTokenMessage = "invalid or expired verification token"
)

// ForgotPassword answers the same way whether or not the email is known.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	resp := &ForgotPasswordResponse{Message: resetRequestedMessage}
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if db.IsNotFound(err) {
		return resp, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	token, err := s.tokens.Issue(ctx, onetime.PasswordReset, user.ID, s.accounts.ResetTokenTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset token")
	}
	link := s.link("/auth/reset-password", token)
	s.announce(ctx, user.ID, "password reset link issued", link)
	if s.app.IsDev() {
		resp.ResetURL = link
	}
	return resp, nil
}

// CheckResetToken lets the reset form reject a dead link before the
// customer types a new password.
func (s *service) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.tokens.Peek(ctx, onetime.PasswordReset, token)
	return tokenError(err, badResetTokenMessage)
}

// ResetPassword checks the new password before spending the token, so a
// rejected password leaves the link usable.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*users.UserDTO, error) {
	if err := security.CheckPasswordPolicy(req.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	userID, err := s.tokens.Consume(ctx, onetime.PasswordReset, req.Token)
	if err := tokenError(err, badResetTokenMessage); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if db.IsNotFound(err) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, badResetTokenMessage)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store password")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "password reset")
	}
	return s.describe(ctx, user)
}

// VerifyEmail spends a verification token and marks the address confirmed.
func (s *service) VerifyEmail(ctx context.Context, token string) (*users.UserDTO, error) {
	userID, err := s.tokens.Consume(ctx, onetime.EmailVerify, token)
	if err := tokenError(err, badVerifyTokenMessage); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if db.IsNotFound(err) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, badVerifyTokenMessage)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark email verified")
	}
	user.EmailVerified = true
	return s.describe(ctx, user)
}

// sendVerification issues the link handed out at signup. A failure is
// logged and the signup still succeeds.
func (s *service) sendVerification(ctx context.Context, userID uuid.UUID) string {
	token, err := s.tokens.Issue(ctx, onetime.EmailVerify, userID, s.accounts.VerifyTokenTTL)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"user_id": userID.String(),
				"error":   err.Error(),
			}), "verification token not issued")
		}
		return ""
	}
	link := s.link("/api/auth/verify-email", token)
	s.announce(ctx, userID, "verification link issued", link)
	if s.app.IsDev() {
		return link
	}
	return ""
}

// announce records an issued link. The link itself is only logged in dev.
// TODO: deliver reset and verification links by email once a mail provider is configured.
func (s *service) announce(ctx context.Context, userID uuid.UUID, msg, link string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithUserID(ctx, userID.String())
	if s.app.IsDev() {
		ctx = s.logg.WithField(ctx, "link", link)
	}
	s.logg.Info(ctx, msg)
}

func (s *service) link(path, token string) string {
	return strings.TrimRight(s.app.PublicBaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func (s *service) describe(ctx context.Context, user *models.User) (*users.UserDTO, error) {
	admin, err := s.lookupAdmin(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user, admin), nil
}

func tokenError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, onetime.ErrInvalidToken):
		return pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "token store unavailable")
}
