package auth

import (
	"github.com/classickits/jerseystore-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the storefront signup payload.
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// RefreshRequest carries the refresh token paired with the presented access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// SessionResponse contains the tokens and user produced by login, signup and refresh.
// VerificationURL is only filled at signup in development.
type SessionResponse struct {
	AccessToken     string         `json:"accessToken"`
	RefreshToken    string         `json:"refreshToken"`
	User            *users.UserDTO `json:"user"`
	VerificationURL string         `json:"verificationUrl,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordResponse carries the reset link only in development.
type ForgotPasswordResponse struct {
	Message  string `json:"message"`
	ResetURL string `json:"resetUrl,omitempty"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}
