package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a new account. The role decides which of the
// profile blocks is required; the service validates the variant fields.
type RegisterRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	FullName string   `json:"full_name" validate:"required,min=2,max=100"`
	Role     UserRole `json:"role" validate:"required,oneof=TEACHER STUDENT"`

	Subject         string `json:"subject,omitempty"`
	Qualification   string `json:"qualification,omitempty"`
	ExperienceYears *int   `json:"experience_years,omitempty" validate:"omitempty,gte=0"`

	Grade     string   `json:"grade,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued token and profile.
type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	User      *User  `json:"user"`
}

// UpdateProfileRequest mutates name and the role-conditional fields.
// Email and role are immutable.
type UpdateProfileRequest struct {
	FullName string `json:"full_name" validate:"omitempty,min=2,max=100"`

	Subject         string `json:"subject,omitempty"`
	Qualification   string `json:"qualification,omitempty"`
	ExperienceYears *int   `json:"experience_years,omitempty" validate:"omitempty,gte=0"`

	Grade     string   `json:"grade,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// ChangePasswordRequest payload for updating the password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow; the token travels in the
// route path.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// ForgotPasswordResponse always reports success; the reset link is only
// populated in development when email delivery is unavailable.
type ForgotPasswordResponse struct {
	Message   string `json:"message"`
	ResetLink string `json:"reset_link,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
