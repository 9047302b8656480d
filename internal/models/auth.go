package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// PatientSignupRequest registers a patient and their profile in one step.
type PatientSignupRequest struct {
	Email                 string  `json:"email" validate:"required,email"`
	Password              string  `json:"password" validate:"required,min=8"`
	PasswordConfirm       string  `json:"password_confirm" validate:"required,eqfield=Password"`
	FullName              string  `json:"full_name" validate:"required"`
	DateOfBirth           string  `json:"date_of_birth" validate:"required"`
	Gender                string  `json:"gender" validate:"required"`
	ContactNumber         string  `json:"contact_number" validate:"required"`
	Address               string  `json:"address" validate:"required"`
	EmergencyContact      *string `json:"emergency_contact"`
	InsuranceProvider     *string `json:"insurance_provider"`
	InsurancePolicyNumber *string `json:"insurance_policy_number"`
	IP                    string  `json:"-"`
	UserAgent             string  `json:"-"`
}

// DoctorSignupRequest registers a doctor and their profile in one step.
type DoctorSignupRequest struct {
	Email             string  `json:"email" validate:"required,email"`
	Password          string  `json:"password" validate:"required,min=8"`
	PasswordConfirm   string  `json:"password_confirm" validate:"required,eqfield=Password"`
	FullName          string  `json:"full_name" validate:"required"`
	Specialization    string  `json:"specialization" validate:"required"`
	LicenseNumber     string  `json:"license_number" validate:"required"`
	YearsOfExperience int     `json:"years_of_experience" validate:"gte=0"`
	ContactNumber     string  `json:"contact_number" validate:"required"`
	ClinicName        *string `json:"clinic_name"`
	ClinicAddress     *string `json:"clinic_address"`
	Bio               *string `json:"bio"`
	IP                string  `json:"-"`
	UserAgent         string  `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// SessionMeta carries request metadata for audit records.
type SessionMeta struct {
	IP        string
	UserAgent string
}
