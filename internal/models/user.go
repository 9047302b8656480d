package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleDoctor  UserRole = "doctor"
	RoleAdmin   UserRole = "admin"
)

// User represents an application user stored in the users table.
type User struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	FullName         string     `db:"full_name" json:"full_name"`
	Role             UserRole   `db:"role" json:"role"`
	ThemePreference  string     `db:"theme_preference" json:"theme_preference"`
	Timezone         string     `db:"timezone" json:"timezone"`
	LocationTracking bool       `db:"location_tracking" json:"location_tracking"`
	Active           bool       `db:"active" json:"active"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// PatientProfile holds patient-specific registration data.
type PatientProfile struct {
	ID                    string  `db:"id" json:"id"`
	UserID                string  `db:"user_id" json:"user_id"`
	DateOfBirth           string  `db:"date_of_birth" json:"date_of_birth"`
	Gender                string  `db:"gender" json:"gender"`
	ContactNumber         string  `db:"contact_number" json:"contact_number"`
	Address               string  `db:"address" json:"address"`
	EmergencyContact      *string `db:"emergency_contact" json:"emergency_contact,omitempty"`
	InsuranceProvider     *string `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsurancePolicyNumber *string `db:"insurance_policy_number" json:"insurance_policy_number,omitempty"`
}

// DoctorProfile holds doctor-specific registration data.
type DoctorProfile struct {
	ID                string  `db:"id" json:"id"`
	UserID            string  `db:"user_id" json:"user_id"`
	Specialization    string  `db:"specialization" json:"specialization"`
	LicenseNumber     string  `db:"license_number" json:"license_number"`
	YearsOfExperience int     `db:"years_of_experience" json:"years_of_experience"`
	ContactNumber     string  `db:"contact_number" json:"contact_number"`
	ClinicName        *string `db:"clinic_name" json:"clinic_name,omitempty"`
	ClinicAddress     *string `db:"clinic_address" json:"clinic_address,omitempty"`
	Bio               *string `db:"bio" json:"bio,omitempty"`
}

// Doctor is the public directory listing of a bookable doctor.
type Doctor struct {
	ID             string `db:"id" json:"id"`
	Email          string `db:"email" json:"email"`
	FullName       string `db:"full_name" json:"full_name"`
	Specialization string `db:"specialization" json:"specialization"`
}

// SettingsUpdate carries user preference changes.
type SettingsUpdate struct {
	Theme            string `json:"theme" validate:"omitempty,oneof=light dark"`
	Timezone         string `json:"timezone" validate:"omitempty"`
	LocationTracking bool   `json:"location_tracking"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
