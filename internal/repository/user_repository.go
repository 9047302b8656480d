package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

// UserRepository provides database access for users, role profiles, refresh
// sessions and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, role, theme_preference, timezone, location_tracking, active, last_login, created_at, updated_at`

// getUser runs a single-row user lookup. sql.ErrNoRows passes through
// unwrapped so callers can map it to a not-found response.
func (r *UserRepository) getUser(ctx context.Context, label, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return &user, nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "find user by email",
		`SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "find user by id",
		`SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
}

// FindDoctorByID returns the user row when it exists with the doctor role.
// Inactive doctors are treated as absent so no new bookings can target them.
func (r *UserRepository) FindDoctorByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "find doctor by id",
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND role = 'doctor' AND active = TRUE LIMIT 1`, id)
}

// ListDoctors returns the public doctor directory ordered by name.
func (r *UserRepository) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	const query = `SELECT u.id, u.email, u.full_name, COALESCE(dp.specialization, '') AS specialization
		FROM users u
		LEFT JOIN doctor_profiles dp ON dp.user_id = u.id
		WHERE u.role = 'doctor' AND u.active = TRUE
		ORDER BY u.full_name ASC, u.email ASC`
	var doctors []models.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, theme_preference, timezone, location_tracking, active, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :full_name, :role, :theme_preference, :timezone, :location_tracking, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreatePatientProfile stores the patient profile for a user.
func (r *UserRepository) CreatePatientProfile(ctx context.Context, profile *models.PatientProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	const query = `INSERT INTO patient_profiles (id, user_id, date_of_birth, gender, contact_number, address, emergency_contact, insurance_provider, insurance_policy_number)
		VALUES (:id, :user_id, :date_of_birth, :gender, :contact_number, :address, :emergency_contact, :insurance_provider, :insurance_policy_number)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create patient profile: %w", err)
	}
	return nil
}

// CreateDoctorProfile stores the doctor profile for a user.
func (r *UserRepository) CreateDoctorProfile(ctx context.Context, profile *models.DoctorProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	const query = `INSERT INTO doctor_profiles (id, user_id, specialization, license_number, years_of_experience, contact_number, clinic_name, clinic_address, bio)
		VALUES (:id, :user_id, :specialization, :license_number, :years_of_experience, :contact_number, :clinic_name, :clinic_address, :bio)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create doctor profile: %w", err)
	}
	return nil
}

// UpdateSettings persists preference changes for a user.
func (r *UserRepository) UpdateSettings(ctx context.Context, id, theme, tz string, locationTracking bool) error {
	const query = `UPDATE users SET theme_preference = $2, timezone = $3, location_tracking = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, theme, tz, locationTracking, time.Now().UTC()); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

const refreshTokenColumns = `id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent`

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
		VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a single refresh token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes every live refresh token for a user.
// Called on password change so stolen sessions cannot survive it.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit trail entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
		VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
