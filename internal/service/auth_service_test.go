package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
)

type fakeUserRepo struct {
	usersByEmail    map[string]*models.User
	usersByID       map[string]*models.User
	createErr       error
	created         []*models.User
	patientProfiles []*models.PatientProfile
	doctorProfiles  []*models.DoctorProfile
	refreshTokens   map[string]*models.RefreshToken
	revokedTokens   []string
	revokedUsers    []string
	passwordOf      map[string]string
	audits          []models.AuditLog
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByEmail:  map[string]*models.User{},
		usersByID:     map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		passwordOf:    map[string]string{},
	}
}

func (f *fakeUserRepo) addUser(user *models.User) {
	f.usersByEmail[user.Email] = user
	f.usersByID[user.ID] = user
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = "user-" + user.Email
	f.created = append(f.created, user)
	f.addUser(user)
	return nil
}

func (f *fakeUserRepo) CreatePatientProfile(_ context.Context, profile *models.PatientProfile) error {
	f.patientProfiles = append(f.patientProfiles, profile)
	return nil
}

func (f *fakeUserRepo) CreateDoctorProfile(_ context.Context, profile *models.DoctorProfile) error {
	f.doctorProfiles = append(f.doctorProfiles, profile)
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error { return nil }

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	f.passwordOf[id] = hash
	return nil
}

func (f *fakeUserRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	f.revokedUsers = append(f.revokedUsers, userID)
	return nil
}

func (f *fakeUserRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeUserRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := f.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	f.revokedTokens = append(f.revokedTokens, id)
	return nil
}

func (f *fakeUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.audits = append(f.audits, *log)
	return nil
}

func newAuthService(repo *fakeUserRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "medconsult-api",
	})
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginIssuesTokens(t *testing.T) {
	repo := newFakeUserRepo()
	repo.addUser(&models.User{
		ID:           "u1",
		Email:        "pat@example.com",
		PasswordHash: hashOf(t, "correct-horse"),
		FullName:     "Pat Example",
		Role:         models.RolePatient,
		Active:       true,
	})
	svc := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "pat@example.com",
		Password: "correct-horse",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, models.RolePatient, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RolePatient, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	repo.addUser(&models.User{
		ID:           "u1",
		Email:        "pat@example.com",
		PasswordHash: hashOf(t, "correct-horse"),
		Active:       true,
	})
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "pat@example.com",
		Password: "battery-staple",
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	repo := newFakeUserRepo()
	repo.addUser(&models.User{
		ID:           "u1",
		Email:        "pat@example.com",
		PasswordHash: hashOf(t, "correct-horse"),
		Active:       false,
	})
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "pat@example.com",
		Password: "correct-horse",
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrInactiveAccount)
}

func TestSignupPatientStoresNormalisedProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	resp, err := svc.SignupPatient(context.Background(), models.PatientSignupRequest{
		Email:           "new@example.com",
		Password:        "hunter2hunter2",
		PasswordConfirm: "hunter2hunter2",
		FullName:        "New Patient",
		DateOfBirth:     "03/15/1990",
		Gender:          "female",
		ContactNumber:   "555-0100",
		Address:         "1 Main St",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RolePatient, repo.created[0].Role)
	assert.True(t, repo.created[0].Active)
	require.Len(t, repo.patientProfiles, 1)
	assert.Equal(t, "1990-03-15", repo.patientProfiles[0].DateOfBirth)
}

func TestSignupPatientDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = fakeUniqueErr{}
	svc := newAuthService(repo)

	_, err := svc.SignupPatient(context.Background(), models.PatientSignupRequest{
		Email:           "dup@example.com",
		Password:        "hunter2hunter2",
		PasswordConfirm: "hunter2hunter2",
		FullName:        "Dup",
		DateOfBirth:     "1990-03-15",
		Gender:          "male",
		ContactNumber:   "555-0100",
		Address:         "1 Main St",
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrConflict)
}

func TestSignupDoctorCreatesProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	_, err := svc.SignupDoctor(context.Background(), models.DoctorSignupRequest{
		Email:           "doc@example.com",
		Password:        "hunter2hunter2",
		PasswordConfirm: "hunter2hunter2",
		FullName:        "Doc Example",
		Specialization:  "cardiology",
		LicenseNumber:   "LIC-1234",
		ContactNumber:   "555-0101",
	})

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleDoctor, repo.created[0].Role)
	require.Len(t, repo.doctorProfiles, 1)
	assert.Equal(t, "cardiology", repo.doctorProfiles[0].Specialization)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := newFakeUserRepo()
	repo.addUser(&models.User{ID: "u1", Email: "pat@example.com", Active: true})
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	svc := newAuthService(repo)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revokedTokens, "rt-1")
}

func TestRefreshTokenRejectsExpired(t *testing.T) {
	repo := newFakeUserRepo()
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrUnauthorized)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	repo := newFakeUserRepo()
	repo.addUser(&models.User{ID: "u1", Email: "pat@example.com", PasswordHash: hashOf(t, "old-secret"), Active: true})
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "old-secret",
		NewPassword: "new-secret-123",
	})

	require.NoError(t, err)
	assert.Contains(t, repo.revokedUsers, "u1")
	assert.NotEmpty(t, repo.passwordOf["u1"])
}

func TestNormalizeDateOfBirth(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"iso", "1990-03-15", "1990-03-15", true},
		{"slash", "03/15/1990", "1990-03-15", true},
		{"dash", "03-15-1990", "1990-03-15", true},
		{"compact", "03151990", "1990-03-15", true},
		{"garbage", "the ides of march", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeDateOfBirth(tc.in)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
