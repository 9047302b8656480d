package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	UpdateSettings(ctx context.Context, id, theme, tz string, locationTracking bool) error
}

// UserService exposes the doctor directory and per-user preferences.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// GetProfile returns the user's own account record.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// ListDoctors returns the bookable doctor directory.
func (s *UserService) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list doctors")
	}
	return doctors, nil
}

// UpdateSettings applies preference changes, keeping existing values for
// fields the client omitted.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, req models.SettingsUpdate) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	theme := user.ThemePreference
	if req.Theme != "" {
		theme = req.Theme
	}
	tz := user.Timezone
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
		}
		tz = req.Timezone
	}

	if err := s.repo.UpdateSettings(ctx, userID, theme, tz, req.LocationTracking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}

	user.ThemePreference = theme
	user.Timezone = tz
	user.LocationTracking = req.LocationTracking
	return user, nil
}
