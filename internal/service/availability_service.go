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
	"github.com/medconsult-app/medconsult-api/pkg/lock"
)

// clockTimeLayout is the wire format for window bounds within a day.
const clockTimeLayout = "15:04"

type availabilityRepository interface {
	ListByDoctor(ctx context.Context, doctorID string) ([]models.AvailabilityWindow, error)
	ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.AvailabilityWindow, error)
	Replace(ctx context.Context, doctorID, date string, start, end time.Time) (*models.AvailabilityWindow, error)
	RemoveSlot(ctx context.Context, doctorID, date string, slotStart, slotEnd time.Time) error
}

type activeSlotChecker interface {
	ExistsActiveAt(ctx context.Context, doctorID string, at time.Time) (bool, error)
}

// UpsertWindowRequest sets a doctor's working window for one date.
type UpsertWindowRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Timezone  string `json:"timezone"`
}

// DeleteSlotRequest carves one slot out of a doctor's window.
type DeleteSlotRequest struct {
	SlotStart string `json:"slot_start" validate:"required"`
	Timezone  string `json:"timezone"`
}

// AvailabilityService edits doctor availability windows. Every edit runs
// under the per-(doctor, date) schedule lock so concurrent editors of the
// same calendar day never interleave.
type AvailabilityService struct {
	windows   availabilityRepository
	appts     activeSlotChecker
	locker    lock.ScheduleLocker
	audits    auditRecorder
	slots     *AppointmentService
	validator *validator.Validate
	logger    *zap.Logger
	defaultTZ string
	now       func() time.Time
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(
	windows availabilityRepository,
	appts activeSlotChecker,
	locker lock.ScheduleLocker,
	audits auditRecorder,
	slots *AppointmentService,
	validate *validator.Validate,
	logger *zap.Logger,
	defaultTZ string,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &AvailabilityService{
		windows:   windows,
		appts:     appts,
		locker:    locker,
		audits:    audits,
		slots:     slots,
		validator: validate,
		logger:    logger,
		defaultTZ: defaultTZ,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *AvailabilityService) location(tz string) (*time.Location, error) {
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown timezone")
	}
	return loc, nil
}

// ListWindows returns all availability windows for the doctor.
func (s *AvailabilityService) ListWindows(ctx context.Context, doctorID string) ([]models.AvailabilityWindow, error) {
	windows, err := s.windows.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list windows")
	}
	return windows, nil
}

// UpsertWindow replaces the doctor's window for the given date with
// [start, end). Any previously stored windows for that date, including the
// pieces of an earlier split, are superseded.
func (s *AvailabilityService) UpsertWindow(ctx context.Context, doctorID string, req UpsertWindowRequest) (*models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window payload")
	}
	loc, err := s.location(req.Timezone)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(dateLayout, req.Date, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	start, err := atClock(day, req.StartTime, loc)
	if err != nil {
		return nil, err
	}
	end, err := atClock(day, req.EndTime, loc)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window start must precede end")
	}

	var window *models.AvailabilityWindow
	err = s.locker.WithScheduleLock(ctx, doctorID, req.Date, func(ctx context.Context) error {
		var repErr error
		window, repErr = s.windows.Replace(ctx, doctorID, req.Date, start.UTC(), end.UTC())
		return repErr
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store window")
	}

	s.slots.InvalidateSlots(ctx, doctorID)
	s.recordAudit(ctx, doctorID, window.ID)
	return window, nil
}

// DeleteSlot removes one bookable slot from the doctor's windows. The slot
// must lie in the future and must not carry an active appointment. Depending
// on where the slot sits in its covering window the window is deleted,
// shrunk, or split in two.
func (s *AvailabilityService) DeleteSlot(ctx context.Context, doctorID string, req DeleteSlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	loc, err := s.location(req.Timezone)
	if err != nil {
		return err
	}
	local, err := time.ParseInLocation(slotTimeLayout, req.SlotStart, loc)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot start")
	}
	slotStart := local.UTC()
	slotEnd := slotStart.Add(models.SlotDuration)
	date := local.Format(dateLayout)

	if !slotStart.After(s.now()) {
		return appErrors.Clone(appErrors.ErrInvalidState, "cannot edit past slots")
	}

	occupied, err := s.appts.ExistsActiveAt(ctx, doctorID, slotStart)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot")
	}
	if occupied {
		return appErrors.Clone(appErrors.ErrConflict, "slot has an active appointment")
	}

	err = s.locker.WithScheduleLock(ctx, doctorID, date, func(ctx context.Context) error {
		return s.windows.RemoveSlot(ctx, doctorID, date, slotStart, slotEnd)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no availability window covers that slot")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove slot")
	}

	s.slots.InvalidateSlots(ctx, doctorID)
	s.recordAudit(ctx, doctorID, "")
	return nil
}

func (s *AvailabilityService) recordAudit(ctx context.Context, doctorID, resourceID string) {
	if s.audits == nil {
		return
	}
	log := &models.AuditLog{
		UserID:   &doctorID,
		Action:   models.AuditActionAvailabilityEdit,
		Resource: "availability_windows",
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

// atClock anchors an HH:MM clock time onto day in loc.
func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(clockTimeLayout, clock, loc)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clock time")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
