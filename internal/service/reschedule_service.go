package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medconsult-app/medconsult-api/internal/models"
	"github.com/medconsult-app/medconsult-api/internal/repository"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
)

type rescheduleRepository interface {
	Insert(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	ExistsActiveAt(ctx context.Context, doctorID string, at time.Time) (bool, error)
	ListBlockRange(ctx context.Context, patientID, doctorID string, from, to time.Time) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error
	ApproveReschedule(ctx context.Context, originalID, newID string) error
	Delete(ctx context.Context, id string) error
}

// RescheduleRequest asks to move an existing block to a new start.
type RescheduleRequest struct {
	DoctorID   string `json:"doctor_id" validate:"required,uuid4"`
	BlockStart string `json:"block_start" validate:"required"`
	BlockEnd   string `json:"block_end" validate:"required"`
	NewStart   string `json:"new_start" validate:"required"`
	Timezone   string `json:"timezone"`
}

// RescheduleDecision is the doctor's verdict on a pending reschedule.
type RescheduleDecision string

const (
	DecisionApprove RescheduleDecision = "approve"
	DecisionReject  RescheduleDecision = "reject"
	DecisionCancel  RescheduleDecision = "cancel"
)

// RescheduleService implements the patient-initiated reschedule protocol. A
// request leaves the original block untouched and records a single linked
// placeholder; the doctor's decision then either promotes the placeholder and
// removes the original, or discards the placeholder.
type RescheduleService struct {
	appts     rescheduleRepository
	audits    auditRecorder
	slots     *AppointmentService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	defaultTZ string
	now       func() time.Time
}

// NewRescheduleService constructs a RescheduleService.
func NewRescheduleService(
	appts rescheduleRepository,
	audits auditRecorder,
	slots *AppointmentService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	defaultTZ string,
) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &RescheduleService{
		appts:     appts,
		audits:    audits,
		slots:     slots,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		defaultTZ: defaultTZ,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *RescheduleService) parseSlot(raw, tz string) (time.Time, error) {
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown timezone")
	}
	t, err := time.ParseInLocation(slotTimeLayout, raw, loc)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot time")
	}
	return t.UTC(), nil
}

// Request records a reschedule placeholder for the patient's block
// [blockStart, blockEnd) with the given doctor.
func (s *RescheduleService) Request(ctx context.Context, patientID string, req RescheduleRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	blockStart, err := s.parseSlot(req.BlockStart, req.Timezone)
	if err != nil {
		return nil, err
	}
	blockEnd, err := s.parseSlot(req.BlockEnd, req.Timezone)
	if err != nil {
		return nil, err
	}
	newStart, err := s.parseSlot(req.NewStart, req.Timezone)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !blockStart.After(now) || !newStart.After(now) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot reschedule past appointments")
	}

	originals, err := s.appts.ListBlockRange(ctx, patientID, req.DoctorID, blockStart, blockEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original block")
	}
	if len(originals) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no reschedulable appointments in block")
	}

	occupied, err := s.appts.ExistsActiveAt(ctx, req.DoctorID, newStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target slot")
	}
	if occupied {
		return nil, appErrors.Clone(appErrors.ErrSlotTaken, "requested slot is unavailable")
	}

	root := originals[0]
	placeholder := &models.Appointment{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		ScheduledFor:    newStart,
		Reason:          root.Reason,
		Status:          models.StatusRescheduleRequested,
		RescheduledFrom: &root.ID,
	}
	if err := s.appts.Insert(ctx, placeholder); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrSlotTaken, "requested slot is unavailable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reschedule")
	}

	s.metrics.RecordReschedule()
	s.slots.InvalidateSlots(ctx, req.DoctorID)
	s.recordAudit(ctx, patientID, models.AuditActionRescheduleRequest, placeholder.ID)
	return placeholder, nil
}

// Decide resolves a pending reschedule owned by the doctor. Approval deletes
// the linked original and promotes the placeholder; rejection or cancellation
// deletes the placeholder and leaves the original in whatever state it had.
func (s *RescheduleService) Decide(ctx context.Context, doctorID, apptID string, decision RescheduleDecision) error {
	appt, err := s.appts.FindByID(ctx, apptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "reschedule request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule request")
	}
	if appt.DoctorID != doctorID {
		return appErrors.Clone(appErrors.ErrForbidden, "not your appointment")
	}
	if appt.Status != models.StatusRescheduleRequested || appt.RescheduledFrom == nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "appointment is not awaiting a reschedule decision")
	}

	switch decision {
	case DecisionApprove:
		if err := s.appts.ApproveReschedule(ctx, *appt.RescheduledFrom, appt.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply reschedule approval")
		}
	case DecisionReject, DecisionCancel:
		if err := s.appts.Delete(ctx, appt.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard reschedule")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "invalid decision")
	}

	s.slots.InvalidateSlots(ctx, doctorID)
	s.recordAudit(ctx, doctorID, models.AuditActionRescheduleDecide, appt.ID)
	return nil
}

func (s *RescheduleService) recordAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "appointments",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
