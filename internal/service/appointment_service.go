package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medconsult-app/medconsult-api/internal/models"
	"github.com/medconsult-app/medconsult-api/internal/repository"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
)

// slotTimeLayout is the wire format for slot starts, interpreted in the
// caller's timezone.
const slotTimeLayout = "2006-01-02T15:04"

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

type appointmentRepository interface {
	Insert(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	ExistsActiveAt(ctx context.Context, doctorID string, at time.Time) (bool, error)
	ListActiveStartsBetween(ctx context.Context, doctorID string, from, to time.Time) ([]time.Time, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error)
	FindByIDsForDoctor(ctx context.Context, ids []string, doctorID string) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error
	ApproveReschedule(ctx context.Context, originalID, newID string) error
	Delete(ctx context.Context, id string) error
}

type availabilityReader interface {
	ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.AvailabilityWindow, error)
}

type doctorFinder interface {
	FindDoctorByID(ctx context.Context, id string) (*models.User, error)
}

type paymentStatusReader interface {
	FindStatuses(ctx context.Context, ids []string) (map[string]models.PaymentStatus, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ListSlotsRequest selects a doctor's bookable slots for one date.
type ListSlotsRequest struct {
	DoctorID string `json:"doctor_id" validate:"required,uuid4"`
	Date     string `json:"date" validate:"required"`
	Timezone string `json:"timezone"`
}

// CreateBlockRequest books one or more contiguous-or-not slot starts.
type CreateBlockRequest struct {
	DoctorID   string   `json:"doctor_id" validate:"required,uuid4"`
	Date       string   `json:"date" validate:"required"`
	SlotStarts []string `json:"slot_starts" validate:"required,min=1,dive,required"`
	Reason     string   `json:"reason"`
	Timezone   string   `json:"timezone"`
}

// BulkStatusRequest is a doctor's decision over a set of slots.
type BulkStatusRequest struct {
	SlotIDs   []string                 `json:"slot_ids" validate:"required,min=1,dive,required"`
	NewStatus models.AppointmentStatus `json:"new_status" validate:"required"`
}

// CancelSlotsRequest cancels a set of slots.
type CancelSlotsRequest struct {
	SlotIDs []string `json:"slot_ids" validate:"required,min=1,dive,required"`
}

// AppointmentService implements slot listing, block booking and the doctor's
// bulk decisions over booked slots.
type AppointmentService struct {
	appts     appointmentRepository
	windows   availabilityReader
	doctors   doctorFinder
	payments  paymentStatusReader
	audits    auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	defaultTZ string
	now       func() time.Time
}

// NewAppointmentService constructs an AppointmentService.
func NewAppointmentService(
	appts appointmentRepository,
	windows availabilityReader,
	doctors doctorFinder,
	payments paymentStatusReader,
	audits auditRecorder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	defaultTZ string,
) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &AppointmentService{
		appts:     appts,
		windows:   windows,
		doctors:   doctors,
		payments:  payments,
		audits:    audits,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		defaultTZ: defaultTZ,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// resolveLocation loads the requested timezone, falling back to the
// service-wide default. The location is always passed explicitly; the engine
// keeps no ambient timezone state.
func (s *AppointmentService) resolveLocation(tz string) (*time.Location, error) {
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown timezone")
	}
	return loc, nil
}

func slotsCacheKey(doctorID, date string) string {
	return fmt.Sprintf("slots:%s:%s", doctorID, date)
}

// InvalidateSlots drops cached slot listings for a doctor after any write
// that can change their availability.
func (s *AppointmentService) InvalidateSlots(ctx context.Context, doctorID string) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("slots:%s:*", doctorID)); err != nil {
		s.logger.Warn("slot cache invalidation failed", zap.String("doctor_id", doctorID), zap.Error(err))
	}
}

// ListSlots returns the doctor's bookable 30-minute slots on the given date.
func (s *AppointmentService) ListSlots(ctx context.Context, req ListSlotsRequest) ([]models.SlotRange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot query")
	}
	loc, err := s.resolveLocation(req.Timezone)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(dateLayout, req.Date, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	if _, err := s.doctors.FindDoctorByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	cacheKey := slotsCacheKey(req.DoctorID, req.Date)
	if s.cache.Enabled() {
		var cached []models.SlotRange
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		s.metrics.RecordCacheOperation(hit)
		if err == nil && hit {
			return pruneElapsed(cached, s.now()), nil
		}
	}

	windows, err := s.windows.ListByDoctorAndDate(ctx, req.DoctorID, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	dayStart := day
	dayEnd := day.AddDate(0, 0, 1).Add(-time.Second)
	booked, err := s.appts.ListActiveStartsBetween(ctx, req.DoctorID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked slots")
	}

	slots := GenerateSlots(windows, booked, s.now())

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, slots, 0); err != nil {
			s.logger.Warn("slot cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return slots, nil
}

// pruneElapsed drops slots whose start is not after now. A cached listing
// bakes the instant it was generated at, so a hit later in the cache window
// can still carry slots that have since elapsed.
func pruneElapsed(slots []models.SlotRange, now time.Time) []models.SlotRange {
	kept := make([]models.SlotRange, 0, len(slots))
	for _, slot := range slots {
		if slot.Start.After(now) {
			kept = append(kept, slot)
		}
	}
	return kept
}

// CreateBlock books the requested slot starts for the patient, one
// appointment record per accepted slot. Occupied starts are skipped; the
// storage-level unique constraint on (doctor, scheduled_for) arbitrates races,
// so a unique violation during insert counts the slot as taken rather than
// failing the command. Zero accepted slots is a conflict.
func (s *AppointmentService) CreateBlock(ctx context.Context, patientID string, req CreateBlockRequest) (*models.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	loc, err := s.resolveLocation(req.Timezone)
	if err != nil {
		return nil, err
	}
	if _, err := time.ParseInLocation(dateLayout, req.Date, loc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	if _, err := s.doctors.FindDoctorByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	result := &models.BookingResult{Requested: len(req.SlotStarts)}
	for _, raw := range req.SlotStarts {
		start, err := time.ParseInLocation(slotTimeLayout, raw, loc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot start")
		}
		start = start.UTC()

		occupied, err := s.appts.ExistsActiveAt(ctx, req.DoctorID, start)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot")
		}
		if occupied {
			result.RejectedStarts = append(result.RejectedStarts, start)
			continue
		}

		appt := &models.Appointment{
			PatientID:    patientID,
			DoctorID:     req.DoctorID,
			ScheduledFor: start,
			Reason:       req.Reason,
			Status:       models.StatusRequested,
		}
		if err := s.appts.Insert(ctx, appt); err != nil {
			if repository.IsUniqueViolation(err) {
				// Lost the race to a concurrent booking.
				result.RejectedStarts = append(result.RejectedStarts, start)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book slot")
		}
		result.Created++
		result.Appointments = append(result.Appointments, appt.ID)
	}

	s.metrics.RecordBooking(result.Created, len(result.RejectedStarts))
	if result.Created == 0 {
		return nil, appErrors.Clone(appErrors.ErrSlotTaken, "selected slots are unavailable")
	}

	s.InvalidateSlots(ctx, req.DoctorID)
	s.recordAudit(ctx, patientID, models.AuditActionAppointmentCreate, "appointments", map[string]interface{}{
		"doctor_id": req.DoctorID,
		"created":   result.Created,
		"requested": result.Requested,
	})
	return result, nil
}

// ListBlocks returns the user's appointments coalesced into display blocks.
// Patients see their bookings keyed by doctor; doctors see their calendar
// keyed by patient.
func (s *AppointmentService) ListBlocks(ctx context.Context, userID string, role models.UserRole, tz string) ([]models.AppointmentBlock, error) {
	loc, err := s.resolveLocation(tz)
	if err != nil {
		return nil, err
	}

	var appts []models.Appointment
	perspective := models.PerspectivePatient
	switch role {
	case models.RoleDoctor:
		perspective = models.PerspectiveDoctor
		appts, err = s.appts.ListByDoctor(ctx, userID)
	default:
		appts, err = s.appts.ListByPatient(ctx, userID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}

	SortForGrouping(appts, perspective)
	blocks := GroupAppointments(appts, loc)

	if err := s.markPaid(ctx, blocks); err != nil {
		s.logger.Warn("failed to resolve payment statuses", zap.Error(err))
	}
	return blocks, nil
}

func (s *AppointmentService) markPaid(ctx context.Context, blocks []models.AppointmentBlock) error {
	var paymentIDs []string
	for i := range blocks {
		if blocks[i].PaymentID != nil {
			paymentIDs = append(paymentIDs, *blocks[i].PaymentID)
		}
	}
	if len(paymentIDs) == 0 {
		return nil
	}
	statuses, err := s.payments.FindStatuses(ctx, paymentIDs)
	if err != nil {
		return err
	}
	for i := range blocks {
		if blocks[i].PaymentID != nil {
			blocks[i].IsPaid = statuses[*blocks[i].PaymentID] == models.PaymentPaid
		}
	}
	return nil
}

// settableStatuses are the statuses a doctor may assign in a bulk decision.
var settableStatuses = map[models.AppointmentStatus]bool{
	models.StatusRequested:           true,
	models.StatusApproved:            true,
	models.StatusRejected:            true,
	models.StatusCompleted:           true,
	models.StatusCancelled:           true,
	models.StatusRescheduleRequested: true,
}

// BulkSetStatus applies a doctor's decision across the selected slots.
// Approving a reschedule deletes the linked original and promotes the new
// record; rejecting or cancelling a reschedule deletes the new record and
// leaves the original untouched. Every other case is a plain status update.
func (s *AppointmentService) BulkSetStatus(ctx context.Context, doctorID string, req BulkStatusRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !settableStatuses[req.NewStatus] {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}

	appts, err := s.appts.FindByIDsForDoctor(ctx, req.SlotIDs, doctorID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}
	if len(appts) == 0 {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "no matching appointments")
	}

	updated := 0
	for _, appt := range appts {
		switch {
		case req.NewStatus == models.StatusApproved && appt.RescheduledFrom != nil:
			if err := s.approveReschedule(ctx, appt); err != nil {
				return updated, err
			}
		case (req.NewStatus == models.StatusRejected || req.NewStatus == models.StatusCancelled) && appt.RescheduledFrom != nil:
			if err := s.appts.Delete(ctx, appt.ID); err != nil {
				return updated, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard reschedule")
			}
		default:
			if err := s.appts.UpdateStatus(ctx, appt.ID, req.NewStatus); err != nil {
				return updated, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
			}
		}
		updated++
	}

	s.InvalidateSlots(ctx, doctorID)
	s.recordAudit(ctx, doctorID, models.AuditActionAppointmentUpdate, "appointments", map[string]interface{}{
		"new_status": req.NewStatus,
		"updated":    updated,
	})
	return updated, nil
}

func (s *AppointmentService) approveReschedule(ctx context.Context, appt models.Appointment) error {
	if err := s.appts.ApproveReschedule(ctx, *appt.RescheduledFrom, appt.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply reschedule approval")
	}
	return nil
}

// CancelSlots cancels every selected slot that is not already cancelled and
// returns the number affected.
func (s *AppointmentService) CancelSlots(ctx context.Context, doctorID string, req CancelSlotsRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}

	appts, err := s.appts.FindByIDsForDoctor(ctx, req.SlotIDs, doctorID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}
	if len(appts) == 0 {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "no matching appointments")
	}

	cancelled := 0
	for _, appt := range appts {
		if appt.Status == models.StatusCancelled {
			continue
		}
		if err := s.appts.UpdateStatus(ctx, appt.ID, models.StatusCancelled); err != nil {
			return cancelled, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel slot")
		}
		cancelled++
	}

	s.InvalidateSlots(ctx, doctorID)
	return cancelled, nil
}

func (s *AppointmentService) recordAudit(ctx context.Context, userID, action, resource string, values map[string]interface{}) {
	if s.audits == nil {
		return
	}
	payload, _ := json.Marshal(values)
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &userID,
		Action:    action,
		Resource:  resource,
		NewValues: payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
