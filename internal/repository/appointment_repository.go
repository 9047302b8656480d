package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. The (doctor_id, scheduled_for) constraint is the authoritative
// conflict arbiter for bookings, so callers treat this as "slot just taken".
// Detection goes through the SQLState method rather than a concrete driver
// type, which pq.Error satisfies.
func IsUniqueViolation(err error) bool {
	var state interface{ SQLState() string }
	return errors.As(err, &state) && state.SQLState() == "23505"
}

// AppointmentRepository provides persistence for appointment slots.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `id, patient_id, doctor_id, rescheduled_from, scheduled_for, reason, status, payment_id, created_at, updated_at`

// Insert stores a new appointment slot. A unique violation on
// (doctor_id, scheduled_for) is returned unwrapped for the caller to detect.
func (r *AppointmentRepository) Insert(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	const query = `INSERT INTO appointments (id, patient_id, doctor_id, rescheduled_from, scheduled_for, reason, status, payment_id, created_at, updated_at)
		VALUES (:id, :patient_id, :doctor_id, :rescheduled_from, :scheduled_for, :reason, :status, :payment_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appt); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 LIMIT 1`
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment by id: %w", err)
	}
	return &appt, nil
}

// ExistsActiveAt reports whether an active appointment occupies the doctor's
// slot at the given instant.
func (r *AppointmentRepository) ExistsActiveAt(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE doctor_id = $1 AND scheduled_for = $2 AND status NOT IN ('cancelled', 'rejected'))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, doctorID, at); err != nil {
		return false, fmt.Errorf("check active appointment: %w", err)
	}
	return exists, nil
}

// ListActiveStartsBetween returns the scheduled_for instants of active
// appointments for a doctor within [from, to]. This is the booked set the
// slot generator excludes.
func (r *AppointmentRepository) ListActiveStartsBetween(ctx context.Context, doctorID string, from, to time.Time) ([]time.Time, error) {
	const query = `SELECT scheduled_for FROM appointments
		WHERE doctor_id = $1 AND scheduled_for >= $2 AND scheduled_for <= $3
		AND status NOT IN ('cancelled', 'rejected')
		ORDER BY scheduled_for ASC`
	var starts []time.Time
	if err := r.db.SelectContext(ctx, &starts, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("list booked starts: %w", err)
	}
	return starts, nil
}

// ListByPatient returns a patient's appointments ordered for block grouping
// from the patient perspective (counterpart doctor first, then time).
func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE patient_id = $1 ORDER BY doctor_id ASC, scheduled_for ASC`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, patientID); err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// ListByDoctor returns a doctor's appointments ordered for block grouping
// from the doctor perspective (counterpart patient first, then time).
func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE doctor_id = $1 ORDER BY patient_id ASC, scheduled_for ASC`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID); err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

// FindByIDsForDoctor returns the doctor's appointments among ids, ordered by
// time. Slots belonging to other doctors are silently excluded.
func (r *AppointmentRepository) FindByIDsForDoctor(ctx context.Context, ids []string, doctorID string) ([]models.Appointment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ANY($1) AND doctor_id = $2 ORDER BY scheduled_for ASC`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, pq.Array(ids), doctorID); err != nil {
		return nil, fmt.Errorf("find appointments by ids: %w", err)
	}
	return appts, nil
}

// ListBlockRange returns the patient's appointments with the doctor inside
// [from, to), excluding statuses that make a block ineligible for reschedule.
func (r *AppointmentRepository) ListBlockRange(ctx context.Context, patientID, doctorID string, from, to time.Time) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE patient_id = $1 AND doctor_id = $2 AND scheduled_for >= $3 AND scheduled_for < $4
		AND status NOT IN ('cancelled', 'completed', 'rescheduled')
		ORDER BY scheduled_for ASC`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, patientID, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("list block range: %w", err)
	}
	return appts, nil
}

// UpdateStatus mutates the status of a single appointment in place.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	const query = `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApproveReschedule settles an approved reschedule in one transaction: the
// original appointment is deleted and the linked placeholder becomes approved
// together, so a failure on either side leaves both records untouched.
// Returns sql.ErrNoRows when the placeholder no longer exists.
func (r *AppointmentRepository) ApproveReschedule(ctx context.Context, originalID, newID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reschedule approval: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, originalID); err != nil {
		return fmt.Errorf("remove original appointment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`,
		newID, models.StatusApproved, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("promote reschedule: %w", err)
	}
	if rows, raErr := res.RowsAffected(); raErr == nil && rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reschedule approval: %w", err)
	}
	return nil
}

// Delete removes an appointment record outright. Used only by the reschedule
// protocol, which deletes rather than cancels its linked records.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM appointments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// LinkPayment attaches a payment reference to the given appointment slots.
func (r *AppointmentRepository) LinkPayment(ctx context.Context, ids []string, paymentID string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE appointments SET payment_id = $2, updated_at = $3 WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids), paymentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link payment: %w", err)
	}
	return nil
}
