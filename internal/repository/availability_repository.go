package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

// AvailabilityRepository persists doctor availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const windowColumns = `id, doctor_id, to_char(date, 'YYYY-MM-DD') AS date, start_time, end_time, created_at, updated_at`

// ListByDoctor returns all windows for a doctor ordered by date and start.
func (r *AvailabilityRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.AvailabilityWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM availability_windows WHERE doctor_id = $1 ORDER BY date ASC, start_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, doctorID); err != nil {
		return nil, fmt.Errorf("list windows by doctor: %w", err)
	}
	return windows, nil
}

// ListByDoctorAndDate returns the doctor's windows on one date ordered by start.
func (r *AvailabilityRepository) ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.AvailabilityWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM availability_windows WHERE doctor_id = $1 AND date = $2 ORDER BY start_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("list windows by doctor and date: %w", err)
	}
	return windows, nil
}

// Replace swaps every window the doctor holds on the date for the single new
// window [start, end). Runs in one transaction so readers never observe an
// empty schedule mid-replace.
func (r *AvailabilityRepository) Replace(ctx context.Context, doctorID, date string, start, end time.Time) (w *models.AvailabilityWindow, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin window replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE doctor_id = $1 AND date = $2`, doctorID, date); err != nil {
		return nil, fmt.Errorf("clear windows: %w", err)
	}

	now := time.Now().UTC()
	window := models.AvailabilityWindow{
		ID:        uuid.NewString(),
		DoctorID:  doctorID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	const insertQuery = `INSERT INTO availability_windows (id, doctor_id, date, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertQuery, window.ID, window.DoctorID, window.Date, window.StartTime, window.EndTime, window.CreatedAt, window.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert window: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit window replace: %w", err)
	}
	return &window, nil
}

// RemoveSlot withdraws one 30-minute slot from the window covering it. The
// covering window is locked for the duration so concurrent edits to the same
// (doctor, date) serialise. Returns sql.ErrNoRows when no window covers the
// slot.
func (r *AvailabilityRepository) RemoveSlot(ctx context.Context, doctorID, date string, slotStart, slotEnd time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin slot removal: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var window models.AvailabilityWindow
	selectQuery := `SELECT ` + windowColumns + ` FROM availability_windows
		WHERE doctor_id = $1 AND date = $2 AND start_time <= $3 AND end_time >= $4
		LIMIT 1 FOR UPDATE`
	if err = tx.GetContext(ctx, &window, selectQuery, doctorID, date, slotStart, slotEnd); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock covering window: %w", err)
	}

	now := time.Now().UTC()
	switch {
	case window.StartTime.Equal(slotStart) && window.EndTime.Equal(slotEnd):
		// Slot spans the whole window.
		if _, err = tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE id = $1`, window.ID); err != nil {
			return fmt.Errorf("delete window: %w", err)
		}
	case window.StartTime.Equal(slotStart):
		// Leading slot: shrink the window start forward.
		if _, err = tx.ExecContext(ctx, `UPDATE availability_windows SET start_time = $2, updated_at = $3 WHERE id = $1`, window.ID, slotEnd, now); err != nil {
			return fmt.Errorf("shrink window start: %w", err)
		}
	case window.EndTime.Equal(slotEnd):
		// Trailing slot: shrink the window end backward.
		if _, err = tx.ExecContext(ctx, `UPDATE availability_windows SET end_time = $2, updated_at = $3 WHERE id = $1`, window.ID, slotStart, now); err != nil {
			return fmt.Errorf("shrink window end: %w", err)
		}
	default:
		// Interior slot: split into [start, slotStart) and [slotEnd, end).
		const insertQuery = `INSERT INTO availability_windows (id, doctor_id, date, start_time, end_time, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err = tx.ExecContext(ctx, insertQuery, uuid.NewString(), doctorID, date, slotEnd, window.EndTime, now, now); err != nil {
			return fmt.Errorf("insert split window: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `UPDATE availability_windows SET end_time = $2, updated_at = $3 WHERE id = $1`, window.ID, slotStart, now); err != nil {
			return fmt.Errorf("shrink split window: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit slot removal: %w", err)
	}
	return nil
}
