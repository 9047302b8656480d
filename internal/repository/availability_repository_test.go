package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var windowRowColumns = []string{"id", "doctor_id", "date", "start_time", "end_time", "created_at", "updated_at"}

func windowRow(id string, start, end time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(windowRowColumns).
		AddRow(id, "doc-1", "2026-01-05", start, end, now, now)
}

func TestAvailabilityRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_windows WHERE doctor_id = $1 AND date = $2")).
		WithArgs("doc-1", "2026-01-05").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability_windows")).
		WithArgs(sqlmock.AnyArg(), "doc-1", "2026-01-05", start, end, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	window, err := repo.Replace(context.Background(), "doc-1", "2026-01-05", start, end)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", window.DoctorID)
	assert.True(t, window.StartTime.Equal(start))
	assert.True(t, window.EndTime.Equal(end))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryRemoveSlotWholeWindow(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	slotStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	slotEnd := slotStart.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id").
		WithArgs("doc-1", "2026-01-05", slotStart, slotEnd).
		WillReturnRows(windowRow("win-1", slotStart, slotEnd))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_windows WHERE id = $1")).
		WithArgs("win-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RemoveSlot(context.Background(), "doc-1", "2026-01-05", slotStart, slotEnd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryRemoveSlotLeading(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	winStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	winEnd := time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC)
	slotEnd := winStart.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id").
		WithArgs("doc-1", "2026-01-05", winStart, slotEnd).
		WillReturnRows(windowRow("win-1", winStart, winEnd))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_windows SET start_time = $2")).
		WithArgs("win-1", slotEnd, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RemoveSlot(context.Background(), "doc-1", "2026-01-05", winStart, slotEnd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryRemoveSlotTrailing(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	winStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	winEnd := time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC)
	slotStart := winEnd.Add(-30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id").
		WithArgs("doc-1", "2026-01-05", slotStart, winEnd).
		WillReturnRows(windowRow("win-1", winStart, winEnd))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_windows SET end_time = $2")).
		WithArgs("win-1", slotStart, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RemoveSlot(context.Background(), "doc-1", "2026-01-05", slotStart, winEnd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryRemoveSlotInteriorSplits(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	winStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	winEnd := time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)
	slotStart := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	slotEnd := slotStart.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id").
		WithArgs("doc-1", "2026-01-05", slotStart, slotEnd).
		WillReturnRows(windowRow("win-1", winStart, winEnd))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability_windows")).
		WithArgs(sqlmock.AnyArg(), "doc-1", "2026-01-05", slotEnd, winEnd, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_windows SET end_time = $2")).
		WithArgs("win-1", slotStart, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RemoveSlot(context.Background(), "doc-1", "2026-01-05", slotStart, slotEnd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryRemoveSlotNoCoveringWindow(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	slotStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	slotEnd := slotStart.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id").
		WithArgs("doc-1", "2026-01-05", slotStart, slotEnd).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.RemoveSlot(context.Background(), "doc-1", "2026-01-05", slotStart, slotEnd)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
