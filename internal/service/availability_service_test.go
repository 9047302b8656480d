package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
)

type fakeWindowRepo struct {
	windows    []models.AvailabilityWindow
	replaced   *models.AvailabilityWindow
	removeErr  error
	removed    []time.Time
	replaceErr error
}

func (f *fakeWindowRepo) ListByDoctor(_ context.Context, _ string) ([]models.AvailabilityWindow, error) {
	return f.windows, nil
}

func (f *fakeWindowRepo) ListByDoctorAndDate(_ context.Context, _, _ string) ([]models.AvailabilityWindow, error) {
	return f.windows, nil
}

func (f *fakeWindowRepo) Replace(_ context.Context, doctorID, date string, start, end time.Time) (*models.AvailabilityWindow, error) {
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	f.replaced = &models.AvailabilityWindow{ID: "win-1", DoctorID: doctorID, Date: date, StartTime: start, EndTime: end}
	return f.replaced, nil
}

func (f *fakeWindowRepo) RemoveSlot(_ context.Context, _, _ string, slotStart, _ time.Time) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, slotStart)
	return nil
}

func newAvailabilityService(windows *fakeWindowRepo, appts *fakeApptRepo) *AvailabilityService {
	slots := newApptService(appts, &fakeWindowReader{}, &fakeDoctorFinder{})
	svc := NewAvailabilityService(windows, appts, nil, &fakeAudits{}, slots, nil, zap.NewNop(), "UTC")
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestUpsertWindowStoresReplacement(t *testing.T) {
	windows := &fakeWindowRepo{}
	svc := newAvailabilityService(windows, newFakeApptRepo())

	win, err := svc.UpsertWindow(context.Background(), doctorID, UpsertWindowRequest{
		Date:      "2026-01-05",
		StartTime: "09:00",
		EndTime:   "12:00",
	})

	require.NoError(t, err)
	require.NotNil(t, win)
	assert.Equal(t, "2026-01-05", win.Date)
	assert.True(t, win.StartTime.Equal(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)))
	assert.True(t, win.EndTime.Equal(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)))
}

func TestUpsertWindowHonoursTimezone(t *testing.T) {
	windows := &fakeWindowRepo{}
	svc := newAvailabilityService(windows, newFakeApptRepo())

	win, err := svc.UpsertWindow(context.Background(), doctorID, UpsertWindowRequest{
		Date:      "2026-01-05",
		StartTime: "09:00",
		EndTime:   "12:00",
		Timezone:  "America/New_York",
	})

	require.NoError(t, err)
	assert.True(t, win.StartTime.Equal(time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)))
}

func TestUpsertWindowRejectsInvertedBounds(t *testing.T) {
	svc := newAvailabilityService(&fakeWindowRepo{}, newFakeApptRepo())

	_, err := svc.UpsertWindow(context.Background(), doctorID, UpsertWindowRequest{
		Date:      "2026-01-05",
		StartTime: "12:00",
		EndTime:   "09:00",
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrValidation)
}

func TestDeleteSlotRemovesFutureFreeSlot(t *testing.T) {
	windows := &fakeWindowRepo{}
	svc := newAvailabilityService(windows, newFakeApptRepo())

	err := svc.DeleteSlot(context.Background(), doctorID, DeleteSlotRequest{SlotStart: "2026-01-05T09:30"})

	require.NoError(t, err)
	require.Len(t, windows.removed, 1)
	assert.True(t, windows.removed[0].Equal(time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)))
}

func TestDeleteSlotRejectsPastSlot(t *testing.T) {
	svc := newAvailabilityService(&fakeWindowRepo{}, newFakeApptRepo())

	err := svc.DeleteSlot(context.Background(), doctorID, DeleteSlotRequest{SlotStart: "2025-12-20T09:30"})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrInvalidState)
}

func TestDeleteSlotRejectsBookedSlot(t *testing.T) {
	appts := newFakeApptRepo()
	appts.occupied[time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC).Unix()] = true
	windows := &fakeWindowRepo{}
	svc := newAvailabilityService(windows, appts)

	err := svc.DeleteSlot(context.Background(), doctorID, DeleteSlotRequest{SlotStart: "2026-01-05T09:30"})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrConflict)
	assert.Empty(t, windows.removed)
}

func TestDeleteSlotOutsideAnyWindow(t *testing.T) {
	windows := &fakeWindowRepo{removeErr: sql.ErrNoRows}
	svc := newAvailabilityService(windows, newFakeApptRepo())

	err := svc.DeleteSlot(context.Background(), doctorID, DeleteSlotRequest{SlotStart: "2026-01-05T09:30"})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrNotFound)
}
