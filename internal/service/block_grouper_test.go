package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

func appt(id, patient, doctor string, start time.Time, status models.AppointmentStatus) models.Appointment {
	return models.Appointment{
		ID:           id,
		PatientID:    patient,
		DoctorID:     doctor,
		ScheduledFor: start,
		Status:       status,
		Reason:       "checkup",
	}
}

func at(h, m int) time.Time {
	return time.Date(2026, 1, 5, h, m, 0, 0, time.UTC)
}

func TestGroupAppointmentsMergesContiguousSlots(t *testing.T) {
	appts := []models.Appointment{
		appt("a1", "pat-1", "doc-1", at(9, 0), models.StatusApproved),
		appt("a2", "pat-1", "doc-1", at(9, 30), models.StatusApproved),
		appt("a3", "pat-1", "doc-1", at(10, 0), models.StatusApproved),
	}
	SortForGrouping(appts, models.PerspectivePatient)

	blocks := GroupAppointments(appts, time.UTC)

	require.Len(t, blocks, 1)
	b := blocks[0]
	assert.Equal(t, at(9, 0), b.Start)
	assert.Equal(t, at(10, 30), b.End)
	assert.Equal(t, []string{"a1", "a2", "a3"}, b.SlotIDs)
	assert.Equal(t, "a1", b.RootID())
	assert.Equal(t, "2026-01-05", b.Date)
}

func TestGroupAppointmentsSplitsOnGap(t *testing.T) {
	appts := []models.Appointment{
		appt("a1", "pat-1", "doc-1", at(9, 0), models.StatusApproved),
		appt("a2", "pat-1", "doc-1", at(10, 0), models.StatusApproved),
	}
	SortForGrouping(appts, models.PerspectivePatient)

	blocks := GroupAppointments(appts, time.UTC)

	require.Len(t, blocks, 2)
	assert.Equal(t, []string{"a1"}, blocks[0].SlotIDs)
	assert.Equal(t, []string{"a2"}, blocks[1].SlotIDs)
}

func TestGroupAppointmentsSplitsOnStatusChange(t *testing.T) {
	appts := []models.Appointment{
		appt("a1", "pat-1", "doc-1", at(9, 0), models.StatusApproved),
		appt("a2", "pat-1", "doc-1", at(9, 30), models.StatusRequested),
	}
	SortForGrouping(appts, models.PerspectivePatient)

	blocks := GroupAppointments(appts, time.UTC)

	require.Len(t, blocks, 2)
	assert.Equal(t, models.StatusApproved, blocks[0].Status)
	assert.Equal(t, models.StatusRequested, blocks[1].Status)
}

func TestGroupAppointmentsSplitsOnPaymentIdentity(t *testing.T) {
	pay := "pay-1"
	a1 := appt("a1", "pat-1", "doc-1", at(9, 0), models.StatusApproved)
	a1.PaymentID = &pay
	a2 := appt("a2", "pat-1", "doc-1", at(9, 30), models.StatusApproved)

	appts := []models.Appointment{a1, a2}
	SortForGrouping(appts, models.PerspectivePatient)

	blocks := GroupAppointments(appts, time.UTC)

	require.Len(t, blocks, 2)
}

func TestGroupAppointmentsPerspectiveOrdersByCounterpart(t *testing.T) {
	// A doctor's morning: two patients interleaved in time.
	appts := []models.Appointment{
		appt("a1", "pat-2", "doc-1", at(9, 0), models.StatusApproved),
		appt("a2", "pat-1", "doc-1", at(9, 30), models.StatusApproved),
		appt("a3", "pat-2", "doc-1", at(9, 30), models.StatusApproved),
	}
	SortForGrouping(appts, models.PerspectiveDoctor)

	blocks := GroupAppointments(appts, time.UTC)

	require.Len(t, blocks, 2)
	assert.Equal(t, "pat-1", blocks[0].PatientID)
	assert.Equal(t, "pat-2", blocks[1].PatientID)
	assert.Equal(t, []string{"a1", "a3"}, blocks[1].SlotIDs)
}

func TestGroupAppointmentsBlocksCoverEverySlotExactlyOnce(t *testing.T) {
	appts := []models.Appointment{
		appt("a1", "pat-1", "doc-1", at(9, 0), models.StatusApproved),
		appt("a2", "pat-1", "doc-1", at(9, 30), models.StatusApproved),
		appt("a3", "pat-1", "doc-2", at(9, 0), models.StatusRequested),
		appt("a4", "pat-1", "doc-2", at(11, 0), models.StatusRequested),
	}
	SortForGrouping(appts, models.PerspectivePatient)

	blocks := GroupAppointments(appts, time.UTC)

	seen := map[string]int{}
	for _, b := range blocks {
		require.Len(t, b.Slots, len(b.SlotIDs))
		for _, id := range b.SlotIDs {
			seen[id]++
		}
	}
	require.Len(t, seen, 4)
	for id, n := range seen {
		assert.Equal(t, 1, n, "slot %s appears %d times", id, n)
	}
}

func TestGroupAppointmentsDateFollowsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC is still the previous evening in New York.
	appts := []models.Appointment{
		appt("a1", "pat-1", "doc-1", time.Date(2026, 1, 5, 2, 0, 0, 0, time.UTC), models.StatusApproved),
	}
	SortForGrouping(appts, models.PerspectivePatient)

	blocks := GroupAppointments(appts, loc)

	require.Len(t, blocks, 1)
	assert.Equal(t, "2026-01-04", blocks[0].Date)
}
