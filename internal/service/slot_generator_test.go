package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

func window(t *testing.T, start, end string) models.AvailabilityWindow {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	return models.AvailabilityWindow{
		DoctorID:  "doc-1",
		Date:      s.Format("2006-01-02"),
		StartTime: s,
		EndTime:   e,
	}
}

func TestGenerateSlotsSplitsWindowIntoHalfHours(t *testing.T) {
	w := window(t, "2026-01-05T09:00:00Z", "2026-01-05T10:00:00Z")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	slots := GenerateSlots([]models.AvailabilityWindow{w}, nil, now)

	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "09:30", slots[0].End.Format("15:04"))
	assert.Equal(t, "09:30", slots[1].Start.Format("15:04"))
	assert.Equal(t, "10:00", slots[1].End.Format("15:04"))
}

func TestGenerateSlotsDropsShortRemainder(t *testing.T) {
	w := window(t, "2026-01-05T09:00:00Z", "2026-01-05T09:50:00Z")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	slots := GenerateSlots([]models.AvailabilityWindow{w}, nil, now)

	require.Len(t, slots, 1)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
}

func TestGenerateSlotsExcludesPastAndBoundary(t *testing.T) {
	w := window(t, "2026-01-05T09:00:00Z", "2026-01-05T11:00:00Z")
	// Exactly at a slot start: that slot must not be offered.
	now := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)

	slots := GenerateSlots([]models.AvailabilityWindow{w}, nil, now)

	require.Len(t, slots, 2)
	assert.Equal(t, "10:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "10:30", slots[1].Start.Format("15:04"))
}

func TestGenerateSlotsExcludesBooked(t *testing.T) {
	w := window(t, "2026-01-05T09:00:00Z", "2026-01-05T10:30:00Z")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	booked := []time.Time{time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)}

	slots := GenerateSlots([]models.AvailabilityWindow{w}, booked, now)

	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "10:00", slots[1].Start.Format("15:04"))
}

func TestGenerateSlotsOrdersWindows(t *testing.T) {
	late := window(t, "2026-01-05T14:00:00Z", "2026-01-05T15:00:00Z")
	early := window(t, "2026-01-05T09:00:00Z", "2026-01-05T09:30:00Z")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	slots := GenerateSlots([]models.AvailabilityWindow{late, early}, nil, now)

	require.Len(t, slots, 3)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "14:00", slots[1].Start.Format("15:04"))
	assert.Equal(t, "14:30", slots[2].Start.Format("15:04"))
}

func TestGenerateSlotsEmptyWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, GenerateSlots(nil, nil, now))

	// Window shorter than one slot produces nothing.
	w := window(t, "2026-01-05T09:00:00Z", "2026-01-05T09:20:00Z")
	assert.Empty(t, GenerateSlots([]models.AvailabilityWindow{w}, nil, now))
}
