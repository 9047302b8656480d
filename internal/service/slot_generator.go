package service

import (
	"sort"
	"time"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

// GenerateSlots converts availability windows into bookable 30-minute slots.
// Per window, ordered by start time, it walks 30-minute steps and emits
// (step, step+30m) whenever the slot still fits inside the window. A slot is
// kept only when it starts strictly in the future and is not already booked.
// Remainders shorter than a slot are dropped. Windows are assumed mutually
// non-overlapping. Pure and deterministic given its inputs.
func GenerateSlots(windows []models.AvailabilityWindow, booked []time.Time, now time.Time) []models.SlotRange {
	if len(windows) == 0 {
		return nil
	}

	ordered := make([]models.AvailabilityWindow, len(windows))
	copy(ordered, windows)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartTime.Before(ordered[j].StartTime)
	})

	bookedSet := make(map[int64]struct{}, len(booked))
	for _, b := range booked {
		bookedSet[b.Unix()] = struct{}{}
	}

	var slots []models.SlotRange
	for _, w := range ordered {
		for start := w.StartTime; !start.Add(models.SlotDuration).After(w.EndTime); start = start.Add(models.SlotDuration) {
			if !start.After(now) {
				continue
			}
			if _, taken := bookedSet[start.Unix()]; taken {
				continue
			}
			slots = append(slots, models.SlotRange{Start: start, End: start.Add(models.SlotDuration)})
		}
	}
	return slots
}
