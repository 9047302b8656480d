package service

import (
	"sort"
	"time"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

// SortForGrouping orders appointments by (counterpart id, scheduled_for), the
// precondition GroupAppointments relies on. The counterpart is the doctor when
// grouping a patient's bookings and the patient when grouping a doctor's
// calendar.
func SortForGrouping(appts []models.Appointment, perspective models.BlockPerspective) {
	sort.SliceStable(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		ca, cb := a.DoctorID, b.DoctorID
		if perspective == models.PerspectiveDoctor {
			ca, cb = a.PatientID, b.PatientID
		}
		if ca != cb {
			return ca < cb
		}
		return a.ScheduledFor.Before(b.ScheduledFor)
	})
}

// GroupAppointments collapses contiguous 30-minute appointments into display
// blocks. An appointment extends the current block only when doctor, patient,
// date, status, reason, payment identity and reschedule link all match and its
// start is exactly one slot after the block's last start. The input must
// already be sorted via SortForGrouping; loc fixes the calendar date each slot
// falls on. Pure fold, no persistence effects.
func GroupAppointments(sorted []models.Appointment, loc *time.Location) []models.AppointmentBlock {
	if loc == nil {
		loc = time.UTC
	}

	var blocks []models.AppointmentBlock
	var current *models.AppointmentBlock
	var lastStart time.Time

	for _, appt := range sorted {
		day := appt.ScheduledFor.In(loc).Format("2006-01-02")

		if current != nil && sameBlock(current, appt, day, lastStart) {
			current.SlotIDs = append(current.SlotIDs, appt.ID)
			current.Slots = append(current.Slots, models.BlockSlot{
				ID:    appt.ID,
				Start: appt.ScheduledFor,
				End:   appt.ScheduledFor.Add(models.SlotDuration),
			})
			current.End = appt.ScheduledFor.Add(models.SlotDuration)
			lastStart = appt.ScheduledFor
			continue
		}

		if current != nil {
			blocks = append(blocks, *current)
		}
		current = &models.AppointmentBlock{
			DoctorID:        appt.DoctorID,
			PatientID:       appt.PatientID,
			Date:            day,
			Start:           appt.ScheduledFor,
			End:             appt.ScheduledFor.Add(models.SlotDuration),
			Status:          appt.Status,
			Reason:          appt.Reason,
			PaymentID:       appt.PaymentID,
			RescheduledFrom: appt.RescheduledFrom,
			SlotIDs:         []string{appt.ID},
			Slots: []models.BlockSlot{{
				ID:    appt.ID,
				Start: appt.ScheduledFor,
				End:   appt.ScheduledFor.Add(models.SlotDuration),
			}},
		}
		lastStart = appt.ScheduledFor
	}

	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks
}

func sameBlock(b *models.AppointmentBlock, appt models.Appointment, day string, lastStart time.Time) bool {
	return appt.DoctorID == b.DoctorID &&
		appt.PatientID == b.PatientID &&
		day == b.Date &&
		appt.Status == b.Status &&
		appt.Reason == b.Reason &&
		equalRef(appt.PaymentID, b.PaymentID) &&
		equalRef(appt.RescheduledFrom, b.RescheduledFrom) &&
		appt.ScheduledFor.Equal(lastStart.Add(models.SlotDuration))
}

func equalRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
