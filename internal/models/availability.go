package models

import "time"

// AvailabilityWindow is a doctor-declared open interval on a specific date.
// Start and end are UTC instants on that date; windows for a (doctor, date)
// never overlap. Overlap freedom is maintained entirely by the editor's
// shrink/split/delete logic.
type AvailabilityWindow struct {
	ID        string    `db:"id" json:"id"`
	DoctorID  string    `db:"doctor_id" json:"doctor_id"`
	Date      string    `db:"date" json:"date"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Span returns the window length.
func (w AvailabilityWindow) Span() time.Duration {
	return w.EndTime.Sub(w.StartTime)
}
