package models

import "time"

// SlotDuration is the fixed scheduling granularity of the platform.
const SlotDuration = 30 * time.Minute

// AppointmentStatus enumerates the appointment lifecycle.
type AppointmentStatus string

const (
	StatusRequested           AppointmentStatus = "requested"
	StatusApproved            AppointmentStatus = "approved"
	StatusRejected            AppointmentStatus = "rejected"
	StatusCompleted           AppointmentStatus = "completed"
	StatusCancelled           AppointmentStatus = "cancelled"
	StatusRescheduleRequested AppointmentStatus = "reschedule_requested"
	StatusRescheduled         AppointmentStatus = "rescheduled"
)

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusRequested, StatusApproved, StatusRejected, StatusCompleted,
		StatusCancelled, StatusRescheduleRequested, StatusRescheduled:
		return true
	}
	return false
}

// ActiveStatuses is the canonical set of statuses that occupy a doctor/time
// slot for every conflict check. Only cancelled and rejected free a slot.
var ActiveStatuses = []AppointmentStatus{
	StatusRequested,
	StatusApproved,
	StatusRescheduleRequested,
	StatusRescheduled,
	StatusCompleted,
}

// IsActive reports whether the status occupies its time slot.
func (s AppointmentStatus) IsActive() bool {
	return s != StatusCancelled && s != StatusRejected
}

// Appointment is one booked 30-minute slot.
type Appointment struct {
	ID              string            `db:"id" json:"id"`
	PatientID       string            `db:"patient_id" json:"patient_id"`
	DoctorID        string            `db:"doctor_id" json:"doctor_id"`
	RescheduledFrom *string           `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	ScheduledFor    time.Time         `db:"scheduled_for" json:"scheduled_for"`
	Reason          string            `db:"reason" json:"reason"`
	Status          AppointmentStatus `db:"status" json:"status"`
	PaymentID       *string           `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// SlotRange is a bookable interval emitted by the slot generator.
type SlotRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BlockSlot is one appointment slot inside a display block.
type BlockSlot struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AppointmentBlock is a derived, non-persisted run of contiguous same-attribute
// appointment slots, used for presentation only.
type AppointmentBlock struct {
	DoctorID        string            `json:"doctor_id"`
	PatientID       string            `json:"patient_id"`
	Date            string            `json:"date"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	Status          AppointmentStatus `json:"status"`
	Reason          string            `json:"reason"`
	PaymentID       *string           `json:"payment_id,omitempty"`
	IsPaid          bool              `json:"is_paid"`
	RescheduledFrom *string           `json:"rescheduled_from,omitempty"`
	SlotIDs         []string          `json:"slot_ids"`
	Slots           []BlockSlot       `json:"slots"`
}

// RootID returns the id of the block's first slot, the anchor a reschedule
// links back to.
func (b *AppointmentBlock) RootID() string {
	if len(b.SlotIDs) == 0 {
		return ""
	}
	return b.SlotIDs[0]
}

// BlockPerspective selects the counterpart ordering for block grouping.
type BlockPerspective int

const (
	// PerspectivePatient groups a patient's bookings, counterpart = doctor.
	PerspectivePatient BlockPerspective = iota
	// PerspectiveDoctor groups a doctor's calendar, counterpart = patient.
	PerspectiveDoctor
)

// BookingResult summarises a bulk slot booking attempt.
type BookingResult struct {
	Created        int         `json:"created"`
	Requested      int         `json:"requested"`
	RejectedStarts []time.Time `json:"rejected_starts,omitempty"`
	Appointments   []string    `json:"appointment_ids"`
}
