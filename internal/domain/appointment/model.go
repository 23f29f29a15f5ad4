package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its time slot.
// Only active appointments participate in conflict detection and count
// against the future-appointment cap.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment maps to the appointments table.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ScheduledAt     time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Status          Status     `db:"status" json:"status"`
	Type            string     `db:"type" json:"type,omitempty"`
	Price           *float64   `db:"price" json:"price,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CancelReason    *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	ConfirmedAt     *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedBy       uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// End is the exclusive end of the occupied interval. Two appointments
// touching at End/ScheduledAt do not conflict.
func (a *Appointment) End() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Log action tags. Reschedule counting depends on the "rescheduled" tag, so
// these are stable values, not display strings.
const (
	ActionCreated     = "created"
	ActionConfirmed   = "confirmed"
	ActionCancelled   = "cancelled"
	ActionCompleted   = "completed"
	ActionNoShow      = "no_show"
	ActionRescheduled = "rescheduled"
)

// Log is an immutable audit entry recorded with every lifecycle change.
type Log struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Action        string    `db:"action" json:"action"`
	OldStatus     *Status   `db:"old_status" json:"old_status,omitempty"`
	NewStatus     Status    `db:"new_status" json:"new_status"`
	ActorID       string    `db:"actor_id" json:"actor_id"`
	ActorRole     string    `db:"actor_role" json:"actor_role"`
	Detail        *string   `db:"detail" json:"detail,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
