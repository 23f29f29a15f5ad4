package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter scopes a listing query. Scope narrows by participant; the
// remaining fields are optional refinements.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	From      *time.Time
	To        *time.Time
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)

	// CountFutureActive counts pending and confirmed appointments scheduled
	// after now for the patient.
	CountFutureActive(ctx context.Context, patientID uuid.UUID, now time.Time) (int, error)

	// ExistsOverlapping reports whether any active appointment of the doctor
	// or the patient overlaps [start, end). ignoreID excludes one appointment,
	// used when rescheduling so the appointment does not conflict with itself.
	ExistsOverlapping(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time, ignoreID *uuid.UUID) (bool, error)

	// RecentOutcomes returns the patient's completed and no-show appointments,
	// most recent scheduled time first, at most limit entries.
	RecentOutcomes(ctx context.Context, patientID uuid.UUID, limit int) ([]*Appointment, error)

	// AcquireScheduleLocks serializes concurrent booking for the doctor and
	// patient within the current transaction.
	AcquireScheduleLocks(ctx context.Context, doctorID, patientID uuid.UUID) error
}

type LogRepository interface {
	Append(ctx context.Context, l *Log) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Log, error)
	CountByAction(ctx context.Context, appointmentID uuid.UUID, action string) (int, error)
}
