package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back intervals sharing an endpoint do
// not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ConflictDetector answers whether a proposed interval collides with an
// existing active appointment of either participant.
type ConflictDetector struct {
	appointments Repository
}

func NewConflictDetector(appointments Repository) *ConflictDetector {
	return &ConflictDetector{appointments: appointments}
}

// Check returns a Violation when the proposed [start, start+duration)
// interval overlaps an active appointment of the doctor or the patient.
// ignoreID excludes the appointment being rescheduled.
func (d *ConflictDetector) Check(ctx context.Context, doctorID, patientID uuid.UUID, start time.Time, durationMinutes int, ignoreID *uuid.UUID) error {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	found, err := d.appointments.ExistsOverlapping(ctx, doctorID, patientID, start, end, ignoreID)
	if err != nil {
		return err
	}
	if found {
		return violate(KindSchedulingConflict, "scheduled_at", "the requested time overlaps an existing appointment")
	}
	return nil
}
