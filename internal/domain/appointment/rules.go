package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/medisched/internal/domain/doctor"
	"github.com/medisched/medisched/internal/domain/patient"
	"github.com/medisched/medisched/internal/platform/auth"
	"github.com/medisched/medisched/internal/platform/clock"
)

// Rules holds the tunable thresholds of the booking policy.
type Rules struct {
	LeadTime        time.Duration
	CancelMinLead   time.Duration
	MaxFuture       int
	RescheduleLimit int
	NoShowThreshold int
	NoShowLookback  int
}

// Validator runs the ordered booking rule chain. Rules execute cheapest
// first and the chain stops at the first violation; the conflict probe only
// runs when every prior rule passed.
type Validator struct {
	availability doctor.AvailabilityRepository
	appointments Repository
	conflicts    *ConflictDetector
	clock        clock.Clock
	rules        Rules
}

func NewValidator(availability doctor.AvailabilityRepository, appointments Repository, conflicts *ConflictDetector, clk clock.Clock, rules Rules) *Validator {
	return &Validator{
		availability: availability,
		appointments: appointments,
		conflicts:    conflicts,
		clock:        clk,
		rules:        rules,
	}
}

// ValidateBooking runs the full creation chain for the proposed interval.
// prev is nil on creation and the appointment being moved on reschedule; its
// current occupancy is excluded from the conflict probe and, when still
// future-active, from the future-appointment cap.
func (v *Validator) ValidateBooking(ctx context.Context, doc *doctor.Doctor, pat *patient.Patient, actor auth.Actor, start time.Time, durationMinutes int, prev *Appointment) error {
	if durationMinutes <= 0 {
		return violate(KindInvalidRequest, "duration_minutes", "duration must be positive")
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	var ignoreID *uuid.UUID
	if prev != nil {
		ignoreID = &prev.ID
	}

	if !doc.ProfileActive() {
		return violate(KindInactiveProfile, "doctor_id", "doctor account must be active")
	}
	if !pat.ProfileActive() {
		return violate(KindInactiveProfile, "patient_id", "patient account must be active")
	}

	if pat.IsBlocked {
		return violate(KindPatientBlocked, "patient_id", "patient is blocked from booking appointments")
	}

	schedules, err := v.availability.WeeklySchedules(ctx, doc.ID)
	if err != nil {
		return err
	}
	if !doctor.HasSchedulableWindow(schedules) {
		return violate(KindDoctorNotSchedulable, "doctor_id", "doctor has no open availability windows")
	}

	if !pat.ProfileCompleted {
		return violate(KindProfileIncomplete, "patient_id", "patient profile must be completed before booking")
	}

	now := v.clock.Now()

	count, err := v.appointments.CountFutureActive(ctx, pat.ID, now)
	if err != nil {
		return err
	}
	if prev != nil && prev.Status.Active() && prev.ScheduledAt.After(now) && count > 0 {
		// The appointment being rescheduled is itself a future active one;
		// it must not count against its own cap.
		count--
	}
	if count >= v.rules.MaxFuture {
		return violate(KindFutureLimitExceeded, "patient_id", "patient already has %d upcoming appointments", count)
	}

	// Admins book on behalf of the front desk and may fill same-day gaps.
	if !actor.Role.IsAdmin() && start.Before(now.Add(v.rules.LeadTime)) {
		return violate(KindInsufficientLeadTime, "scheduled_at", "appointments require at least %s notice", v.rules.LeadTime)
	}

	if !doctor.CoveredByAny(schedules, start, end) {
		return violate(KindOutsideAvailability, "scheduled_at", "the requested time falls outside the doctor's availability")
	}
	blocks, err := v.availability.BlocksForDate(ctx, doc.ID, dateOf(start))
	if err != nil {
		return err
	}
	if doctor.AnyBlockIntersects(blocks, start, end) {
		return violate(KindScheduleBlocked, "scheduled_at", "the doctor is unavailable at the requested time")
	}

	return v.conflicts.Check(ctx, doc.ID, pat.ID, start, durationMinutes, ignoreID)
}

// ValidateCancel enforces the cancellation policy. No-shows are settled and
// cannot be cancelled; non-admins must cancel with at least CancelMinLead
// before the scheduled time. Cancelling an already cancelled appointment is
// allowed and handled as a no-op upstream.
func (v *Validator) ValidateCancel(a *Appointment, actor auth.Actor) error {
	if a.Status == StatusNoShow {
		return violate(KindInvalidTransition, "status", "a missed appointment cannot be cancelled")
	}
	if a.Status == StatusCompleted {
		return violate(KindInvalidTransition, "status", "a completed appointment cannot be cancelled")
	}
	if !actor.Role.IsAdmin() && a.ScheduledAt.Sub(v.clock.Now()) < v.rules.CancelMinLead {
		return violate(KindInsufficientLeadTime, "scheduled_at", "cancellations require at least %s notice", v.rules.CancelMinLead)
	}
	return nil
}

// ValidateReschedule enforces the reschedule preconditions that precede the
// full booking chain on the new interval.
func (v *Validator) ValidateReschedule(ctx context.Context, a *Appointment, actor auth.Actor, logs LogRepository) error {
	if a.Status.Terminal() {
		return violate(KindInvalidTransition, "status", "a %s appointment cannot be rescheduled", a.Status)
	}
	// Moving an imminent appointment is equivalent to a late cancellation.
	if !actor.Role.IsAdmin() && a.ScheduledAt.Sub(v.clock.Now()) < v.rules.CancelMinLead {
		return violate(KindInsufficientLeadTime, "scheduled_at", "reschedules require at least %s notice", v.rules.CancelMinLead)
	}
	if !actor.Role.IsAdmin() {
		count, err := logs.CountByAction(ctx, a.ID, ActionRescheduled)
		if err != nil {
			return err
		}
		if count >= v.rules.RescheduleLimit {
			return violate(KindRescheduleLimit, "appointment_id", "this appointment has already been rescheduled %d times", count)
		}
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
