package appointment

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("appointment not found")

// ViolationKind classifies a business-rule rejection. Handlers map kinds to
// response payloads; infrastructure errors never carry a kind.
type ViolationKind string

const (
	KindInactiveProfile       ViolationKind = "inactive_profile"
	KindPatientBlocked        ViolationKind = "patient_blocked"
	KindDoctorNotSchedulable  ViolationKind = "doctor_not_schedulable"
	KindProfileIncomplete     ViolationKind = "profile_incomplete"
	KindFutureLimitExceeded   ViolationKind = "future_appointment_limit"
	KindInsufficientLeadTime  ViolationKind = "insufficient_lead_time"
	KindOutsideAvailability   ViolationKind = "outside_availability"
	KindScheduleBlocked       ViolationKind = "schedule_blocked"
	KindSchedulingConflict    ViolationKind = "scheduling_conflict"
	KindInvalidTransition     ViolationKind = "invalid_transition"
	KindRescheduleLimit       ViolationKind = "reschedule_limit"
	KindActorMismatch         ViolationKind = "actor_mismatch"
	KindInvalidRequest        ViolationKind = "invalid_request"
)

// Violation is a business-rule rejection. It is an error so services can
// return it through normal error plumbing, and callers unwrap it with
// errors.As to distinguish rule failures from infrastructure faults. Field
// names the offending request attribute.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Field   string        `json:"field,omitempty"`
	Message string        `json:"message"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Message)
}

func violate(kind ViolationKind, field, format string, args ...interface{}) *Violation {
	return &Violation{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsViolation extracts a Violation from an error chain.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
