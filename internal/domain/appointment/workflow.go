package appointment

import (
	"time"

	"github.com/medisched/medisched/internal/platform/auth"
)

// transition identifies one edge of the status state machine.
type transition struct {
	from Status
	to   Status
}

// transitionRoles is the full set of legal edges and the roles allowed to
// drive each. Absent edges are illegal for everyone.
var transitionRoles = map[transition][]auth.Role{
	{StatusPending, StatusConfirmed}:   {auth.RoleDoctor, auth.RoleAdmin},
	{StatusPending, StatusCancelled}:   {auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin},
	{StatusPending, StatusCompleted}:   {auth.RoleDoctor, auth.RoleAdmin},
	{StatusConfirmed, StatusCancelled}: {auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin},
	{StatusConfirmed, StatusCompleted}: {auth.RoleDoctor, auth.RoleAdmin},
	{StatusConfirmed, StatusNoShow}:    {auth.RoleDoctor, auth.RoleAdmin},
}

// afterScheduledOnly lists target statuses that assert the visit time has
// passed. Completing or no-showing an appointment before it happens is
// always a rule violation, regardless of role.
var afterScheduledOnly = map[Status]bool{
	StatusCompleted: true,
	StatusNoShow:    true,
}

// Authorize checks whether the actor may move the appointment to the target
// status at the given instant. It returns a Violation on rejection and does
// not mutate the appointment.
func Authorize(a *Appointment, to Status, actor auth.Actor, now time.Time) error {
	roles, ok := transitionRoles[transition{a.Status, to}]
	if !ok {
		return violate(KindInvalidTransition, "status", "cannot move appointment from %s to %s", a.Status, to)
	}

	allowed := false
	for _, r := range roles {
		if actor.Role == r {
			allowed = true
			break
		}
	}
	if !allowed {
		return violate(KindInvalidTransition, "status", "role %s cannot move appointment from %s to %s",
			actor.Role, a.Status, to)
	}

	if afterScheduledOnly[to] && !now.After(a.ScheduledAt) {
		return violate(KindInvalidTransition, "status", "cannot mark %s before the scheduled time", to)
	}
	return nil
}
