package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medisched/medisched/internal/domain/doctor"
	"github.com/medisched/medisched/internal/domain/patient"
	"github.com/medisched/medisched/internal/platform/auth"
	"github.com/medisched/medisched/internal/platform/cache"
	"github.com/medisched/medisched/internal/platform/clock"
	"github.com/medisched/medisched/internal/platform/notification"
)

// TxRunner executes fn inside a database transaction. The production
// implementation wraps db.WithTx; tests substitute a pass-through.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier sends a templated notification. Delivery failures are handled by
// the implementation and never surface here.
type Notifier interface {
	Dispatch(ctx context.Context, recipient, templateID string, data map[string]string, metadata map[string]string)
}

// Deps collects the service's collaborators.
type Deps struct {
	Tx           TxRunner
	Appointments Repository
	Logs         LogRepository
	Doctors      doctor.Repository
	Patients     patient.Repository
	Validator    *Validator
	Tracker      *ReliabilityTracker
	Cache        cache.Store
	CacheTTL     time.Duration
	Notifier     Notifier
	Clock        clock.Clock
	Logger       zerolog.Logger
}

// Service orchestrates the appointment lifecycle: it runs the rule chain,
// drives the status workflow inside transactions, keeps the audit log, and
// triggers cache invalidation and notifications after commit.
type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	return &Service{d: d}
}

// CreateRequest carries the booking parameters.
type CreateRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
	Price           *float64  `json:"price,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
}

// Create books a new appointment in pending state.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor auth.Actor) (*Appointment, error) {
	actorID, err := actorUUID(actor)
	if err != nil {
		return nil, err
	}
	if err := checkParticipant(actor, req.PatientID, req.DoctorID); err != nil {
		return nil, err
	}

	doc, pat, err := s.loadParticipants(ctx, req.DoctorID, req.PatientID)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          StatusPending,
		Type:            req.Type,
		Price:           req.Price,
		Notes:           req.Notes,
		CreatedBy:       actorID,
	}

	err = s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.d.Appointments.AcquireScheduleLocks(ctx, doc.ID, pat.ID); err != nil {
			return err
		}
		if err := s.d.Validator.ValidateBooking(ctx, doc, pat, actor, a.ScheduledAt, a.DurationMinutes, nil); err != nil {
			return err
		}
		if err := s.d.Appointments.Create(ctx, a); err != nil {
			return err
		}
		return s.appendLog(ctx, a, ActionCreated, nil, actor, nil)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, a)
	s.d.Notifier.Dispatch(ctx, doc.Email, notification.TemplateAppointmentRequested,
		notifyData(a, doc, pat), map[string]string{"appointment_id": a.ID.String()})
	return a, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Appointment, error) {
	a, err := s.getOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	now := s.d.Clock.Now()
	if err := Authorize(a, StatusConfirmed, actor, now); err != nil {
		return nil, err
	}

	old := a.Status
	a.Status = StatusConfirmed
	a.ConfirmedAt = &now

	if err := s.transition(ctx, a, ActionConfirmed, old, actor, nil); err != nil {
		return nil, err
	}
	s.notifyParticipants(ctx, a, notification.TemplateAppointmentConfirmed, true, false)
	return a, nil
}

// Cancel cancels a pending or confirmed appointment. Cancelling an already
// cancelled appointment returns it unchanged without a new log entry.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor auth.Actor, reason string) (*Appointment, error) {
	a, err := s.getOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	if err := s.d.Validator.ValidateCancel(a, actor); err != nil {
		return nil, err
	}
	now := s.d.Clock.Now()
	if err := Authorize(a, StatusCancelled, actor, now); err != nil {
		return nil, err
	}

	old := a.Status
	a.Status = StatusCancelled
	a.CancelledAt = &now
	if reason != "" {
		a.CancelReason = &reason
	}

	var detail *string
	if reason != "" {
		detail = &reason
	}
	if err := s.transition(ctx, a, ActionCancelled, old, actor, detail); err != nil {
		return nil, err
	}
	s.notifyParticipants(ctx, a, notification.TemplateAppointmentCancelled, true, true)
	return a, nil
}

// Complete marks an appointment as attended and resets the patient's
// no-show streak.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Appointment, error) {
	a, err := s.getOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	pat, err := s.d.Patients.GetByID(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	now := s.d.Clock.Now()
	if err := Authorize(a, StatusCompleted, actor, now); err != nil {
		return nil, err
	}

	old := a.Status
	a.Status = StatusCompleted
	a.CompletedAt = &now

	err = s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.d.Appointments.Update(ctx, a); err != nil {
			return err
		}
		if err := s.appendLog(ctx, a, ActionCompleted, &old, actor, nil); err != nil {
			return err
		}
		return s.d.Tracker.RecordCompleted(ctx, pat)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, a)
	s.notifyParticipants(ctx, a, notification.TemplateAppointmentCompleted, true, false)
	return a, nil
}

// MarkNoShow records that the patient missed a confirmed appointment and
// updates the reliability streak, blocking the patient when it crosses the
// threshold.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Appointment, error) {
	a, err := s.getOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	pat, err := s.d.Patients.GetByID(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	now := s.d.Clock.Now()
	if err := Authorize(a, StatusNoShow, actor, now); err != nil {
		return nil, err
	}

	old := a.Status
	a.Status = StatusNoShow

	var newlyBlocked bool
	err = s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.d.Appointments.Update(ctx, a); err != nil {
			return err
		}
		if err := s.appendLog(ctx, a, ActionNoShow, &old, actor, nil); err != nil {
			return err
		}
		// The streak recompute must see the status just written, so it runs
		// on the same transaction.
		newlyBlocked, err = s.d.Tracker.RecordNoShow(ctx, pat)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, a)
	s.notifyParticipants(ctx, a, notification.TemplateNoShowRecorded, true, false)
	if newlyBlocked {
		s.d.Notifier.Dispatch(ctx, pat.Email, notification.TemplateAccountBlocked,
			map[string]string{"patient_name": pat.Name}, map[string]string{"patient_id": pat.ID.String()})
	}
	return a, nil
}

// Reschedule moves an active appointment to a new time. The appointment
// returns to pending and must be confirmed again.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, actor auth.Actor, newStart time.Time, newDurationMinutes int) (*Appointment, error) {
	a, err := s.getOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.d.Validator.ValidateReschedule(ctx, a, actor, s.d.Logs); err != nil {
		return nil, err
	}

	doc, pat, err := s.loadParticipants(ctx, a.DoctorID, a.PatientID)
	if err != nil {
		return nil, err
	}

	oldStart := a.ScheduledAt
	oldStatus := a.Status
	newStart = newStart.UTC()
	duration := a.DurationMinutes
	if newDurationMinutes > 0 {
		duration = newDurationMinutes
	}

	err = s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.d.Appointments.AcquireScheduleLocks(ctx, doc.ID, pat.ID); err != nil {
			return err
		}
		if err := s.d.Validator.ValidateBooking(ctx, doc, pat, actor, newStart, duration, a); err != nil {
			return err
		}

		a.ScheduledAt = newStart
		a.DurationMinutes = duration
		a.Status = StatusPending
		a.ConfirmedAt = nil
		a.CancelledAt = nil
		a.CancelReason = nil

		if err := s.d.Appointments.Update(ctx, a); err != nil {
			return err
		}
		detail := fmt.Sprintf("moved from %s to %s", oldStart.Format(time.RFC3339), newStart.Format(time.RFC3339))
		return s.appendLog(ctx, a, ActionRescheduled, &oldStatus, actor, &detail)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, a)
	s.notifyParticipants(ctx, a, notification.TemplateAppointmentRescheduled, true, true)
	return a, nil
}

// Get returns one appointment, restricted to its participants.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Appointment, error) {
	return s.getOwned(ctx, id, actor)
}

// History returns the appointment's audit trail, restricted to its
// participants.
func (s *Service) History(ctx context.Context, id uuid.UUID, actor auth.Actor) ([]*Log, error) {
	if _, err := s.getOwned(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.d.Logs.ListByAppointment(ctx, id)
}

// ListQuery narrows a listing. Period is "upcoming", "past", or empty.
type ListQuery struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Period    string
	Limit     int
	Offset    int
}

// ListPage is the cached listing payload.
type ListPage struct {
	Items []*Appointment `json:"items"`
	Total int            `json:"total"`
}

// List returns appointments visible to the actor. Patients and doctors are
// pinned to their own scope; admins may filter freely. Pages are served from
// the short-TTL cache when present.
func (s *Service) List(ctx context.Context, q ListQuery, actor auth.Actor) (*ListPage, error) {
	actorID, err := actorUUID(actor)
	if err != nil {
		return nil, err
	}

	var scope, scopeID string
	switch actor.Role {
	case auth.RolePatient:
		q.PatientID = &actorID
		q.DoctorID = nil
		scope, scopeID = "patient", actorID.String()
	case auth.RoleDoctor:
		q.DoctorID = &actorID
		q.PatientID = nil
		scope, scopeID = "doctor", actorID.String()
	default:
		scope = cache.ScopeAdmin
	}

	f := ListFilter{PatientID: q.PatientID, DoctorID: q.DoctorID, Status: q.Status}
	now := s.d.Clock.Now()
	switch q.Period {
	case "upcoming":
		f.From = &now
	case "past":
		f.To = &now
	case "":
	default:
		return nil, violate(KindInvalidRequest, "period", "period must be upcoming or past")
	}

	key := cache.Key(scope, scopeID, filterKey(q))
	if raw, ok, err := s.d.Cache.Get(ctx, key); err == nil && ok {
		var page ListPage
		if json.Unmarshal(raw, &page) == nil {
			return &page, nil
		}
	} else if err != nil {
		s.d.Logger.Warn().Err(err).Str("key", key).Msg("listing cache read failed")
	}

	items, total, err := s.d.Appointments.List(ctx, f, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	page := &ListPage{Items: items, Total: total}

	if raw, err := json.Marshal(page); err == nil {
		if err := s.d.Cache.Set(ctx, key, raw, s.d.CacheTTL); err != nil {
			s.d.Logger.Warn().Err(err).Str("key", key).Msg("listing cache write failed")
		}
	}
	return page, nil
}

// -- internals --

func (s *Service) loadParticipants(ctx context.Context, doctorID, patientID uuid.UUID) (*doctor.Doctor, *patient.Patient, error) {
	doc, err := s.d.Doctors.GetByID(ctx, doctorID)
	if err == doctor.ErrNotFound {
		return nil, nil, violate(KindInvalidRequest, "doctor_id", "doctor does not exist")
	}
	if err != nil {
		return nil, nil, err
	}
	pat, err := s.d.Patients.GetByID(ctx, patientID)
	if err == patient.ErrNotFound {
		return nil, nil, violate(KindInvalidRequest, "patient_id", "patient does not exist")
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, pat, nil
}

// getOwned loads the appointment and rejects actors who are neither a
// participant nor an admin.
func (s *Service) getOwned(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Appointment, error) {
	a, err := s.d.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkParticipant(actor, a.PatientID, a.DoctorID); err != nil {
		return nil, err
	}
	return a, nil
}

func checkParticipant(actor auth.Actor, patientID, doctorID uuid.UUID) error {
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RolePatient:
		if actor.ID == patientID.String() {
			return nil
		}
	case auth.RoleDoctor:
		if actor.ID == doctorID.String() {
			return nil
		}
	}
	return violate(KindActorMismatch, "actor_id", "actor is not a participant of this appointment")
}

// transition persists a status change and its log entry in one transaction.
func (s *Service) transition(ctx context.Context, a *Appointment, action string, old Status, actor auth.Actor, detail *string) error {
	err := s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.d.Appointments.Update(ctx, a); err != nil {
			return err
		}
		return s.appendLog(ctx, a, action, &old, actor, detail)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, a)
	return nil
}

func (s *Service) appendLog(ctx context.Context, a *Appointment, action string, old *Status, actor auth.Actor, detail *string) error {
	return s.d.Logs.Append(ctx, &Log{
		AppointmentID: a.ID,
		Action:        action,
		OldStatus:     old,
		NewStatus:     a.Status,
		ActorID:       actor.ID,
		ActorRole:     string(actor.Role),
		Detail:        detail,
	})
}

// afterMutation runs post-commit side effects. Invalidation failures are
// logged and swallowed; stale listings expire with the TTL anyway.
func (s *Service) afterMutation(ctx context.Context, a *Appointment) {
	if err := s.d.Cache.Invalidate(ctx, a.PatientID.String(), a.DoctorID.String()); err != nil {
		s.d.Logger.Warn().Err(err).
			Str("appointment_id", a.ID.String()).
			Msg("listing cache invalidation failed")
	}
}

func (s *Service) notifyParticipants(ctx context.Context, a *Appointment, templateID string, toPatient, toDoctor bool) {
	doc, pat, err := s.loadParticipants(ctx, a.DoctorID, a.PatientID)
	if err != nil {
		s.d.Logger.Warn().Err(err).
			Str("appointment_id", a.ID.String()).
			Msg("participant lookup for notification failed")
		return
	}
	data := notifyData(a, doc, pat)
	meta := map[string]string{"appointment_id": a.ID.String()}
	if toPatient {
		s.d.Notifier.Dispatch(ctx, pat.Email, templateID, data, meta)
	}
	if toDoctor {
		s.d.Notifier.Dispatch(ctx, doc.Email, templateID, data, meta)
	}
}

func notifyData(a *Appointment, doc *doctor.Doctor, pat *patient.Patient) map[string]string {
	data := map[string]string{
		"patient_name": pat.Name,
		"doctor_name":  doc.Name,
		"date":         a.ScheduledAt.Format("2006-01-02"),
		"time":         a.ScheduledAt.Format("15:04"),
	}
	if a.CancelReason != nil {
		data["reason"] = *a.CancelReason
	}
	return data
}

func actorUUID(actor auth.Actor) (uuid.UUID, error) {
	id, err := uuid.Parse(actor.ID)
	if err != nil {
		return uuid.Nil, violate(KindInvalidRequest, "actor_id", "actor id is not a valid uuid")
	}
	return id, nil
}

func filterKey(q ListQuery) string {
	st := ""
	if q.Status != nil {
		st = string(*q.Status)
	}
	pid, did := "", ""
	if q.PatientID != nil {
		pid = q.PatientID.String()
	}
	if q.DoctorID != nil {
		did = q.DoctorID.String()
	}
	return fmt.Sprintf("p=%s&d=%s&st=%s&pr=%s&l=%d&o=%d", pid, did, st, q.Period, q.Limit, q.Offset)
}
