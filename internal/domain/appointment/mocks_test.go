package appointment

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medisched/medisched/internal/domain/doctor"
	"github.com/medisched/medisched/internal/domain/patient"
	"github.com/medisched/medisched/internal/platform/auth"
	"github.com/medisched/medisched/internal/platform/cache"
	"github.com/medisched/medisched/internal/platform/clock"
)

type mockApptRepo struct {
	appointments map[uuid.UUID]*Appointment
	lockCalls    int
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appointments: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appointments[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.ScheduledAt.Before(*f.To) {
			continue
		}
		cp := *a
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledAt.After(items[j].ScheduledAt) })
	return items, len(items), nil
}

func (m *mockApptRepo) CountFutureActive(_ context.Context, patientID uuid.UUID, now time.Time) (int, error) {
	count := 0
	for _, a := range m.appointments {
		if a.PatientID == patientID && a.Status.Active() && a.ScheduledAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (m *mockApptRepo) ExistsOverlapping(_ context.Context, doctorID, patientID uuid.UUID, start, end time.Time, ignoreID *uuid.UUID) (bool, error) {
	for _, a := range m.appointments {
		if ignoreID != nil && a.ID == *ignoreID {
			continue
		}
		if a.DoctorID != doctorID && a.PatientID != patientID {
			continue
		}
		if !a.Status.Active() {
			continue
		}
		if Overlaps(start, end, a.ScheduledAt, a.End()) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockApptRepo) RecentOutcomes(_ context.Context, patientID uuid.UUID, limit int) ([]*Appointment, error) {
	var items []*Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID && (a.Status == StatusCompleted || a.Status == StatusNoShow) {
			cp := *a
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledAt.After(items[j].ScheduledAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockApptRepo) AcquireScheduleLocks(context.Context, uuid.UUID, uuid.UUID) error {
	m.lockCalls++
	return nil
}

type mockLogRepo struct {
	logs []*Log
}

func (m *mockLogRepo) Append(_ context.Context, l *Log) error {
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *mockLogRepo) ListByAppointment(_ context.Context, id uuid.UUID) ([]*Log, error) {
	var out []*Log
	for _, l := range m.logs {
		if l.AppointmentID == id {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLogRepo) CountByAction(_ context.Context, id uuid.UUID, action string) (int, error) {
	count := 0
	for _, l := range m.logs {
		if l.AppointmentID == id && l.Action == action {
			count++
		}
	}
	return count, nil
}

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*doctor.Doctor
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, doctor.ErrNotFound
	}
	return d, nil
}

func (m *mockDoctorRepo) List(context.Context, bool, int, int) ([]*doctor.Doctor, int, error) {
	return nil, 0, nil
}

type mockPatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
	updates  int
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) List(context.Context, bool, int, int) ([]*patient.Patient, int, error) {
	return nil, 0, nil
}

func (m *mockPatientRepo) UpdateReliability(_ context.Context, p *patient.Patient) error {
	m.updates++
	m.patients[p.ID] = p
	return nil
}

type mockAvailability struct {
	schedules []doctor.WeeklySchedule
	blocks    []doctor.ScheduleBlock
}

func (m *mockAvailability) WeeklySchedules(context.Context, uuid.UUID) ([]doctor.WeeklySchedule, error) {
	return m.schedules, nil
}

func (m *mockAvailability) BlocksForDate(_ context.Context, _ uuid.UUID, date time.Time) ([]doctor.ScheduleBlock, error) {
	var out []doctor.ScheduleBlock
	for _, b := range m.blocks {
		if b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

// passTx runs fn directly; the mocks have no transaction semantics.
type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type sentNotification struct {
	Recipient  string
	TemplateID string
	Data       map[string]string
}

type mockNotifier struct {
	sent []sentNotification
}

func (m *mockNotifier) Dispatch(_ context.Context, recipient, templateID string, data map[string]string, _ map[string]string) {
	m.sent = append(m.sent, sentNotification{Recipient: recipient, TemplateID: templateID, Data: data})
}

func (m *mockNotifier) byTemplate(templateID string) []sentNotification {
	var out []sentNotification
	for _, n := range m.sent {
		if n.TemplateID == templateID {
			out = append(out, n)
		}
	}
	return out
}

// fixture wires a service against in-memory collaborators. The clock is
// pinned to Monday 2025-06-09 10:00 UTC; the doctor is available every day
// from 08:00 to 20:00.
type fixture struct {
	svc      *Service
	appts    *mockApptRepo
	logs     *mockLogRepo
	doctors  *mockDoctorRepo
	patients *mockPatientRepo
	avail    *mockAvailability
	notifier *mockNotifier
	clock    clock.Fixed
	doctor   *doctor.Doctor
	patient  *patient.Patient
}

var testNow = time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)

func defaultRules() Rules {
	return Rules{
		LeadTime:        24 * time.Hour,
		CancelMinLead:   24 * time.Hour,
		MaxFuture:       2,
		RescheduleLimit: 2,
		NoShowThreshold: 3,
		NoShowLookback:  10,
	}
}

func newFixture() *fixture {
	doc := &doctor.Doctor{ID: uuid.New(), Name: "Dr. Lima", Email: "lima@clinic.example", Active: true, UserActive: true}
	pat := &patient.Patient{ID: uuid.New(), Name: "Ana Souza", Email: "ana@example.com", UserActive: true, ProfileCompleted: true}

	var schedules []doctor.WeeklySchedule
	for day := 1; day <= 7; day++ {
		schedules = append(schedules, doctor.WeeklySchedule{
			DoctorID: doc.ID, DayOfWeek: day, StartTime: "08:00", EndTime: "20:00",
		})
	}

	f := &fixture{
		appts:    newMockApptRepo(),
		logs:     &mockLogRepo{},
		doctors:  &mockDoctorRepo{doctors: map[uuid.UUID]*doctor.Doctor{doc.ID: doc}},
		patients: &mockPatientRepo{patients: map[uuid.UUID]*patient.Patient{pat.ID: pat}},
		avail:    &mockAvailability{schedules: schedules},
		notifier: &mockNotifier{},
		clock:    clock.Fixed{T: testNow},
		doctor:   doc,
		patient:  pat,
	}

	detector := NewConflictDetector(f.appts)
	validator := NewValidator(f.avail, f.appts, detector, f.clock, defaultRules())
	tracker := NewReliabilityTracker(f.patients, f.appts, f.clock, 3, 10, zerolog.Nop())

	f.svc = NewService(Deps{
		Tx:           passTx{},
		Appointments: f.appts,
		Logs:         f.logs,
		Doctors:      f.doctors,
		Patients:     f.patients,
		Validator:    validator,
		Tracker:      tracker,
		Cache:        cache.Noop{},
		CacheTTL:     5 * time.Minute,
		Notifier:     f.notifier,
		Clock:        f.clock,
		Logger:       zerolog.Nop(),
	})
	return f
}

func (f *fixture) patientActor() auth.Actor {
	return auth.Actor{ID: f.patient.ID.String(), Role: auth.RolePatient}
}

func (f *fixture) doctorActor() auth.Actor {
	return auth.Actor{ID: f.doctor.ID.String(), Role: auth.RoleDoctor}
}

func adminActor() auth.Actor {
	return auth.Actor{ID: uuid.NewString(), Role: auth.RoleAdmin}
}

// seed inserts an appointment directly, bypassing the rule chain.
func (f *fixture) seed(status Status, scheduledAt time.Time, durationMinutes int) *Appointment {
	a := &Appointment{
		PatientID:       f.patient.ID,
		DoctorID:        f.doctor.ID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: durationMinutes,
		Status:          status,
		CreatedBy:       f.patient.UserID,
	}
	_ = f.appts.Create(context.Background(), a)
	return a
}

func wantViolation(err error, kind ViolationKind) bool {
	v, ok := AsViolation(err)
	return ok && v.Kind == kind
}
