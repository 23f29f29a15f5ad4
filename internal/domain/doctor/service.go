package doctor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	doctors      Repository
	availability AvailabilityRepository
}

func NewService(doctors Repository, availability AvailabilityRepository) *Service {
	return &Service{doctors: doctors, availability: availability}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, onlyActive bool, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, onlyActive, limit, offset)
}

// Availability bundles a doctor's recurring windows with the blocks falling
// on one date, the shape the booking UI renders.
type Availability struct {
	DoctorID uuid.UUID        `json:"doctor_id"`
	Date     time.Time        `json:"date"`
	Windows  []WeeklySchedule `json:"windows"`
	Blocks   []ScheduleBlock  `json:"blocks"`
}

func (s *Service) AvailabilityForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Availability, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	all, err := s.availability.WeeklySchedules(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	day := ISOWeekday(date)
	var windows []WeeklySchedule
	for _, ws := range all {
		if ws.DayOfWeek == day && !ws.Blocked {
			windows = append(windows, ws)
		}
	}
	blocks, err := s.availability.BlocksForDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return &Availability{DoctorID: doctorID, Date: date, Windows: windows, Blocks: blocks}, nil
}
