package doctor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("doctor not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, onlyActive bool, limit, offset int) ([]*Doctor, int, error)
}

// AvailabilityRepository exposes the recurring windows and one-off blocks the
// booking rules consult.
type AvailabilityRepository interface {
	WeeklySchedules(ctx context.Context, doctorID uuid.UUID) ([]WeeklySchedule, error)
	BlocksForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]ScheduleBlock, error)
}
