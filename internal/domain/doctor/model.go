package doctor

import (
	"time"

	"github.com/google/uuid"
)

// Doctor maps to the doctors table joined with its user account.
type Doctor struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Specialty  *string   `db:"specialty" json:"specialty,omitempty"`
	Active     bool      `db:"active" json:"active"`
	UserActive bool      `db:"user_active" json:"user_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileActive reports whether the doctor's own profile and user account
// are both active.
func (d *Doctor) ProfileActive() bool {
	return d.Active && d.UserActive
}

// WeeklySchedule is a recurring availability window. DayOfWeek is ISO 8601:
// 1 = Monday .. 7 = Sunday. StartTime/EndTime are "HH:MM" wall-clock times.
type WeeklySchedule struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Blocked   bool      `db:"blocked" json:"blocked"`
}

// ScheduleBlock is a one-off unavailability on a specific calendar date,
// either full-day or restricted to a sub-range.
type ScheduleBlock struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date      time.Time `db:"date" json:"date"`
	StartTime *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime   *string   `db:"end_time" json:"end_time,omitempty"`
	IsFullDay bool      `db:"is_full_day" json:"is_full_day"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
}
