package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table joined with its user account. The
// reliability fields (ConsecutiveNoShows, IsBlocked and friends) are owned by
// the appointment engine's no-show tracker.
type Patient struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	UserID             uuid.UUID  `db:"user_id" json:"user_id"`
	Name               string     `db:"name" json:"name"`
	Email              string     `db:"email" json:"email"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	BirthDate          *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	UserActive         bool       `db:"user_active" json:"user_active"`
	ProfileCompleted   bool       `db:"profile_completed" json:"profile_completed"`
	ConsecutiveNoShows int        `db:"consecutive_no_shows" json:"consecutive_no_shows"`
	IsBlocked          bool       `db:"is_blocked" json:"is_blocked"`
	BlockedAt          *time.Time `db:"blocked_at" json:"blocked_at,omitempty"`
	BlockedReason      *string    `db:"blocked_reason" json:"blocked_reason,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfileActive reports whether the backing user account is active.
func (p *Patient) ProfileActive() bool { return p.UserActive }

// Block marks the patient blocked at the given instant. It is a no-op on an
// already blocked patient so repeated threshold crossings keep the original
// block timestamp.
func (p *Patient) Block(at time.Time, reason string) {
	if p.IsBlocked {
		return
	}
	p.IsBlocked = true
	p.BlockedAt = &at
	p.BlockedReason = &reason
}

// Unblock clears the block and resets the no-show streak.
func (p *Patient) Unblock() {
	p.IsBlocked = false
	p.BlockedAt = nil
	p.BlockedReason = nil
	p.ConsecutiveNoShows = 0
}
