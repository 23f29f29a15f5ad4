package appointment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medisched/medisched/internal/domain/patient"
	"github.com/medisched/medisched/internal/platform/clock"
)

// ReliabilityTracker maintains each patient's consecutive no-show streak and
// applies the automatic block. The streak is recomputed from the recent
// outcome history on every no-show rather than incremented, so it
// self-corrects after retroactive status fixes.
type ReliabilityTracker struct {
	patients     patient.Repository
	appointments Repository
	clock        clock.Clock
	threshold    int
	lookback     int
	logger       zerolog.Logger
}

func NewReliabilityTracker(patients patient.Repository, appointments Repository, clk clock.Clock, threshold, lookback int, logger zerolog.Logger) *ReliabilityTracker {
	return &ReliabilityTracker{
		patients:     patients,
		appointments: appointments,
		clock:        clk,
		threshold:    threshold,
		lookback:     lookback,
		logger:       logger,
	}
}

// RecordNoShow recomputes the streak after a no-show was persisted and
// blocks the patient when the streak reaches the threshold. It returns
// whether this call newly blocked the patient. Runs inside the no-show
// transaction so the streak and the triggering status commit together.
func (t *ReliabilityTracker) RecordNoShow(ctx context.Context, pat *patient.Patient) (bool, error) {
	history, err := t.appointments.RecentOutcomes(ctx, pat.ID, t.lookback)
	if err != nil {
		return false, err
	}

	streak := 0
	for _, a := range history {
		if a.Status != StatusNoShow {
			break
		}
		streak++
	}

	pat.ConsecutiveNoShows = streak
	newlyBlocked := false
	if streak >= t.threshold && !pat.IsBlocked {
		reason := fmt.Sprintf("automatically blocked after %d consecutive missed appointments", streak)
		pat.Block(t.clock.Now(), reason)
		newlyBlocked = true
		t.logger.Warn().
			Str("patient_id", pat.ID.String()).
			Int("streak", streak).
			Msg("patient auto-blocked for repeated no-shows")
	}

	if err := t.patients.UpdateReliability(ctx, pat); err != nil {
		return false, err
	}
	return newlyBlocked, nil
}

// RecordCompleted resets the streak after an attended appointment.
func (t *ReliabilityTracker) RecordCompleted(ctx context.Context, pat *patient.Patient) error {
	if pat.ConsecutiveNoShows == 0 {
		return nil
	}
	pat.ConsecutiveNoShows = 0
	return t.patients.UpdateReliability(ctx, pat)
}
