package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func (f *fixture) tracker() *ReliabilityTracker {
	return NewReliabilityTracker(f.patients, f.appts, f.clock, 3, 10, zerolog.Nop())
}

// seedOutcome inserts a settled appointment hoursAgo in the past.
func (f *fixture) seedOutcome(status Status, hoursAgo int) {
	f.seed(status, testNow.Add(-time.Duration(hoursAgo)*time.Hour), 30)
}

func TestRecordNoShow_StreakRecompute(t *testing.T) {
	f := newFixture()
	f.seedOutcome(StatusNoShow, 24)
	f.seedOutcome(StatusNoShow, 48)
	f.seedOutcome(StatusCompleted, 72)
	f.seedOutcome(StatusNoShow, 96)

	blocked, err := f.tracker().RecordNoShow(context.Background(), f.patient)
	if err != nil {
		t.Fatalf("RecordNoShow: %v", err)
	}
	if blocked {
		t.Error("streak of 2 must not block")
	}
	if f.patient.ConsecutiveNoShows != 2 {
		t.Errorf("streak = %d, want 2 (completed visit breaks the run)", f.patient.ConsecutiveNoShows)
	}
	if f.patient.IsBlocked {
		t.Error("patient must not be blocked below the threshold")
	}
}

func TestRecordNoShow_BlocksAtThreshold(t *testing.T) {
	f := newFixture()
	f.seedOutcome(StatusNoShow, 24)
	f.seedOutcome(StatusNoShow, 48)
	f.seedOutcome(StatusNoShow, 72)

	blocked, err := f.tracker().RecordNoShow(context.Background(), f.patient)
	if err != nil {
		t.Fatalf("RecordNoShow: %v", err)
	}
	if !blocked {
		t.Fatal("expected the threshold crossing to block")
	}
	if !f.patient.IsBlocked || f.patient.BlockedAt == nil || f.patient.BlockedReason == nil {
		t.Errorf("expected full block record, got %+v", f.patient)
	}
	if f.patient.ConsecutiveNoShows != 3 {
		t.Errorf("streak = %d, want 3", f.patient.ConsecutiveNoShows)
	}
}

func TestRecordNoShow_BlocksOnlyOnce(t *testing.T) {
	f := newFixture()
	f.seedOutcome(StatusNoShow, 24)
	f.seedOutcome(StatusNoShow, 48)
	f.seedOutcome(StatusNoShow, 72)

	tr := f.tracker()
	first, _ := tr.RecordNoShow(context.Background(), f.patient)
	blockedAt := *f.patient.BlockedAt

	f.seedOutcome(StatusNoShow, 12)
	second, err := tr.RecordNoShow(context.Background(), f.patient)
	if err != nil {
		t.Fatalf("RecordNoShow: %v", err)
	}
	if !first || second {
		t.Errorf("block must fire exactly once, got first=%v second=%v", first, second)
	}
	if !f.patient.BlockedAt.Equal(blockedAt) {
		t.Error("repeat crossing must not move the block timestamp")
	}
	if f.patient.ConsecutiveNoShows != 4 {
		t.Errorf("streak keeps counting while blocked, got %d", f.patient.ConsecutiveNoShows)
	}
}

func TestRecordNoShow_LookbackWindow(t *testing.T) {
	f := newFixture()
	// Ten recent no-shows, with an older completed visit outside the window.
	for i := 1; i <= 10; i++ {
		f.seedOutcome(StatusNoShow, i*24)
	}
	f.seedOutcome(StatusCompleted, 11*24)

	tr := NewReliabilityTracker(f.patients, f.appts, f.clock, 3, 10, zerolog.Nop())
	if _, err := tr.RecordNoShow(context.Background(), f.patient); err != nil {
		t.Fatalf("RecordNoShow: %v", err)
	}
	if f.patient.ConsecutiveNoShows != 10 {
		t.Errorf("streak = %d, want the lookback cap of 10", f.patient.ConsecutiveNoShows)
	}
}

func TestRecordCompleted_ResetsStreak(t *testing.T) {
	f := newFixture()
	f.patient.ConsecutiveNoShows = 2

	if err := f.tracker().RecordCompleted(context.Background(), f.patient); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}
	if f.patient.ConsecutiveNoShows != 0 {
		t.Errorf("streak = %d, want 0", f.patient.ConsecutiveNoShows)
	}
	if f.patients.updates != 1 {
		t.Errorf("expected one persist, got %d", f.patients.updates)
	}

	// A zero streak needs no write.
	if err := f.tracker().RecordCompleted(context.Background(), f.patient); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}
	if f.patients.updates != 1 {
		t.Errorf("expected no second persist, got %d", f.patients.updates)
	}
}
