package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	patients Repository
	logger   zerolog.Logger
}

func NewService(patients Repository, logger zerolog.Logger) *Service {
	return &Service{patients: patients, logger: logger}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, onlyBlocked bool, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, onlyBlocked, limit, offset)
}

// Unblock lifts an automatic or manual block and zeroes the no-show streak,
// so the next block requires a fresh run of misses.
func (s *Service) Unblock(ctx context.Context, id uuid.UUID, actorID string) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsBlocked {
		return p, nil
	}
	p.Unblock()
	if err := s.patients.UpdateReliability(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", id.String()).
		Str("actor_id", actorID).
		Msg("patient unblocked")
	return p, nil
}
