package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, onlyBlocked bool, limit, offset int) ([]*Patient, int, error)
	// UpdateReliability persists the no-show streak and block fields only.
	UpdateReliability(ctx context.Context, p *Patient) error
}
