package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCNP(ctx context.Context, cnp string) (*Patient, error)
	// ListByDoctor returns the distinct patients the doctor has consulted,
	// most recently seen first.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
}
