package exchange

import (
	"context"

	"github.com/google/uuid"
)

// SearchParams filters a record listing. Zero fields are ignored.
type SearchParams struct {
	PatientID    uuid.UUID
	ResourceType string
	Status       Status
}

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	// FindByResource returns the newest record for the resource, or an
	// apperr.ErrNotFound error.
	FindByResource(ctx context.Context, patientID uuid.UUID, resourceType, resourceID string) (*Record, error)
	Search(ctx context.Context, p SearchParams, limit, offset int) ([]*Record, int, error)
}
