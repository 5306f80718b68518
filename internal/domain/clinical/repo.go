package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ObservationRepository interface {
	Create(ctx context.Context, o *Observation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Observation, error)
	Update(ctx context.Context, o *Observation) error
	// Replace overwrites every column of an existing observation.
	Replace(ctx context.Context, o *Observation) error
	// ListByPatient returns observations recorded within [from, to]; a nil
	// bound is open.
	ListByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time) ([]*Observation, error)
}

type ConditionRepository interface {
	Create(ctx context.Context, c *Condition) error
	GetByID(ctx context.Context, id uuid.UUID) (*Condition, error)
	Update(ctx context.Context, c *Condition) error
	Replace(ctx context.Context, c *Condition) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Condition, error)
}
