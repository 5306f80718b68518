package medication

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	// Replace overwrites every column of an existing medication, including
	// the fields Update leaves alone.
	Replace(ctx context.Context, m *Medication) error
	// ListByPatient returns the patient's medications, newest start first.
	// With activeOnly only Active medications are returned.
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error)
}
