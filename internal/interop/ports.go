// Package interop converts family health records to and from FHIR R4 and
// runs the bundle export and import pipelines.
package interop

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/exchange"
	"github.com/familyhealth/healthrecord/internal/domain/identity"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
)

type PatientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type ObservationStore interface {
	Create(ctx context.Context, o *clinical.Observation) error
	Replace(ctx context.Context, o *clinical.Observation) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time) ([]*clinical.Observation, error)
}

type ConditionStore interface {
	Create(ctx context.Context, c *clinical.Condition) error
	Replace(ctx context.Context, c *clinical.Condition) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*clinical.Condition, error)
}

type MedicationStore interface {
	Create(ctx context.Context, m *medication.Medication) error
	Replace(ctx context.Context, m *medication.Medication) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*medication.Medication, error)
}

type RecordStore interface {
	Create(ctx context.Context, r *exchange.Record) error
	Update(ctx context.Context, r *exchange.Record) error
	FindByResource(ctx context.Context, patientID uuid.UUID, resourceType, resourceID string) (*exchange.Record, error)
}

// Stores groups the repositories the pipelines read from and write to.
type Stores struct {
	Patients     PatientReader
	Observations ObservationStore
	Conditions   ConditionStore
	Medications  MedicationStore
	Records      RecordStore
}
