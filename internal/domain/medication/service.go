package medication

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	meds Repository
	now  func() time.Time
}

func NewService(meds Repository) *Service {
	return &Service{meds: meds, now: time.Now}
}

func (s *Service) AddMedication(ctx context.Context, patientID uuid.UUID, name string, in Input) (*Medication, error) {
	m, err := NewMedication(patientID, name, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.meds.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.meds.GetByID(ctx, id)
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	return s.meds.ListByPatient(ctx, patientID, activeOnly)
}

func (s *Service) StopMedication(ctx context.Context, id uuid.UUID, reason string) (*Medication, error) {
	return s.mutate(ctx, id, func(m *Medication) error { return m.Stop(s.now(), reason) })
}

func (s *Service) CompleteMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.mutate(ctx, id, func(m *Medication) error { return m.Complete(s.now()) })
}

func (s *Service) HoldMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.mutate(ctx, id, (*Medication).Hold)
}

func (s *Service) ResumeMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.mutate(ctx, id, (*Medication).Resume)
}

func (s *Service) RecordSideEffect(ctx context.Context, id uuid.UUID, description, severity string) (*Medication, error) {
	return s.mutate(ctx, id, func(m *Medication) error { return m.RecordSideEffect(description, severity, s.now()) })
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*Medication) error) (*Medication, error) {
	m, err := s.meds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	if err := s.meds.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
