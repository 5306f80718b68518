package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	obs   ObservationRepository
	conds ConditionRepository
	now   func() time.Time
}

func NewService(obs ObservationRepository, conds ConditionRepository) *Service {
	return &Service{obs: obs, conds: conds, now: time.Now}
}

// -- Observation --

type RecordObservationInput struct {
	PatientID       uuid.UUID
	ObservationType string
	Value           string
	Unit            *string
	RecordedAt      *time.Time
	RecordedBy      string
	Category        Category
	Notes           string
}

func (s *Service) RecordObservation(ctx context.Context, in RecordObservationInput) (*Observation, error) {
	at := s.now()
	if in.RecordedAt != nil {
		at = *in.RecordedAt
	}
	o, err := NewObservation(in.PatientID, in.ObservationType, in.Value, in.Unit, at, in.RecordedBy, in.Category)
	if err != nil {
		return nil, err
	}
	o.AddNotes(in.Notes)
	if err := s.obs.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) GetObservation(ctx context.Context, id uuid.UUID) (*Observation, error) {
	return s.obs.GetByID(ctx, id)
}

func (s *Service) ListObservations(ctx context.Context, patientID uuid.UUID, from, to *time.Time) ([]*Observation, error) {
	return s.obs.ListByPatient(ctx, patientID, from, to)
}

func (s *Service) SetObservationVisibility(ctx context.Context, id uuid.UUID, visible bool) (*Observation, error) {
	o, err := s.obs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.SetVisibility(visible)
	if err := s.obs.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) AddObservationNotes(ctx context.Context, id uuid.UUID, text string) (*Observation, error) {
	o, err := s.obs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.AddNotes(text)
	if err := s.obs.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// -- Condition --

func (s *Service) RecordCondition(ctx context.Context, patientID uuid.UUID, name string, in ConditionInput) (*Condition, error) {
	c, err := NewCondition(patientID, name, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.conds.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCondition(ctx context.Context, id uuid.UUID) (*Condition, error) {
	return s.conds.GetByID(ctx, id)
}

func (s *Service) ListConditions(ctx context.Context, patientID uuid.UUID) ([]*Condition, error) {
	return s.conds.ListByPatient(ctx, patientID)
}

// ResolveCondition resolves an active condition. A nil date means now.
func (s *Service) ResolveCondition(ctx context.Context, id uuid.UUID, at *time.Time) (*Condition, error) {
	c, err := s.conds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	when := s.now()
	if at != nil {
		when = *at
	}
	if err := c.Resolve(when); err != nil {
		return nil, err
	}
	if err := s.conds.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeactivateCondition(ctx context.Context, id uuid.UUID) (*Condition, error) {
	c, err := s.conds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.conds.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCondition changes treatment and severity. Nil fields are kept.
func (s *Service) UpdateCondition(ctx context.Context, id uuid.UUID, treatment *string, severity *Severity) (*Condition, error) {
	c, err := s.conds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if treatment != nil {
		c.UpdateTreatment(*treatment)
	}
	if severity != nil {
		c.UpdateSeverity(*severity)
	}
	if err := s.conds.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
