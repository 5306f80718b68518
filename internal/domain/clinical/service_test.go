package clinical

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

// -- Mock Observation Repository --

type mockObsRepo struct {
	store map[uuid.UUID]*Observation
}

func newMockObsRepo() *mockObsRepo {
	return &mockObsRepo{store: make(map[uuid.UUID]*Observation)}
}

func (m *mockObsRepo) Create(_ context.Context, o *Observation) error {
	m.store[o.ID] = o
	return nil
}

func (m *mockObsRepo) GetByID(_ context.Context, id uuid.UUID) (*Observation, error) {
	o, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("observation %s not found", id)
	}
	return o, nil
}

func (m *mockObsRepo) Update(_ context.Context, o *Observation) error {
	if _, ok := m.store[o.ID]; !ok {
		return apperr.NotFound("observation %s not found", o.ID)
	}
	m.store[o.ID] = o
	return nil
}

func (m *mockObsRepo) Replace(ctx context.Context, o *Observation) error {
	return m.Update(ctx, o)
}

func (m *mockObsRepo) ListByPatient(_ context.Context, patientID uuid.UUID, from, to *time.Time) ([]*Observation, error) {
	var result []*Observation
	for _, o := range m.store {
		if o.PatientID != patientID {
			continue
		}
		if from != nil && o.RecordedAt.Before(*from) {
			continue
		}
		if to != nil && o.RecordedAt.After(*to) {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RecordedAt.After(result[j].RecordedAt) })
	return result, nil
}

// -- Mock Condition Repository --

type mockCondRepo struct {
	store map[uuid.UUID]*Condition
}

func newMockCondRepo() *mockCondRepo {
	return &mockCondRepo{store: make(map[uuid.UUID]*Condition)}
}

func (m *mockCondRepo) Create(_ context.Context, c *Condition) error {
	m.store[c.ID] = c
	return nil
}

func (m *mockCondRepo) GetByID(_ context.Context, id uuid.UUID) (*Condition, error) {
	c, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("condition %s not found", id)
	}
	return c, nil
}

func (m *mockCondRepo) Update(_ context.Context, c *Condition) error {
	if _, ok := m.store[c.ID]; !ok {
		return apperr.NotFound("condition %s not found", c.ID)
	}
	m.store[c.ID] = c
	return nil
}

func (m *mockCondRepo) Replace(ctx context.Context, c *Condition) error {
	return m.Update(ctx, c)
}

func (m *mockCondRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Condition, error) {
	var result []*Condition
	for _, c := range m.store {
		if c.PatientID == patientID {
			result = append(result, c)
		}
	}
	return result, nil
}

func newTestService() *Service {
	s := NewService(newMockObsRepo(), newMockCondRepo())
	s.now = func() time.Time { return testNow }
	return s
}

func TestService_RecordObservation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	pid := uuid.New()

	o, err := s.RecordObservation(ctx, RecordObservationInput{
		PatientID: pid, ObservationType: "Temperature", Value: "37.2", Unit: strPtr("C"),
		RecordedBy: "Self", Category: CategoryVital, Notes: "after run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.RecordedAt.Equal(testNow) {
		t.Errorf("expected recorded_at to default to now, got %v", o.RecordedAt)
	}
	if o.Notes == nil || *o.Notes != "after run" {
		t.Errorf("expected notes, got %v", o.Notes)
	}

	got, err := s.GetObservation(ctx, o.ID)
	if err != nil || got.ID != o.ID {
		t.Errorf("GetObservation = %v, %v", got, err)
	}
}

func TestService_ListObservations_Range(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	pid := uuid.New()
	for i := 0; i < 3; i++ {
		at := testNow.AddDate(0, 0, -i*10)
		if _, err := s.RecordObservation(ctx, RecordObservationInput{
			PatientID: pid, ObservationType: "Weight", Value: "70", RecordedAt: &at, RecordedBy: "Self",
		}); err != nil {
			t.Fatal(err)
		}
	}
	from := testNow.AddDate(0, 0, -15)
	items, err := s.ListObservations(ctx, pid, &from, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 observations in range, got %d", len(items))
	}
}

func TestService_ObservationVisibilityAndNotes(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	o, _ := s.RecordObservation(ctx, RecordObservationInput{
		PatientID: uuid.New(), ObservationType: "Mood", Value: "low", RecordedBy: "Self",
	})

	updated, err := s.SetObservationVisibility(ctx, o.ID, false)
	if err != nil || updated.IsVisibleToFamily {
		t.Errorf("SetObservationVisibility = %+v, %v", updated, err)
	}
	updated, err = s.AddObservationNotes(ctx, o.ID, "better by evening")
	if err != nil || *updated.Notes != "better by evening" {
		t.Errorf("AddObservationNotes = %+v, %v", updated, err)
	}
	if _, err := s.AddObservationNotes(ctx, uuid.New(), "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_ConditionLifecycle(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	pid := uuid.New()

	c, err := s.RecordCondition(ctx, pid, "Hypertension", ConditionInput{Severity: SeverityModerate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sev := SeveritySevere
	c, err = s.UpdateCondition(ctx, c.ID, strPtr("lisinopril"), &sev)
	if err != nil || c.Severity != SeveritySevere || *c.Treatment != "lisinopril" {
		t.Errorf("UpdateCondition = %+v, %v", c, err)
	}

	c, err = s.ResolveCondition(ctx, c.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != ConditionResolved || !c.ResolvedDate.Equal(testNow) {
		t.Errorf("unexpected resolved condition %+v", c)
	}
	if _, err := s.ResolveCondition(ctx, c.ID, nil); !errors.Is(err, apperr.ErrDomainState) {
		t.Errorf("expected domain state error, got %v", err)
	}

	list, _ := s.ListConditions(ctx, pid)
	if len(list) != 1 {
		t.Errorf("expected 1 condition, got %d", len(list))
	}
}

func TestService_DeactivateCondition_NotFound(t *testing.T) {
	s := newTestService()
	if _, err := s.DeactivateCondition(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
