package interop

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/exchange"
	"github.com/familyhealth/healthrecord/internal/domain/identity"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
	"github.com/familyhealth/healthrecord/internal/domain/terminology"
	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
)

var testNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

// -- in-memory stores --

type memPatients struct {
	store map[uuid.UUID]*identity.Patient
}

func (m *memPatients) GetByID(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	return p, nil
}

type memObservations struct {
	items   []*clinical.Observation
	failOn  string
	listErr error
}

func (m *memObservations) Create(_ context.Context, o *clinical.Observation) error {
	if m.failOn != "" && o.ObservationType == m.failOn {
		return errors.New("insert failed")
	}
	m.items = append(m.items, o)
	return nil
}

func (m *memObservations) Replace(_ context.Context, o *clinical.Observation) error {
	for i, cur := range m.items {
		if cur.ID == o.ID {
			m.items[i] = o
			return nil
		}
	}
	return apperr.NotFound("observation %s not found", o.ID)
}

func (m *memObservations) ListByPatient(_ context.Context, patientID uuid.UUID, from, to *time.Time) ([]*clinical.Observation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*clinical.Observation
	for _, o := range m.items {
		if o.PatientID != patientID {
			continue
		}
		if from != nil && o.RecordedAt.Before(*from) {
			continue
		}
		if to != nil && o.RecordedAt.After(*to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type memConditions struct {
	items []*clinical.Condition
}

func (m *memConditions) Create(_ context.Context, c *clinical.Condition) error {
	m.items = append(m.items, c)
	return nil
}

func (m *memConditions) Replace(_ context.Context, c *clinical.Condition) error {
	for i, cur := range m.items {
		if cur.ID == c.ID {
			m.items[i] = c
			return nil
		}
	}
	return apperr.NotFound("condition %s not found", c.ID)
}

func (m *memConditions) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*clinical.Condition, error) {
	var out []*clinical.Condition
	for _, c := range m.items {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memMedications struct {
	items []*medication.Medication
}

func (m *memMedications) Create(_ context.Context, med *medication.Medication) error {
	m.items = append(m.items, med)
	return nil
}

func (m *memMedications) Replace(_ context.Context, med *medication.Medication) error {
	for i, cur := range m.items {
		if cur.ID == med.ID {
			m.items[i] = med
			return nil
		}
	}
	return apperr.NotFound("medication %s not found", med.ID)
}

func (m *memMedications) ListByPatient(_ context.Context, patientID uuid.UUID, activeOnly bool) ([]*medication.Medication, error) {
	var out []*medication.Medication
	for _, med := range m.items {
		if med.PatientID != patientID || (activeOnly && !med.IsActive()) {
			continue
		}
		out = append(out, med)
	}
	return out, nil
}

type memRecords struct {
	store      map[uuid.UUID]*exchange.Record
	order      []uuid.UUID
	createErr  error
	failCreate string
}

func newMemRecords() *memRecords {
	return &memRecords{store: make(map[uuid.UUID]*exchange.Record)}
}

func (m *memRecords) Create(_ context.Context, r *exchange.Record) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.failCreate != "" && r.ResourceType == m.failCreate {
		return errors.New("insert failed")
	}
	m.store[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *memRecords) Update(_ context.Context, r *exchange.Record) error {
	if _, ok := m.store[r.ID]; !ok {
		return apperr.NotFound("exchange record %s not found", r.ID)
	}
	m.store[r.ID] = r
	return nil
}

func (m *memRecords) FindByResource(_ context.Context, patientID uuid.UUID, resourceType, resourceID string) (*exchange.Record, error) {
	for _, id := range m.order {
		r := m.store[id]
		if r.PatientID == patientID && r.ResourceType == resourceType && r.ResourceID == resourceID && r.Status != exchange.StatusDeleted {
			return r, nil
		}
	}
	return nil, apperr.NotFound("exchange record %s/%s not found", resourceType, resourceID)
}

// all returns records in creation order.
func (m *memRecords) all() []*exchange.Record {
	out := make([]*exchange.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.store[id])
	}
	return out
}

func (m *memRecords) byType(resourceType string) []*exchange.Record {
	var out []*exchange.Record
	for _, r := range m.all() {
		if r.ResourceType == resourceType {
			out = append(out, r)
		}
	}
	return out
}

// -- fixtures --

type fixture struct {
	patient *identity.Patient
	pats    *memPatients
	obs     *memObservations
	conds   *memConditions
	meds    *memMedications
	records *memRecords
	tables  *terminology.Tables
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p, err := identity.NewPatient("ana@example.com", "Ana", "Silva",
		time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC), identity.GenderFemale, testNow)
	if err != nil {
		t.Fatalf("NewPatient: %v", err)
	}
	return &fixture{
		patient: p,
		pats:    &memPatients{store: map[uuid.UUID]*identity.Patient{p.ID: p}},
		obs:     &memObservations{},
		conds:   &memConditions{},
		meds:    &memMedications{},
		records: newMemRecords(),
		tables:  terminology.Default(),
	}
}

func (f *fixture) stores() Stores {
	return Stores{
		Patients:     f.pats,
		Observations: f.obs,
		Conditions:   f.conds,
		Medications:  f.meds,
		Records:      f.records,
	}
}

func (f *fixture) exporter() *Exporter {
	e := NewExporter(f.stores(), fhir.NewCodec(), f.tables)
	e.now = func() time.Time { return testNow }
	return e
}

func (f *fixture) importer() *Importer {
	im := NewImporter(f.stores(), fhir.NewCodec(), f.tables, zerolog.New(io.Discard))
	im.now = func() time.Time { return testNow }
	im.in.now = func() time.Time { return testNow }
	return im
}

func (f *fixture) addObservation(t *testing.T, obsType, value string, unit *string, at time.Time) *clinical.Observation {
	t.Helper()
	o, err := clinical.NewObservation(f.patient.ID, obsType, value, unit, at, "Mom", clinical.CategoryVital)
	if err != nil {
		t.Fatalf("NewObservation: %v", err)
	}
	f.obs.items = append(f.obs.items, o)
	return o
}

func (f *fixture) addCondition(t *testing.T, name string, in clinical.ConditionInput) *clinical.Condition {
	t.Helper()
	c, err := clinical.NewCondition(f.patient.ID, name, in, testNow)
	if err != nil {
		t.Fatalf("NewCondition: %v", err)
	}
	f.conds.items = append(f.conds.items, c)
	return c
}

func (f *fixture) addMedication(t *testing.T, name string, in medication.Input) *medication.Medication {
	t.Helper()
	m, err := medication.NewMedication(f.patient.ID, name, in, testNow)
	if err != nil {
		t.Fatalf("NewMedication: %v", err)
	}
	f.meds.items = append(f.meds.items, m)
	return m
}

func strPtr(s string) *string { return &s }
