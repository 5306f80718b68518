package clinical

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

type Category string

const (
	CategoryVital      Category = "Vital"
	CategorySymptom    Category = "Symptom"
	CategoryMedication Category = "Medication"
	CategoryExercise   Category = "Exercise"
	CategoryGeneral    Category = "General"
)

var validCategories = []string{
	string(CategoryVital), string(CategorySymptom), string(CategoryMedication),
	string(CategoryExercise), string(CategoryGeneral),
}

// ParseCategory matches a category name case-insensitively. Empty means General.
func ParseCategory(raw string) (Category, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return CategoryGeneral, nil
	}
	for _, c := range validCategories {
		if strings.EqualFold(c, v) {
			return Category(c), nil
		}
	}
	return CategoryGeneral, apperr.InvalidValue("category", raw, validCategories)
}

// Observation maps to the clinical_observation table. Only visibility and
// notes change after creation.
type Observation struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	ObservationType   string    `db:"observation_type" json:"observation_type"`
	Value             string    `db:"value" json:"value"`
	Unit              *string   `db:"unit" json:"unit,omitempty"`
	RecordedAt        time.Time `db:"recorded_at" json:"recorded_at"`
	RecordedBy        string    `db:"recorded_by" json:"recorded_by"`
	Category          Category  `db:"category" json:"category"`
	Notes             *string   `db:"notes" json:"notes,omitempty"`
	IsVisibleToFamily bool      `db:"is_visible_to_family" json:"is_visible_to_family"`
}

func NewObservation(patientID uuid.UUID, observationType, value string, unit *string, recordedAt time.Time, recordedBy string, category Category) (*Observation, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	observationType = strings.TrimSpace(observationType)
	value = strings.TrimSpace(value)
	recordedBy = strings.TrimSpace(recordedBy)
	if observationType == "" {
		return nil, apperr.Validation("observation_type is required")
	}
	if value == "" {
		return nil, apperr.Validation("value is required")
	}
	if recordedBy == "" {
		return nil, apperr.Validation("recorded_by is required")
	}
	if category == "" {
		category = CategoryGeneral
	}
	return &Observation{
		ID:                uuid.New(),
		PatientID:         patientID,
		ObservationType:   observationType,
		Value:             value,
		Unit:              nonEmpty(unit),
		RecordedAt:        recordedAt.UTC(),
		RecordedBy:        recordedBy,
		Category:          category,
		IsVisibleToFamily: true,
	}, nil
}

func NewWeight(patientID uuid.UUID, kg float64, recordedAt time.Time, recordedBy string) (*Observation, error) {
	return NewObservation(patientID, "Weight", fmt.Sprintf("%.1f", kg), strPtr("kg"), recordedAt, recordedBy, CategoryVital)
}

func NewHeight(patientID uuid.UUID, cm float64, recordedAt time.Time, recordedBy string) (*Observation, error) {
	return NewObservation(patientID, "Height", fmt.Sprintf("%.1f", cm), strPtr("cm"), recordedAt, recordedBy, CategoryVital)
}

func NewBloodPressure(patientID uuid.UUID, systolic, diastolic int, recordedAt time.Time, recordedBy string) (*Observation, error) {
	return NewObservation(patientID, "Blood Pressure", fmt.Sprintf("%d/%d", systolic, diastolic), strPtr("mmHg"), recordedAt, recordedBy, CategoryVital)
}

func (o *Observation) SetVisibility(visible bool) {
	o.IsVisibleToFamily = visible
}

// AddNotes appends text on a new line.
func (o *Observation) AddNotes(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if o.Notes == nil || *o.Notes == "" {
		o.Notes = &text
		return
	}
	joined := *o.Notes + "\n" + text
	o.Notes = &joined
}

func strPtr(s string) *string { return &s }

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
