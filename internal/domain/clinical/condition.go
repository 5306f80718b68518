package clinical

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

type ConditionStatus string

const (
	ConditionActive   ConditionStatus = "Active"
	ConditionResolved ConditionStatus = "Resolved"
	ConditionInactive ConditionStatus = "Inactive"
)

type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

var validSeverities = []string{string(SeverityMild), string(SeverityModerate), string(SeveritySevere)}

// ParseSeverity matches a severity name case-insensitively. Empty means Mild.
func ParseSeverity(raw string) (Severity, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return SeverityMild, nil
	}
	for _, s := range validSeverities {
		if strings.EqualFold(s, v) {
			return Severity(s), nil
		}
	}
	return SeverityMild, apperr.InvalidValue("severity", raw, validSeverities)
}

const DefaultRecorder = "Self"

// Condition maps to the condition table.
type Condition struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	PatientID         uuid.UUID       `db:"patient_id" json:"patient_id"`
	Name              string          `db:"name" json:"name"`
	Description       *string         `db:"description" json:"description,omitempty"`
	OnsetDate         *time.Time      `db:"onset_date" json:"onset_date,omitempty"`
	ResolvedDate      *time.Time      `db:"resolved_date" json:"resolved_date,omitempty"`
	Status            ConditionStatus `db:"status" json:"status"`
	Severity          Severity        `db:"severity" json:"severity"`
	Treatment         *string         `db:"treatment" json:"treatment,omitempty"`
	RecordedBy        string          `db:"recorded_by" json:"recorded_by"`
	RecordedAt        time.Time       `db:"recorded_at" json:"recorded_at"`
	IsVisibleToFamily bool            `db:"is_visible_to_family" json:"is_visible_to_family"`
}

// ConditionInput holds the optional fields of a new condition.
type ConditionInput struct {
	Description *string
	OnsetDate   *time.Time
	Severity    Severity
	Treatment   *string
	RecordedBy  string
}

// NewCondition creates an active condition. Severity defaults to Mild and the
// recorder to "Self".
func NewCondition(patientID uuid.UUID, name string, in ConditionInput, now time.Time) (*Condition, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	severity := in.Severity
	if severity == "" {
		severity = SeverityMild
	}
	recorder := strings.TrimSpace(in.RecordedBy)
	if recorder == "" {
		recorder = DefaultRecorder
	}
	return &Condition{
		ID:                uuid.New(),
		PatientID:         patientID,
		Name:              name,
		Description:       nonEmpty(in.Description),
		OnsetDate:         in.OnsetDate,
		Status:            ConditionActive,
		Severity:          severity,
		Treatment:         nonEmpty(in.Treatment),
		RecordedBy:        recorder,
		RecordedAt:        now.UTC(),
		IsVisibleToFamily: true,
	}, nil
}

// Resolve moves an active condition to Resolved and stamps the date.
func (c *Condition) Resolve(at time.Time) error {
	if c.Status != ConditionActive {
		return apperr.DomainState("Cannot resolve a condition that is not active")
	}
	t := at.UTC()
	c.Status = ConditionResolved
	c.ResolvedDate = &t
	return nil
}

func (c *Condition) Deactivate() error {
	if c.Status != ConditionActive {
		return apperr.DomainState("Cannot deactivate a condition that is not active")
	}
	c.Status = ConditionInactive
	return nil
}

func (c *Condition) UpdateTreatment(treatment string) {
	c.Treatment = nonEmpty(&treatment)
}

func (c *Condition) UpdateSeverity(s Severity) {
	c.Severity = s
}

func (c *Condition) SetVisibility(visible bool) {
	c.IsVisibleToFamily = visible
}
