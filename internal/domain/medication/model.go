package medication

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusStopped   Status = "Stopped"
	StatusCompleted Status = "Completed"
	StatusOnHold    Status = "OnHold"
)

const DefaultRecorder = "Self"

// Medication maps to the medication table. Created Active; Stop, Complete
// and Hold are only valid from Active.
type Medication struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	Name              string     `db:"name" json:"name"`
	Dosage            *string    `db:"dosage" json:"dosage,omitempty"`
	Frequency         *string    `db:"frequency" json:"frequency,omitempty"`
	Instructions      *string    `db:"instructions" json:"instructions,omitempty"`
	StartDate         time.Time  `db:"start_date" json:"start_date"`
	EndDate           *time.Time `db:"end_date" json:"end_date,omitempty"`
	Status            Status     `db:"status" json:"status"`
	PrescribedBy      *string    `db:"prescribed_by" json:"prescribed_by,omitempty"`
	Purpose           *string    `db:"purpose" json:"purpose,omitempty"`
	SideEffects       *string    `db:"side_effects" json:"side_effects,omitempty"`
	RecordedBy        string     `db:"recorded_by" json:"recorded_by"`
	RecordedAt        time.Time  `db:"recorded_at" json:"recorded_at"`
	IsVisibleToFamily bool       `db:"is_visible_to_family" json:"is_visible_to_family"`
}

// Input holds the optional fields of a new medication. A nil StartDate
// means now.
type Input struct {
	Dosage       *string
	Frequency    *string
	Instructions *string
	StartDate    *time.Time
	PrescribedBy *string
	Purpose      *string
	RecordedBy   string
}

func NewMedication(patientID uuid.UUID, name string, in Input, now time.Time) (*Medication, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	start := now.UTC()
	if in.StartDate != nil {
		start = in.StartDate.UTC()
	}
	recorder := strings.TrimSpace(in.RecordedBy)
	if recorder == "" {
		recorder = DefaultRecorder
	}
	return &Medication{
		ID:                uuid.New(),
		PatientID:         patientID,
		Name:              name,
		Dosage:            nonEmpty(in.Dosage),
		Frequency:         nonEmpty(in.Frequency),
		Instructions:      nonEmpty(in.Instructions),
		StartDate:         start,
		Status:            StatusActive,
		PrescribedBy:      nonEmpty(in.PrescribedBy),
		Purpose:           nonEmpty(in.Purpose),
		RecordedBy:        recorder,
		RecordedAt:        now.UTC(),
		IsVisibleToFamily: true,
	}, nil
}

// Stop ends an active medication. A non-empty reason is appended to the
// instructions as "Stopped: <reason>".
func (m *Medication) Stop(at time.Time, reason string) error {
	if m.Status != StatusActive {
		return apperr.DomainState("Cannot stop a medication that is not active")
	}
	m.end(StatusStopped, at)
	if reason = strings.TrimSpace(reason); reason != "" {
		m.Instructions = appendLine(m.Instructions, "Stopped: "+reason)
	}
	return nil
}

func (m *Medication) Complete(at time.Time) error {
	if m.Status != StatusActive {
		return apperr.DomainState("Cannot complete a medication that is not active")
	}
	m.end(StatusCompleted, at)
	return nil
}

func (m *Medication) Hold() error {
	if m.Status != StatusActive {
		return apperr.DomainState("Cannot hold a medication that is not active")
	}
	m.Status = StatusOnHold
	return nil
}

func (m *Medication) Resume() error {
	if m.Status != StatusOnHold {
		return apperr.DomainState("Cannot resume a medication that is not on hold")
	}
	m.Status = StatusActive
	return nil
}

// RecordSideEffect appends "yyyy-mm-dd: <description> (Severity: <severity>)".
func (m *Medication) RecordSideEffect(description, severity string, at time.Time) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return apperr.Validation("Side effect description is required")
	}
	entry := fmt.Sprintf("%s: %s (Severity: %s)", at.UTC().Format("2006-01-02"), description, strings.TrimSpace(severity))
	m.SideEffects = appendLine(m.SideEffects, entry)
	return nil
}

func (m *Medication) UpdateDosage(dosage, frequency *string) {
	m.Dosage = nonEmpty(dosage)
	m.Frequency = nonEmpty(frequency)
}

func (m *Medication) SetVisibility(visible bool) {
	m.IsVisibleToFamily = visible
}

func (m *Medication) IsActive() bool {
	return m.Status == StatusActive
}

func (m *Medication) end(status Status, at time.Time) {
	t := at.UTC()
	m.Status = status
	m.EndDate = &t
}

func appendLine(existing *string, line string) *string {
	if existing == nil || *existing == "" {
		return &line
	}
	joined := *existing + "\n" + line
	return &joined
}

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
