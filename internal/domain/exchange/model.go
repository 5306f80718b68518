package exchange

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusDeleted  Status = "Deleted"
	StatusError    Status = "Error"
)

// Sources written by the exchange operations.
const (
	SourceExport = "Family App Export"
	SourceImport = "Import"
)

// Metadata keys.
const (
	MetaFormat   = "format"
	MetaBundleID = "bundle_id"
	MetaError    = "error"
	// MetaEntityID links an imported record to the domain entity converted
	// from it.
	MetaEntityID = "entity_id"
)

// Record is one stored FHIR resource or bundle that crossed the system
// boundary. Records are never removed, only marked Deleted.
type Record struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	ResourceType string            `db:"resource_type" json:"resource_type"`
	ResourceID   string            `db:"resource_id" json:"resource_id"`
	VersionID    string            `db:"version_id" json:"version_id"`
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	Content      string            `db:"content" json:"content"`
	Status       Status            `db:"status" json:"status"`
	LastUpdated  time.Time         `db:"last_updated" json:"last_updated"`
	Source       string            `db:"source" json:"source"`
	Metadata     map[string]string `db:"metadata" json:"metadata,omitempty"`
}

// NewRecord creates an Active record at version "1". A blank resource id
// gets a generated one.
func NewRecord(resourceType, resourceID string, patientID uuid.UUID, content, source string, now time.Time) (*Record, error) {
	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		return nil, apperr.Validation("resource_type is required")
	}
	if patientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if resourceID == "" {
		resourceID = uuid.NewString()
	}
	return &Record{
		ID:           uuid.New(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		VersionID:    "1",
		PatientID:    patientID,
		Content:      content,
		Status:       StatusActive,
		LastUpdated:  now.UTC(),
		Source:       source,
		Metadata:     map[string]string{},
	}, nil
}

// UpdateContent replaces the content and bumps the version. It reports
// whether anything changed; identical content leaves the record untouched.
func (r *Record) UpdateContent(content string, now time.Time) bool {
	if content == r.Content {
		return false
	}
	r.Content = content
	r.VersionID = nextVersion(r.VersionID)
	r.LastUpdated = now.UTC()
	return true
}

func (r *Record) MarkDeleted(now time.Time) error {
	if r.Status == StatusDeleted {
		return apperr.DomainState("exchange record %s is already deleted", r.ID)
	}
	r.Status = StatusDeleted
	r.LastUpdated = now.UTC()
	return nil
}

func (r *Record) MarkError(reason string, now time.Time) {
	r.Status = StatusError
	r.SetMeta(MetaError, reason)
	r.LastUpdated = now.UTC()
}

// ClearError returns an Error record to Active once its content converts.
func (r *Record) ClearError(now time.Time) {
	if r.Status != StatusError {
		return
	}
	r.Status = StatusActive
	delete(r.Metadata, MetaError)
	r.LastUpdated = now.UTC()
}

func (r *Record) SetMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	r.Metadata[key] = value
}

func nextVersion(v string) string {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return "2"
	}
	return strconv.Itoa(n + 1)
}
