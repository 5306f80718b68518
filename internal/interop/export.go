package interop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/domain/exchange"
	"github.com/familyhealth/healthrecord/internal/domain/terminology"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
)

// ExportRequest selects what goes into a patient bundle. From and To bound
// observations by recorded time, inclusive; nil is open.
type ExportRequest struct {
	PatientID           uuid.UUID
	Format              fhir.Format
	IncludeObservations bool
	IncludeConditions   bool
	IncludeMedications  bool
	From                *time.Time
	To                  *time.Time
}

// NewExportRequest returns a JSON export of everything for the patient.
func NewExportRequest(patientID uuid.UUID) ExportRequest {
	return ExportRequest{
		PatientID:           patientID,
		Format:              fhir.FormatJSON,
		IncludeObservations: true,
		IncludeConditions:   true,
		IncludeMedications:  true,
	}
}

// ExportResult describes an encoded bundle. ResourceCount excludes the
// Patient entry.
type ExportResult struct {
	BundleID      string    `json:"bundleId"`
	PatientName   string    `json:"subjectName"`
	Format        string    `json:"format"`
	MIMEType      string    `json:"mimeType"`
	Content       string    `json:"content"`
	ResourceCount int       `json:"resourceCount"`
	ExportedAt    time.Time `json:"exportedAt"`
	RecordID      uuid.UUID `json:"recordId"`
	ArchiveKey    string    `json:"archiveKey,omitempty"`
}

// Exporter assembles a patient's records into one collection bundle.
type Exporter struct {
	stores Stores
	codec  fhir.Codec
	out    *Outbound
	source string
	now    func() time.Time
}

func NewExporter(stores Stores, codec fhir.Codec, tables *terminology.Tables) *Exporter {
	return &Exporter{
		stores: stores,
		codec:  codec,
		out:    NewOutbound(tables),
		source: exchange.SourceExport,
		now:    time.Now,
	}
}

// WithSource overrides the ExchangeRecord source label.
func (e *Exporter) WithSource(source string) *Exporter {
	if source != "" {
		e.source = source
	}
	return e
}

func (e *Exporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	patient, err := e.stores.Patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	bundle := fhir.NewCollectionBundle(now)
	bundle.Add(e.out.Patient(patient))

	if req.IncludeObservations {
		items, err := e.stores.Observations.ListByPatient(ctx, req.PatientID, req.From, req.To)
		if err != nil {
			return nil, fmt.Errorf("list observations: %w", err)
		}
		for _, o := range items {
			bundle.Add(e.out.Observation(o))
		}
	}
	if req.IncludeConditions {
		items, err := e.stores.Conditions.ListByPatient(ctx, req.PatientID)
		if err != nil {
			return nil, fmt.Errorf("list conditions: %w", err)
		}
		for _, c := range items {
			bundle.Add(e.out.Condition(c))
		}
	}
	if req.IncludeMedications {
		items, err := e.stores.Medications.ListByPatient(ctx, req.PatientID, false)
		if err != nil {
			return nil, fmt.Errorf("list medications: %w", err)
		}
		for _, m := range items {
			bundle.Add(e.out.Medication(m))
		}
	}
	content, err := e.codec.Encode(bundle, req.Format)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}

	rec, err := exchange.NewRecord("Bundle", bundle.ID, req.PatientID, string(content), e.source, now)
	if err != nil {
		return nil, err
	}
	rec.SetMeta(exchange.MetaFormat, req.Format.String())
	rec.SetMeta(exchange.MetaBundleID, bundle.ID)
	if err := e.stores.Records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store export record: %w", err)
	}

	return &ExportResult{
		BundleID:      bundle.ID,
		PatientName:   patient.FullName(),
		Format:        req.Format.String(),
		MIMEType:      req.Format.MIMEType(),
		Content:       string(content),
		ResourceCount: len(bundle.Entry) - 1,
		ExportedAt:    now.UTC(),
		RecordID:      rec.ID,
	}, nil
}
