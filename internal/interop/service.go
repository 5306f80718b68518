package interop

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/blobstore"
	"github.com/familyhealth/healthrecord/internal/platform/events"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/internal/platform/lock"
)

// Service runs exports and imports with their side effects: one import per
// patient at a time, an archive copy of every exported bundle, and a
// completion event for each pipeline run.
type Service struct {
	exporter  *Exporter
	importer  *Importer
	locker    lock.Locker
	archive   blobstore.Store
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the pipelines. A nil archive disables archiving; a nil
// publisher drops events.
func NewService(exporter *Exporter, importer *Importer, locker lock.Locker, archive blobstore.Store, publisher events.Publisher, log zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		exporter:  exporter,
		importer:  importer,
		locker:    locker,
		archive:   archive,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	start := s.now()
	res, err := s.exporter.Export(ctx, req)
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", req.PatientID.String()).Msg("export failed")
		return nil, err
	}

	if s.archive != nil {
		key := ArchiveKey(req.PatientID, res.BundleID, req.Format)
		_, err := s.archive.Put(ctx, key, res.MIMEType, []byte(res.Content), map[string]string{
			"patient_id": req.PatientID.String(),
			"record_id":  res.RecordID.String(),
		})
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("archive export bundle failed")
		} else {
			res.ArchiveKey = key
		}
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeExportCompleted,
		PatientID:  req.PatientID.String(),
		OccurredAt: res.ExportedAt,
		Data: map[string]any{
			"bundle_id":      res.BundleID,
			"record_id":      res.RecordID.String(),
			"format":         res.Format,
			"resource_count": res.ResourceCount,
		},
	})

	s.log.Info().
		Str("patient_id", req.PatientID.String()).
		Str("bundle_id", res.BundleID).
		Str("format", res.Format).
		Int("resource_count", res.ResourceCount).
		Dur("duration", s.now().Sub(start)).
		Msg("export completed")
	return res, nil
}

// Import runs the import under the patient's lock. A concurrent import for
// the same patient fails with a domain state error.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	start := s.now()
	var res *ImportResult
	err := s.locker.WithLock(ctx, "import:"+req.PatientID.String(), func(ctx context.Context) error {
		var err error
		res, err = s.importer.Import(ctx, req)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, apperr.DomainState("An import is already running for patient %s", req.PatientID)
	}
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", req.PatientID.String()).Msg("import failed")
		return res, err
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeImportCompleted,
		PatientID:  req.PatientID.String(),
		OccurredAt: res.ImportedAt,
		Data: map[string]any{
			"imported_resources":     res.ImportedResources,
			"converted_observations": res.ConvertedObservations,
			"converted_conditions":   res.ConvertedConditions,
			"converted_medications":  res.ConvertedMedications,
			"errors":                 len(res.Errors),
		},
	})

	s.log.Info().
		Str("patient_id", req.PatientID.String()).
		Str("format", req.Format.String()).
		Int("imported_resources", res.ImportedResources).
		Int("converted", res.Converted()).
		Int("errors", len(res.Errors)).
		Dur("duration", s.now().Sub(start)).
		Msg("import completed")
	return res, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event", e.Type).Msg("publish event failed")
	}
}

// ArchiveKey is the object key of an archived export bundle.
func ArchiveKey(patientID uuid.UUID, bundleID string, format fhir.Format) string {
	ext := "json"
	if format == fhir.FormatXML {
		ext = "xml"
	}
	return "exports/" + patientID.String() + "/" + bundleID + "." + ext
}
