package interop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/familyhealth/healthrecord/internal/domain/exchange"
	"github.com/familyhealth/healthrecord/internal/domain/terminology"
	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
)

// ImportRequest carries one FHIR document for a patient. With Validate,
// resources missing required elements are stored as Error records and not
// converted. With OverwriteExisting, a resource that already has a record
// updates it instead of adding a new one, and the entity converted from it
// is replaced rather than duplicated.
type ImportRequest struct {
	PatientID         uuid.UUID
	Content           []byte
	Format            fhir.Format
	Validate          bool
	OverwriteExisting bool
}

type ImportResult struct {
	ImportedResources     int       `json:"importedResources"`
	ConvertedObservations int       `json:"convertedObservations"`
	ConvertedConditions   int       `json:"convertedConditions"`
	ConvertedMedications  int       `json:"convertedMedications"`
	Errors                []string  `json:"errors"`
	ImportedAt            time.Time `json:"importedAt"`
}

// Converted is the number of domain entities created or replaced.
func (r *ImportResult) Converted() int {
	return r.ConvertedObservations + r.ConvertedConditions + r.ConvertedMedications
}

// Importer stores every resource of a document as an ExchangeRecord and
// converts the supported clinical kinds. A failing resource never stops the
// ones after it.
type Importer struct {
	stores Stores
	codec  fhir.Codec
	in     *Inbound
	log    zerolog.Logger
	now    func() time.Time
}

func NewImporter(stores Stores, codec fhir.Codec, tables *terminology.Tables, log zerolog.Logger) *Importer {
	return &Importer{
		stores: stores,
		codec:  codec,
		in:     NewInbound(tables),
		log:    log,
		now:    time.Now,
	}
}

// Import decodes req.Content and processes its resources in document order.
// A decode failure returns an apperr.ErrDecode error and stores nothing.
// If ctx is cancelled between resources the partial result is returned with
// the context error.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if _, err := im.stores.Patients.GetByID(ctx, req.PatientID); err != nil {
		return nil, err
	}
	payload, err := im.codec.Decode(req.Content, req.Format)
	if err != nil {
		return nil, err
	}

	items := importItems(payload, req)
	res := &ImportResult{Errors: []string{}, ImportedAt: im.now().UTC()}
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("import stopped after %d of %d resources: %w", i, len(items), err)
		}
		im.importResource(ctx, req, it, res)
	}
	return res, nil
}

// importItem pairs a decoded resource with the bytes it was read from.
type importItem struct {
	resource fhir.Resource
	source   []byte
}

// importItems flattens a bundle into its entry resources. A lone resource
// keeps the whole request body as its source.
func importItems(payload fhir.Resource, req ImportRequest) []importItem {
	b, ok := payload.(*fhir.Bundle)
	if !ok {
		return []importItem{{resource: payload, source: fhir.Canonical(req.Content, req.Format)}}
	}
	items := make([]importItem, 0, len(b.Entry))
	for _, e := range b.Entry {
		if e.Resource != nil {
			items = append(items, importItem{resource: e.Resource, source: e.Source})
		}
	}
	return items
}

func (im *Importer) importResource(ctx context.Context, req ImportRequest, it importItem, res *ImportResult) {
	r := it.resource
	rec, changed, err := im.storeRecord(ctx, req, it)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to store %s: %v", r.TypeName(), err))
		im.log.Warn().Err(err).Str("resource_type", r.TypeName()).Str("resource_id", r.ResourceID()).
			Msg("store exchange record failed")
		return
	}
	res.ImportedResources++

	// Identical content was converted when it was first imported.
	if !changed && rec.Status != exchange.StatusError {
		return
	}

	if req.Validate {
		if err := fhir.Validate(r); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Validation failed for %s: %v", r.TypeName(), err))
			im.markError(ctx, rec, err)
			return
		}
	}

	entityID, err := im.convert(ctx, req.PatientID, r, linkedEntity(rec), res)
	if err != nil {
		cerr := apperr.Conversion(r.TypeName(), err)
		res.Errors = append(res.Errors, cerr.Error())
		im.log.Debug().Err(err).Str("resource_type", r.TypeName()).Str("resource_id", r.ResourceID()).
			Msg("resource not converted")
		im.markError(ctx, rec, err)
		return
	}
	im.linkEntity(ctx, rec, entityID)
}

// storeRecord persists the resource as it was read. It reports whether the
// stored content is new or changed; an overwrite with identical content
// returns the existing record untouched.
func (im *Importer) storeRecord(ctx context.Context, req ImportRequest, it importItem) (*exchange.Record, bool, error) {
	r := it.resource
	content := it.source
	if len(content) == 0 {
		var err error
		if content, err = im.codec.Encode(r, req.Format); err != nil {
			return nil, false, fmt.Errorf("encode: %w", err)
		}
	}
	now := im.now()

	if req.OverwriteExisting && r.ResourceID() != "" {
		existing, err := im.stores.Records.FindByResource(ctx, req.PatientID, r.TypeName(), r.ResourceID())
		switch {
		case err == nil:
			if !existing.UpdateContent(string(content), now) {
				return existing, false, nil
			}
			existing.SetMeta(exchange.MetaFormat, req.Format.String())
			if err := im.stores.Records.Update(ctx, existing); err != nil {
				return nil, false, err
			}
			return existing, true, nil
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, false, err
		}
	}

	rec, err := exchange.NewRecord(r.TypeName(), r.ResourceID(), req.PatientID, string(content), exchange.SourceImport, now)
	if err != nil {
		return nil, false, err
	}
	rec.SetMeta(exchange.MetaFormat, req.Format.String())
	if err := im.stores.Records.Create(ctx, rec); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (im *Importer) markError(ctx context.Context, rec *exchange.Record, cause error) {
	rec.MarkError(cause.Error(), im.now())
	if err := im.stores.Records.Update(ctx, rec); err != nil {
		im.log.Warn().Err(err).Str("record_id", rec.ID.String()).Msg("mark exchange record failed")
	}
}

// linkedEntity returns the entity an earlier import of the record produced.
func linkedEntity(rec *exchange.Record) uuid.UUID {
	id, err := uuid.Parse(rec.Metadata[exchange.MetaEntityID])
	if err != nil {
		return uuid.Nil
	}
	return id
}

// linkEntity stores the converted entity id on the record and clears an
// earlier conversion error.
func (im *Importer) linkEntity(ctx context.Context, rec *exchange.Record, entityID uuid.UUID) {
	if rec.Status != exchange.StatusError && (entityID == uuid.Nil || linkedEntity(rec) == entityID) {
		return
	}
	if entityID != uuid.Nil {
		rec.SetMeta(exchange.MetaEntityID, entityID.String())
	}
	rec.ClearError(im.now())
	if err := im.stores.Records.Update(ctx, rec); err != nil {
		im.log.Warn().Err(err).Str("record_id", rec.ID.String()).Msg("link exchange record failed")
	}
}

// persist writes a converted entity. When linked names the entity an earlier
// import of the same resource produced, that entity is replaced in place;
// a linked entity that no longer exists is created afresh.
func persist(ctx context.Context, linked uuid.UUID, id *uuid.UUID, create, replace func(context.Context) error) error {
	if linked != uuid.Nil {
		fresh := *id
		*id = linked
		err := replace(ctx)
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		*id = fresh
	}
	return create(ctx)
}

// convert dispatches on the resource kind and returns the id of the entity
// written. Patient and Bundle resources and unmodeled types are stored only.
func (im *Importer) convert(ctx context.Context, patientID uuid.UUID, r fhir.Resource, linked uuid.UUID, res *ImportResult) (uuid.UUID, error) {
	switch r.Kind() {
	case fhir.KindObservation:
		fo, ok := r.(*fhir.Observation)
		if !ok {
			return uuid.Nil, unexpectedShape(r)
		}
		obs, err := im.in.Observation(fo, patientID)
		if err != nil {
			return uuid.Nil, err
		}
		err = persist(ctx, linked, &obs.ID,
			func(ctx context.Context) error { return im.stores.Observations.Create(ctx, obs) },
			func(ctx context.Context) error { return im.stores.Observations.Replace(ctx, obs) })
		if err != nil {
			return uuid.Nil, err
		}
		res.ConvertedObservations++
		return obs.ID, nil
	case fhir.KindCondition:
		fc, ok := r.(*fhir.Condition)
		if !ok {
			return uuid.Nil, unexpectedShape(r)
		}
		cond, err := im.in.Condition(fc, patientID)
		if err != nil {
			return uuid.Nil, err
		}
		err = persist(ctx, linked, &cond.ID,
			func(ctx context.Context) error { return im.stores.Conditions.Create(ctx, cond) },
			func(ctx context.Context) error { return im.stores.Conditions.Replace(ctx, cond) })
		if err != nil {
			return uuid.Nil, err
		}
		res.ConvertedConditions++
		return cond.ID, nil
	case fhir.KindMedicationRequest:
		fm, ok := r.(*fhir.MedicationRequest)
		if !ok {
			return uuid.Nil, unexpectedShape(r)
		}
		med, err := im.in.Medication(fm, patientID)
		if err != nil {
			return uuid.Nil, err
		}
		err = persist(ctx, linked, &med.ID,
			func(ctx context.Context) error { return im.stores.Medications.Create(ctx, med) },
			func(ctx context.Context) error { return im.stores.Medications.Replace(ctx, med) })
		if err != nil {
			return uuid.Nil, err
		}
		res.ConvertedMedications++
		return med.ID, nil
	case fhir.KindPatient, fhir.KindBundle:
	case fhir.KindOther:
		if o, ok := r.(*fhir.OtherResource); ok && o.Err != nil {
			return uuid.Nil, o.Err
		}
	}
	return uuid.Nil, nil
}

func unexpectedShape(r fhir.Resource) error {
	return fmt.Errorf("unexpected %T for %s", r, r.Kind())
}
