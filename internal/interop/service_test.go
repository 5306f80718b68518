package interop

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/blobstore"
	"github.com/familyhealth/healthrecord/internal/platform/events"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/internal/platform/lock"
)

type brokenArchive struct{ blobstore.Store }

func (brokenArchive) Put(context.Context, string, string, []byte, map[string]string) (*blobstore.Object, error) {
	return nil, errors.New("bucket unavailable")
}

func newTestService(f *fixture, archive blobstore.Store, rec *events.Recorder) *Service {
	svc := NewService(f.exporter(), f.importer(), lock.NewLocal(time.Minute), archive, rec, zerolog.New(io.Discard))
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestService_ExportArchivesAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.addCondition(t, "Asthma", clinical.ConditionInput{})
	archive := blobstore.NewMemory()
	rec := &events.Recorder{}
	svc := newTestService(f, archive, rec)

	res, err := svc.Export(context.Background(), NewExportRequest(f.patient.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantKey := ArchiveKey(f.patient.ID, res.BundleID, fhir.FormatJSON)
	if res.ArchiveKey != wantKey {
		t.Errorf("expected archive key %s, got %s", wantKey, res.ArchiveKey)
	}
	body, obj, err := archive.Get(context.Background(), wantKey)
	if err != nil {
		t.Fatalf("archived bundle missing: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != res.Content {
		t.Error("archived content differs from the export")
	}
	if obj.ContentType != "application/fhir+json" || obj.Tags["record_id"] != res.RecordID.String() {
		t.Errorf("unexpected object %+v", obj)
	}

	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != events.TypeExportCompleted {
		t.Fatalf("expected one export.completed event, got %+v", evs)
	}
	if evs[0].PatientID != f.patient.ID.String() || evs[0].Data["resource_count"] != 1 {
		t.Errorf("unexpected event %+v", evs[0])
	}
}

func TestService_ExportArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f, brokenArchive{}, &events.Recorder{})
	res, err := svc.Export(context.Background(), NewExportRequest(f.patient.ID))
	if err != nil {
		t.Fatalf("archive failure must not fail the export: %v", err)
	}
	if res.ArchiveKey != "" {
		t.Errorf("expected no archive key, got %s", res.ArchiveKey)
	}
}

func TestService_ExportWithoutArchive(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.exporter(), f.importer(), lock.NewLocal(0), nil, nil, zerolog.New(io.Discard))
	res, err := svc.Export(context.Background(), NewExportRequest(f.patient.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ArchiveKey != "" {
		t.Error("expected no archive key without an archive")
	}
}

func TestService_ExportFailurePublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.records.createErr = errors.New("disk full")
	rec := &events.Recorder{}
	svc := newTestService(f, blobstore.NewMemory(), rec)
	if _, err := svc.Export(context.Background(), NewExportRequest(f.patient.ID)); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.Events()) != 0 {
		t.Error("failed export must not publish")
	}
}

func TestService_ImportPublishes(t *testing.T) {
	f := newFixture(t)
	rec := &events.Recorder{}
	svc := newTestService(f, nil, rec)
	res, err := svc.Import(context.Background(), importJSON(f.patient.ID, bundleOf(weightJSON, asthmaJSON)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Converted() != 2 {
		t.Errorf("expected 2 converted, got %d", res.Converted())
	}
	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != events.TypeImportCompleted {
		t.Fatalf("expected one import.completed event, got %+v", evs)
	}
	if evs[0].Data["imported_resources"] != 2 || evs[0].Data["errors"] != 0 {
		t.Errorf("unexpected event data %v", evs[0].Data)
	}
}

func TestService_ConcurrentImportRejected(t *testing.T) {
	f := newFixture(t)
	locker := lock.NewLocal(time.Minute)
	svc := NewService(f.exporter(), f.importer(), locker, nil, nil, zerolog.New(io.Discard))

	var inner error
	err := locker.WithLock(context.Background(), "import:"+f.patient.ID.String(), func(ctx context.Context) error {
		_, inner = svc.Import(ctx, importJSON(f.patient.ID, []byte(weightJSON)))
		return nil
	})
	if err != nil {
		t.Fatalf("outer lock: %v", err)
	}
	if !errors.Is(inner, apperr.ErrDomainState) {
		t.Fatalf("expected domain state error, got %v", inner)
	}
	if len(f.records.all()) != 0 {
		t.Error("rejected import must store nothing")
	}

	// the lock is free again
	if _, err := svc.Import(context.Background(), importJSON(f.patient.ID, []byte(weightJSON))); err != nil {
		t.Fatalf("import after release: %v", err)
	}
}

func TestService_ImportDecodeError(t *testing.T) {
	f := newFixture(t)
	rec := &events.Recorder{}
	svc := newTestService(f, nil, rec)
	_, err := svc.Import(context.Background(), importJSON(f.patient.ID, []byte("{")))
	if !errors.Is(err, apperr.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if len(rec.Events()) != 0 {
		t.Error("failed import must not publish")
	}
}

func TestArchiveKey(t *testing.T) {
	f := newFixture(t)
	if got := ArchiveKey(f.patient.ID, "b1", fhir.FormatXML); got != "exports/"+f.patient.ID.String()+"/b1.xml" {
		t.Errorf("unexpected key %s", got)
	}
}
