package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestEvent_JSONShape(t *testing.T) {
	e := Event{
		Type:       TypeExportCompleted,
		PatientID:  "p1",
		OccurredAt: time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC),
		Data:       map[string]any{"resource_count": 3},
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "export.completed" || m["patient_id"] != "p1" {
		t.Errorf("unexpected body: %s", b)
	}
	if m["occurred_at"] != "2024-06-15T10:30:00Z" {
		t.Errorf("unexpected occurred_at: %v", m["occurred_at"])
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r
	_ = p.Publish(context.Background(), Event{Type: TypeImportCompleted})
	_ = Noop{}.Publish(context.Background(), Event{Type: TypeImportCompleted})
	if got := r.Events(); len(got) != 1 || got[0].Type != TypeImportCompleted {
		t.Errorf("unexpected events: %+v", got)
	}
}

type failing struct{ calls int }

func (f *failing) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

func TestFanout(t *testing.T) {
	var r Recorder
	bad := &failing{}
	f := Fanout{bad, &r}
	err := f.Publish(context.Background(), Event{Type: TypeExportCompleted})
	if err == nil || err.Error() != "broker down" {
		t.Fatalf("expected broker error, got %v", err)
	}
	if bad.calls != 1 || len(r.Events()) != 1 {
		t.Errorf("expected both publishers called, got %d and %d", bad.calls, len(r.Events()))
	}
	if err := (Fanout{}).Publish(context.Background(), Event{}); err != nil {
		t.Errorf("empty fanout: %v", err)
	}
}
