package medication

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

var testNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestMedication(t *testing.T) *Medication {
	t.Helper()
	m, err := NewMedication(uuid.New(), "Ibuprofen", Input{Dosage: strPtr("200mg"), Frequency: strPtr("twice daily")}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestNewMedication_Defaults(t *testing.T) {
	m := newTestMedication(t)
	if m.Status != StatusActive {
		t.Errorf("expected Active, got %s", m.Status)
	}
	if !m.StartDate.Equal(testNow) {
		t.Errorf("expected start date to default to now, got %v", m.StartDate)
	}
	if m.RecordedBy != DefaultRecorder || !m.IsVisibleToFamily {
		t.Errorf("unexpected defaults %+v", m)
	}

	if _, err := NewMedication(uuid.New(), "  ", Input{}, testNow); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if _, err := NewMedication(uuid.Nil, "Aspirin", Input{}, testNow); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for nil patient, got %v", err)
	}
}

// Stop and Complete succeed only from Active and leave the entity unchanged otherwise.
func TestMedication_StopCompleteTransitions(t *testing.T) {
	transitions := map[string]func(*Medication) error{
		"stop":     func(m *Medication) error { return m.Stop(testNow, "") },
		"complete": func(m *Medication) error { return m.Complete(testNow) },
	}
	setups := map[Status]func(*Medication){
		StatusActive:    func(*Medication) {},
		StatusStopped:   func(m *Medication) { _ = m.Stop(testNow.Add(-time.Hour), "") },
		StatusCompleted: func(m *Medication) { _ = m.Complete(testNow.Add(-time.Hour)) },
		StatusOnHold:    func(m *Medication) { _ = m.Hold() },
	}

	for name, transition := range transitions {
		for from, setup := range setups {
			t.Run(name+"_from_"+string(from), func(t *testing.T) {
				m := newTestMedication(t)
				setup(m)
				if m.Status != from {
					t.Fatalf("setup produced %s, want %s", m.Status, from)
				}
				before := *m
				err := transition(m)
				if from == StatusActive {
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					if m.EndDate == nil || !m.EndDate.Equal(testNow) {
						t.Errorf("expected end date %v, got %v", testNow, m.EndDate)
					}
					return
				}
				if !errors.Is(err, apperr.ErrDomainState) {
					t.Fatalf("expected domain state error, got %v", err)
				}
				if m.Status != before.Status || m.EndDate != before.EndDate {
					t.Errorf("medication changed on failed transition: %+v", m)
				}
			})
		}
	}
}

func TestMedication_StopMessages(t *testing.T) {
	m := newTestMedication(t)
	_ = m.Complete(testNow)
	if err := m.Stop(testNow, ""); err == nil || err.Error() != "Cannot stop a medication that is not active" {
		t.Errorf("unexpected stop error %v", err)
	}
	if err := m.Complete(testNow); err == nil || err.Error() != "Cannot complete a medication that is not active" {
		t.Errorf("unexpected complete error %v", err)
	}
}

func TestMedication_StopReason(t *testing.T) {
	m := newTestMedication(t)
	m.Instructions = strPtr("Take with food")
	if err := m.Stop(testNow, "rash"); err != nil {
		t.Fatal(err)
	}
	if *m.Instructions != "Take with food\nStopped: rash" {
		t.Errorf("unexpected instructions %q", *m.Instructions)
	}
	if m.Status != StatusStopped {
		t.Errorf("expected Stopped, got %s", m.Status)
	}
}

func TestMedication_HoldResume(t *testing.T) {
	m := newTestMedication(t)
	if err := m.Resume(); !errors.Is(err, apperr.ErrDomainState) {
		t.Errorf("expected resume of active to fail, got %v", err)
	}
	if err := m.Hold(); err != nil || m.Status != StatusOnHold {
		t.Fatalf("Hold: %v (%s)", err, m.Status)
	}
	if err := m.Resume(); err != nil || !m.IsActive() {
		t.Errorf("Resume: %v (%s)", err, m.Status)
	}
}

func TestMedication_RecordSideEffect(t *testing.T) {
	m := newTestMedication(t)
	if err := m.RecordSideEffect("", "Mild", testNow); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	_ = m.RecordSideEffect("Nausea", "Mild", testNow)
	_ = m.RecordSideEffect("Headache", "Moderate", testNow.AddDate(0, 0, 1))

	lines := strings.Split(*m.SideEffects, "\n")
	want := []string{"2024-06-15: Nausea (Severity: Mild)", "2024-06-16: Headache (Severity: Moderate)"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d entries, got %q", len(want), *m.SideEffects)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
