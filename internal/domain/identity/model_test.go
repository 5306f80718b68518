package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPatient(t *testing.T) {
	p, err := NewPatient(" jane@example.com ", "Jane", "Doe", date(1990, 5, 4), GenderFemale, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if p.Email != "jane@example.com" {
		t.Errorf("expected trimmed email, got %q", p.Email)
	}
	if !p.Active {
		t.Error("expected active patient")
	}
	if p.Relationship != RelationshipSelf {
		t.Errorf("expected relationship Self, got %q", p.Relationship)
	}
	if p.FullName() != "Jane Doe" {
		t.Errorf("expected full name Jane Doe, got %q", p.FullName())
	}
}

func TestNewPatient_Validation(t *testing.T) {
	tests := []struct {
		name  string
		email string
		first string
		last  string
		dob   time.Time
	}{
		{"missing email", "", "Jane", "Doe", date(1990, 1, 1)},
		{"missing first name", "a@b.c", " ", "Doe", date(1990, 1, 1)},
		{"missing last name", "a@b.c", "Jane", "", date(1990, 1, 1)},
		{"future birth date", "a@b.c", "Jane", "Doe", testNow.AddDate(0, 0, 1)},
		{"too old", "a@b.c", "Jane", "Doe", testNow.AddDate(-151, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPatient(tt.email, tt.first, tt.last, tt.dob, GenderUnknown, testNow)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewPatient_BoundaryBirthDates(t *testing.T) {
	if _, err := NewPatient("a@b.c", "A", "B", testNow, GenderMale, testNow); err != nil {
		t.Errorf("born today should be valid: %v", err)
	}
	if _, err := NewPatient("a@b.c", "A", "B", testNow.AddDate(-150, 0, 0), GenderMale, testNow); err != nil {
		t.Errorf("exactly 150 years should be valid: %v", err)
	}
}

func TestPatient_AgeAndIsChild(t *testing.T) {
	p := &Patient{DateOfBirth: date(2010, 6, 16)}
	if got := p.Age(testNow); got != 13 {
		t.Errorf("expected age 13 the day before the birthday, got %d", got)
	}
	if !p.IsChild(testNow) {
		t.Error("expected child")
	}
	p.DateOfBirth = date(2006, 6, 15)
	if got := p.Age(testNow); got != 18 {
		t.Errorf("expected age 18 on the birthday, got %d", got)
	}
	if p.IsChild(testNow) {
		t.Error("expected adult")
	}
}

func TestParseGender(t *testing.T) {
	tests := map[string]Gender{"male": GenderMale, "FEMALE": GenderFemale, "Other": GenderOther, "": GenderUnknown}
	for in, want := range tests {
		got, err := ParseGender(in)
		if err != nil || got != want {
			t.Errorf("ParseGender(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseGender("robot"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPatient_Mutators(t *testing.T) {
	p, _ := NewPatient("a@b.c", "A", "B", date(1980, 1, 1), GenderMale, testNow)

	if err := p.UpdateEmergencyContact("Sam", "555-0100", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for missing relationship, got %v", err)
	}
	if err := p.UpdateEmergencyContact("Sam", "555-0100", "Spouse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *p.EmergencyContactName != "Sam" || *p.EmergencyContactRelationship != "Spouse" {
		t.Errorf("emergency contact not set: %+v", p)
	}

	blood := " O+ "
	p.UpdateMedicalInfo(&blood, []string{"Peanuts", " peanuts", "", "Latex"}, nil)
	if *p.BloodType != "O+" {
		t.Errorf("expected trimmed blood type, got %q", *p.BloodType)
	}
	if len(p.Allergies) != 2 {
		t.Errorf("expected deduplicated allergies, got %v", p.Allergies)
	}

	p.UpdatePrivacySettings(true, []string{"Medication"})
	if !p.ShareWithFamily || len(p.RestrictedCategories) != 1 {
		t.Errorf("privacy settings not applied: %+v", p)
	}

	p.Touch(testNow)
	if p.LastAccessedAt == nil || !p.LastAccessedAt.Equal(testNow) {
		t.Errorf("expected last accessed %v, got %v", testNow, p.LastAccessedAt)
	}

	p.Deactivate()
	if p.Active {
		t.Error("expected inactive patient")
	}
}

func TestPatient_LinkToParent(t *testing.T) {
	p, _ := NewPatient("kid@b.c", "Kid", "B", date(2015, 1, 1), GenderOther, testNow)
	if err := p.LinkToParent(p.ID, "Child"); err == nil {
		t.Error("expected error when linking to self")
	}
	parent := uuid.New()
	if err := p.LinkToParent(parent, "Child"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *p.ParentPatientID != parent || p.Relationship != "Child" {
		t.Errorf("link not applied: %+v", p)
	}
}
