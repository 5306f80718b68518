package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

type Gender string

const (
	GenderMale    Gender = "Male"
	GenderFemale  Gender = "Female"
	GenderOther   Gender = "Other"
	GenderUnknown Gender = "Unknown"
)

var validGenders = []string{string(GenderMale), string(GenderFemale), string(GenderOther), string(GenderUnknown)}

// ParseGender accepts the gender names case-insensitively. Empty means Unknown.
func ParseGender(raw string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male":
		return GenderMale, nil
	case "female":
		return GenderFemale, nil
	case "other":
		return GenderOther, nil
	case "unknown", "":
		return GenderUnknown, nil
	}
	return GenderUnknown, apperr.InvalidValue("gender", raw, validGenders)
}

const (
	RelationshipSelf = "Self"

	maxAgeYears   = 150
	adultAgeYears = 18
)

// Patient maps to the patient table. A patient linked to a parent through
// ParentPatientID is a family member of that parent.
type Patient struct {
	ID                           uuid.UUID  `db:"id" json:"id"`
	Email                        string     `db:"email" json:"email"`
	FirstName                    string     `db:"first_name" json:"first_name"`
	LastName                     string     `db:"last_name" json:"last_name"`
	DateOfBirth                  time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender                       Gender     `db:"gender" json:"gender"`
	PhoneNumber                  *string    `db:"phone_number" json:"phone_number,omitempty"`
	Relationship                 string     `db:"relationship" json:"relationship"`
	ParentPatientID              *uuid.UUID `db:"parent_patient_id" json:"parent_patient_id,omitempty"`
	Active                       bool       `db:"active" json:"active"`
	CreatedAt                    time.Time  `db:"created_at" json:"created_at"`
	LastAccessedAt               *time.Time `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
	EmergencyContactName         *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone        *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	EmergencyContactRelationship *string    `db:"emergency_contact_relationship" json:"emergency_contact_relationship,omitempty"`
	BloodType                    *string    `db:"blood_type" json:"blood_type,omitempty"`
	Allergies                    []string   `db:"allergies" json:"allergies"`
	MedicalNotes                 *string    `db:"medical_notes" json:"medical_notes,omitempty"`
	ShareWithFamily              bool       `db:"share_with_family" json:"share_with_family"`
	RestrictedCategories         []string   `db:"restricted_categories" json:"restricted_categories"`
}

// NewPatient builds an active patient. Email and both names are required and
// the birth date must fall within the last 150 years.
func NewPatient(email, firstName, lastName string, dateOfBirth time.Time, gender Gender, now time.Time) (*Patient, error) {
	email = strings.TrimSpace(email)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if firstName == "" {
		return nil, apperr.Validation("first_name is required")
	}
	if lastName == "" {
		return nil, apperr.Validation("last_name is required")
	}
	if err := validateDateOfBirth(dateOfBirth, now); err != nil {
		return nil, err
	}
	if gender == "" {
		gender = GenderUnknown
	}
	return &Patient{
		ID:                   uuid.New(),
		Email:                email,
		FirstName:            firstName,
		LastName:             lastName,
		DateOfBirth:          dateOfBirth,
		Gender:               gender,
		Relationship:         RelationshipSelf,
		Active:               true,
		CreatedAt:            now.UTC(),
		Allergies:            []string{},
		RestrictedCategories: []string{},
	}, nil
}

func validateDateOfBirth(dob, now time.Time) error {
	if dob.After(now) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	if dob.Before(now.AddDate(-maxAgeYears, 0, 0)) {
		return apperr.Validation("date_of_birth cannot be more than 150 years ago")
	}
	return nil
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age is the number of completed years at the given instant.
func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.DateOfBirth.Year()
	if now.Month() < p.DateOfBirth.Month() || (now.Month() == p.DateOfBirth.Month() && now.Day() < p.DateOfBirth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

func (p *Patient) IsChild(now time.Time) bool {
	return p.Age(now) < adultAgeYears
}

// UpdatePersonalInfo replaces the names, birth date and phone. The same
// rules as NewPatient apply.
func (p *Patient) UpdatePersonalInfo(firstName, lastName string, dateOfBirth time.Time, phone *string, now time.Time) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" {
		return apperr.Validation("first_name is required")
	}
	if lastName == "" {
		return apperr.Validation("last_name is required")
	}
	if err := validateDateOfBirth(dateOfBirth, now); err != nil {
		return err
	}
	p.FirstName = firstName
	p.LastName = lastName
	p.DateOfBirth = dateOfBirth
	p.PhoneNumber = trimmedOrNil(phone)
	return nil
}

func (p *Patient) UpdateEmergencyContact(name, phone, relationship string) error {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	relationship = strings.TrimSpace(relationship)
	if name == "" || phone == "" || relationship == "" {
		return apperr.Validation("emergency contact name, phone and relationship are required")
	}
	p.EmergencyContactName = &name
	p.EmergencyContactPhone = &phone
	p.EmergencyContactRelationship = &relationship
	return nil
}

func (p *Patient) UpdateMedicalInfo(bloodType *string, allergies []string, notes *string) {
	p.BloodType = trimmedOrNil(bloodType)
	p.Allergies = dedupe(allergies)
	p.MedicalNotes = trimmedOrNil(notes)
}

func (p *Patient) UpdatePrivacySettings(shareWithFamily bool, restricted []string) {
	p.ShareWithFamily = shareWithFamily
	p.RestrictedCategories = dedupe(restricted)
}

// Touch records an access to the patient record.
func (p *Patient) Touch(now time.Time) {
	t := now.UTC()
	p.LastAccessedAt = &t
}

func (p *Patient) Deactivate() {
	p.Active = false
}

// LinkToParent makes the patient a family member of parentID.
func (p *Patient) LinkToParent(parentID uuid.UUID, relationship string) error {
	if parentID == p.ID {
		return apperr.Validation("a patient cannot be its own parent")
	}
	relationship = strings.TrimSpace(relationship)
	if relationship == "" {
		return apperr.Validation("relationship is required")
	}
	p.ParentPatientID = &parentID
	p.Relationship = relationship
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// dedupe trims entries and drops empties and duplicates, keeping first-seen order.
func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[strings.ToLower(it)] {
			continue
		}
		seen[strings.ToLower(it)] = true
		out = append(out, it)
	}
	return out
}
