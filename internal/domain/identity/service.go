package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

type Service struct {
	patients PatientRepository
	now      func() time.Time
}

func NewService(patients PatientRepository) *Service {
	return &Service{patients: patients, now: time.Now}
}

type CreatePatientInput struct {
	Email           string
	FirstName       string
	LastName        string
	DateOfBirth     time.Time
	Gender          Gender
	PhoneNumber     *string
	ParentPatientID *uuid.UUID
	Relationship    string
}

// UpdatePatientInput carries the personal, emergency contact, medical and
// privacy sections. A nil section is left unchanged.
type UpdatePatientInput struct {
	Personal         *PersonalInfo
	EmergencyContact *EmergencyContact
	Medical          *MedicalInfo
	Privacy          *PrivacySettings
}

type PersonalInfo struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	PhoneNumber *string
}

type EmergencyContact struct {
	Name         string
	Phone        string
	Relationship string
}

type MedicalInfo struct {
	BloodType *string
	Allergies []string
	Notes     *string
}

type PrivacySettings struct {
	ShareWithFamily      bool
	RestrictedCategories []string
}

func (s *Service) CreatePatient(ctx context.Context, in CreatePatientInput) (*Patient, error) {
	p, err := NewPatient(in.Email, in.FirstName, in.LastName, in.DateOfBirth, in.Gender, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByEmail(ctx, p.Email); err == nil {
		return nil, apperr.Validation("email is already registered")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	p.PhoneNumber = trimmedOrNil(in.PhoneNumber)
	if in.ParentPatientID != nil {
		if _, err := s.patients.GetByID(ctx, *in.ParentPatientID); err != nil {
			return nil, err
		}
		if err := p.LinkToParent(*in.ParentPatientID, in.Relationship); err != nil {
			return nil, err
		}
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// OpenPatient loads the patient and stamps the access time.
func (s *Service) OpenPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Touch(s.now())
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, in UpdatePatientInput) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Personal != nil {
		if err := p.UpdatePersonalInfo(in.Personal.FirstName, in.Personal.LastName, in.Personal.DateOfBirth, in.Personal.PhoneNumber, s.now()); err != nil {
			return nil, err
		}
	}
	if in.EmergencyContact != nil {
		if err := p.UpdateEmergencyContact(in.EmergencyContact.Name, in.EmergencyContact.Phone, in.EmergencyContact.Relationship); err != nil {
			return nil, err
		}
	}
	if in.Medical != nil {
		p.UpdateMedicalInfo(in.Medical.BloodType, in.Medical.Allergies, in.Medical.Notes)
	}
	if in.Privacy != nil {
		p.UpdatePrivacySettings(in.Privacy.ShareWithFamily, in.Privacy.RestrictedCategories)
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.Deactivate()
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// FamilyMembers lists the patients linked to id as their parent.
func (s *Service) FamilyMembers(ctx context.Context, id uuid.UUID) ([]*Patient, error) {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.patients.ListFamilyMembers(ctx, id)
}
