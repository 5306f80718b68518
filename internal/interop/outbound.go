package interop

import (
	"math"
	"strconv"
	"strings"

	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/identity"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
	"github.com/familyhealth/healthrecord/internal/domain/terminology"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/pkg/fhirmodels"
)

// PatientSource is written to Patient.meta.source on export.
const PatientSource = "Family Health Record App"

// Outbound maps domain entities to FHIR resources.
type Outbound struct {
	tables *terminology.Tables
}

func NewOutbound(tables *terminology.Tables) *Outbound {
	return &Outbound{tables: tables}
}

func patientRef(id string) fhir.Reference {
	return fhir.Reference{Reference: fhir.FormatReference("Patient", id)}
}

func (o *Outbound) Patient(p *identity.Patient) *fhir.Patient {
	active := p.Active
	fp := &fhir.Patient{
		ResourceType: "Patient",
		ID:           p.ID.String(),
		Meta:         &fhir.Meta{Source: PatientSource},
		Active:       &active,
		Name: []fhir.HumanName{{
			Use:    fhirmodels.NameUseOfficial,
			Family: p.LastName,
			Given:  []string{p.FirstName},
		}},
		Gender:    fhirGender(p.Gender),
		BirthDate: fhir.FormatDate(p.DateOfBirth),
	}
	if p.PhoneNumber != nil && *p.PhoneNumber != "" {
		fp.Telecom = append(fp.Telecom, fhir.ContactPoint{
			System: fhirmodels.ContactSystemPhone, Value: *p.PhoneNumber, Use: fhirmodels.ContactUseMobile,
		})
	}
	if p.Email != "" {
		fp.Telecom = append(fp.Telecom, fhir.ContactPoint{
			System: fhirmodels.ContactSystemEmail, Value: p.Email, Use: fhirmodels.ContactUseHome,
		})
	}
	if p.EmergencyContactName != nil && *p.EmergencyContactName != "" {
		contact := fhir.PatientContact{
			Relationship: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{
					System:  terminology.SystemContactRelationship,
					Code:    fhirmodels.ContactRoleEmergency,
					Display: fhirmodels.ContactRoleEmergencyDisplay,
				}},
			}},
			Name: &fhir.HumanName{Text: *p.EmergencyContactName},
		}
		if p.EmergencyContactRelationship != nil {
			contact.Relationship[0].Text = *p.EmergencyContactRelationship
		}
		if p.EmergencyContactPhone != nil && *p.EmergencyContactPhone != "" {
			contact.Telecom = []fhir.ContactPoint{{System: fhirmodels.ContactSystemPhone, Value: *p.EmergencyContactPhone}}
		}
		fp.Contact = []fhir.PatientContact{contact}
	}
	return fp
}

func fhirGender(g identity.Gender) string {
	switch g {
	case identity.GenderMale:
		return fhirmodels.GenderMale
	case identity.GenderFemale:
		return fhirmodels.GenderFemale
	case identity.GenderOther:
		return fhirmodels.GenderOther
	case identity.GenderUnknown:
		return fhirmodels.GenderUnknown
	default:
		return fhirmodels.GenderUnknown
	}
}

func (o *Outbound) Observation(obs *clinical.Observation) *fhir.Observation {
	fo := &fhir.Observation{
		ResourceType:      "Observation",
		ID:                obs.ID.String(),
		Status:            fhirmodels.ObservationStatusFinal,
		Category:          []fhir.CodeableConcept{*o.tables.ObservationCategory(obs.Category).Concept("")},
		Code:              *o.tables.ObservationCode(obs.ObservationType).Concept(obs.ObservationType),
		EffectiveDateTime: fhir.FormatDateTime(obs.RecordedAt),
	}
	subject := patientRef(obs.PatientID.String())
	fo.Subject = &subject
	if obs.RecordedBy != "" {
		fo.Performer = []fhir.Reference{{Display: obs.RecordedBy}}
	}
	setObservationValue(fo, obs)
	if obs.Notes != nil && *obs.Notes != "" {
		fo.Note = []fhir.Annotation{{Time: fo.EffectiveDateTime, Text: *obs.Notes}}
	}
	return fo
}

// setObservationValue picks the value shape: blood pressure components for
// "s/d" readings, a quantity for decimals, otherwise a string.
func setObservationValue(fo *fhir.Observation, obs *clinical.Observation) {
	value := strings.TrimSpace(obs.Value)
	if isBloodPressure(obs.ObservationType) && strings.Contains(value, "/") {
		if comps, ok := bloodPressureComponents(value); ok {
			fo.Component = comps
			return
		}
	}
	if f, ok := parseDecimal(value); ok {
		unit := "1"
		if obs.Unit != nil && *obs.Unit != "" {
			unit = *obs.Unit
		}
		fo.ValueQuantity = &fhir.Quantity{Value: &f, Unit: unit, System: terminology.SystemUCUM, Code: unit}
		return
	}
	fo.ValueString = &value
}

func isBloodPressure(observationType string) bool {
	return strings.EqualFold(strings.TrimSpace(observationType), "blood pressure")
}

func parseDecimal(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func bloodPressureComponents(value string) ([]fhir.ObservationComponent, bool) {
	parts := strings.SplitN(value, "/", 2)
	systolic, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	diastolic, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return nil, false
	}
	component := func(code, display string, v int) fhir.ObservationComponent {
		f := float64(v)
		return fhir.ObservationComponent{
			Code: fhir.CodeableConcept{Coding: []fhir.Coding{{System: terminology.SystemLOINC, Code: code, Display: display}}},
			ValueQuantity: &fhir.Quantity{
				Value: &f, Unit: "mmHg", System: terminology.SystemUCUM, Code: "mm[Hg]",
			},
		}
	}
	return []fhir.ObservationComponent{
		component(fhirmodels.LOINCSystolicBP, "Systolic blood pressure", systolic),
		component(fhirmodels.LOINCDiastolicBP, "Diastolic blood pressure", diastolic),
	}, true
}

func (o *Outbound) Condition(c *clinical.Condition) *fhir.Condition {
	fc := &fhir.Condition{
		ResourceType:       "Condition",
		ID:                 c.ID.String(),
		ClinicalStatus:     o.tables.ClinicalStatus(c.Status).Concept(""),
		VerificationStatus: o.tables.VerificationStatus().Concept(""),
		Code:               o.tables.ConditionCode(c.Name).Concept(c.Name),
		Subject:            patientRef(c.PatientID.String()),
		RecordedDate:       fhir.FormatDateTime(c.RecordedAt),
	}
	if c.Severity != clinical.SeverityMild && c.Severity != "" {
		fc.Severity = o.tables.SeverityCode(c.Severity).Concept("")
	}
	if c.OnsetDate != nil {
		fc.OnsetDateTime = fhir.FormatDateTime(*c.OnsetDate)
	}
	if c.ResolvedDate != nil {
		fc.AbatementDateTime = fhir.FormatDateTime(*c.ResolvedDate)
	}
	if c.RecordedBy != "" {
		fc.Recorder = &fhir.Reference{Display: c.RecordedBy}
	}
	var lines []string
	if c.Description != nil && *c.Description != "" {
		lines = append(lines, *c.Description)
	}
	if c.Treatment != nil && *c.Treatment != "" {
		lines = append(lines, treatmentPrefix+*c.Treatment)
	}
	if len(lines) > 0 {
		fc.Note = []fhir.Annotation{{Time: fc.RecordedDate, Text: strings.Join(lines, "\n")}}
	}
	return fc
}

const (
	treatmentPrefix    = "Treatment: "
	purposePrefix      = "Purpose: "
	sideEffectsPrefix  = "Side effects: "
	instructionsPrefix = "Instructions: "
)

func (o *Outbound) Medication(m *medication.Medication) *fhir.MedicationRequest {
	fm := &fhir.MedicationRequest{
		ResourceType:              "MedicationRequest",
		ID:                        m.ID.String(),
		Status:                    o.tables.MedicationStatus(m.Status),
		Intent:                    fhirmodels.MedRequestIntentOrder,
		MedicationCodeableConcept: o.tables.MedicationCode(m.Name).Concept(m.Name),
		Subject:                   patientRef(m.PatientID.String()),
		AuthoredOn:                fhir.FormatDateTime(m.StartDate),
	}
	if text := dosageText(m.Dosage, m.Frequency); text != "" {
		fm.DosageInstruction = []fhir.Dosage{{Text: text}}
	}
	period := &fhir.Period{Start: fhir.FormatDateTime(m.StartDate)}
	if m.EndDate != nil {
		period.End = fhir.FormatDateTime(*m.EndDate)
	}
	fm.DispenseRequest = &fhir.DispenseRequest{ValidityPeriod: period}
	if m.PrescribedBy != nil && *m.PrescribedBy != "" {
		fm.Requester = &fhir.Reference{Display: *m.PrescribedBy}
	}
	if m.RecordedBy != "" {
		fm.Recorder = &fhir.Reference{Display: m.RecordedBy}
	}
	if m.Purpose != nil && *m.Purpose != "" {
		fm.ReasonCode = []fhir.CodeableConcept{{Text: *m.Purpose}}
		fm.Note = append(fm.Note, fhir.Annotation{Time: fm.AuthoredOn, Text: purposePrefix + *m.Purpose})
	}
	if m.SideEffects != nil && *m.SideEffects != "" {
		fm.Note = append(fm.Note, fhir.Annotation{Time: fm.AuthoredOn, Text: sideEffectsPrefix + *m.SideEffects})
	}
	if m.Instructions != nil && *m.Instructions != "" {
		fm.Note = append(fm.Note, fhir.Annotation{Time: fm.AuthoredOn, Text: instructionsPrefix + *m.Instructions})
	}
	return fm
}

func dosageText(dosage, frequency *string) string {
	var parts []string
	for _, p := range []*string{dosage, frequency} {
		if p == nil {
			continue
		}
		if v := strings.TrimSpace(*p); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}
