package interop

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
	"github.com/familyhealth/healthrecord/internal/domain/terminology"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/pkg/fhirmodels"
)

// Defaults applied when an imported resource leaves a required field empty.
const (
	ImportRecorder         = "Import"
	UnknownObservationType = "Unknown"
	UnknownConditionName   = "Unknown Condition"
	UnknownMedicationName  = "Unknown Medication"
)

// Inbound maps FHIR resources back to domain entities. Missing optional
// elements are tolerated; only domain constructor failures are errors.
type Inbound struct {
	tables *terminology.Tables
	now    func() time.Time
}

func NewInbound(tables *terminology.Tables) *Inbound {
	return &Inbound{tables: tables, now: time.Now}
}

func (in *Inbound) Observation(r *fhir.Observation, patientID uuid.UUID) (*clinical.Observation, error) {
	obsType := firstNonEmpty(r.Code.Label(), UnknownObservationType)
	value, unit := observationValue(r)

	recordedAt := in.now()
	if t, ok := fhir.ParseDateTime(r.EffectiveDateTime); ok {
		recordedAt = t
	}
	recorder := ImportRecorder
	if len(r.Performer) > 0 && r.Performer[0].Display != "" {
		recorder = r.Performer[0].Display
	}
	category := clinical.CategoryGeneral
	if len(r.Category) > 0 {
		category = in.tables.CategoryFromCode(r.Category[0].FirstCode())
	}

	obs, err := clinical.NewObservation(patientID, obsType, value, unit, recordedAt, recorder, category)
	if err != nil {
		return nil, err
	}
	if note := firstNote(r.Note); note != "" {
		obs.AddNotes(note)
	}
	return obs, nil
}

// observationValue reads the value shape in order: quantity, string,
// boolean, then components. A systolic/diastolic pair is joined as "s/d".
func observationValue(r *fhir.Observation) (string, *string) {
	switch {
	case r.ValueQuantity != nil && r.ValueQuantity.Value != nil:
		return formatNumber(*r.ValueQuantity.Value), quantityUnit(r.ValueQuantity)
	case r.ValueString != nil:
		return *r.ValueString, nil
	case r.ValueBoolean != nil:
		return strconv.FormatBool(*r.ValueBoolean), nil
	case len(r.Component) > 0:
		if v, ok := bloodPressureValue(r.Component); ok {
			unit := "mmHg"
			return v, &unit
		}
		c := r.Component[0]
		if c.ValueQuantity != nil && c.ValueQuantity.Value != nil {
			return formatNumber(*c.ValueQuantity.Value), quantityUnit(c.ValueQuantity)
		}
		if c.ValueString != nil {
			return *c.ValueString, nil
		}
	}
	return "", nil
}

func bloodPressureValue(comps []fhir.ObservationComponent) (string, bool) {
	var systolic, diastolic *float64
	for _, c := range comps {
		if c.ValueQuantity == nil || c.ValueQuantity.Value == nil {
			continue
		}
		switch c.Code.FirstCode() {
		case fhirmodels.LOINCSystolicBP:
			systolic = c.ValueQuantity.Value
		case fhirmodels.LOINCDiastolicBP:
			diastolic = c.ValueQuantity.Value
		}
	}
	if systolic == nil || diastolic == nil {
		return "", false
	}
	return formatNumber(*systolic) + "/" + formatNumber(*diastolic), true
}

func quantityUnit(q *fhir.Quantity) *string {
	unit := firstNonEmpty(q.Unit, q.Code)
	if unit == "" || unit == "1" {
		return nil
	}
	return &unit
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (in *Inbound) Condition(r *fhir.Condition, patientID uuid.UUID) (*clinical.Condition, error) {
	name := firstNonEmpty(r.Code.Label(), UnknownConditionName)
	description, treatment := splitPrefixed(firstNote(r.Note), treatmentPrefix)

	input := clinical.ConditionInput{
		Description: optional(description),
		Treatment:   optional(treatment),
		Severity:    in.tables.SeverityFromCode(r.Severity.FirstCode()),
		RecordedBy:  ImportRecorder,
	}
	if t, ok := fhir.ParseDateTime(r.OnsetDateTime); ok {
		input.OnsetDate = &t
	}

	cond, err := clinical.NewCondition(patientID, name, input, in.now())
	if err != nil {
		return nil, err
	}
	switch r.ClinicalStatus.FirstCode() {
	case fhirmodels.ConditionResolved:
		at := in.now()
		if t, ok := fhir.ParseDateTime(r.AbatementDateTime); ok {
			at = t
		}
		if err := cond.Resolve(at); err != nil {
			return nil, err
		}
	case fhirmodels.ConditionInactive:
		if err := cond.Deactivate(); err != nil {
			return nil, err
		}
	}
	return cond, nil
}

func (in *Inbound) Medication(r *fhir.MedicationRequest, patientID uuid.UUID) (*medication.Medication, error) {
	name := r.MedicationCodeableConcept.Label()
	if name == "" && r.MedicationReference != nil {
		name = r.MedicationReference.Display
	}
	name = firstNonEmpty(name, UnknownMedicationName)

	input := medication.Input{RecordedBy: ImportRecorder}
	if len(r.DosageInstruction) > 0 {
		input.Dosage = optional(r.DosageInstruction[0].Text)
	}
	if t, ok := fhir.ParseDateTime(r.AuthoredOn); ok {
		input.StartDate = &t
	}
	if r.Requester != nil {
		input.PrescribedBy = optional(r.Requester.Display)
	}
	if len(r.ReasonCode) > 0 {
		input.Purpose = optional(r.ReasonCode[0].Label())
	}
	var sideEffects *string
	for _, n := range r.Note {
		switch {
		case strings.HasPrefix(n.Text, instructionsPrefix):
			input.Instructions = optional(strings.TrimPrefix(n.Text, instructionsPrefix))
		case strings.HasPrefix(n.Text, sideEffectsPrefix):
			sideEffects = optional(strings.TrimPrefix(n.Text, sideEffectsPrefix))
		}
	}

	med, err := medication.NewMedication(patientID, name, input, in.now())
	if err != nil {
		return nil, err
	}
	med.SideEffects = sideEffects

	end := in.now()
	if r.DispenseRequest != nil && r.DispenseRequest.ValidityPeriod != nil {
		if t, ok := fhir.ParseDateTime(r.DispenseRequest.ValidityPeriod.End); ok {
			end = t
		}
	}
	switch r.Status {
	case fhirmodels.MedRequestStopped:
		err = med.Stop(end, "")
	case fhirmodels.MedRequestCompleted:
		err = med.Complete(end)
	case fhirmodels.MedRequestOnHold:
		err = med.Hold()
	}
	if err != nil {
		return nil, err
	}
	return med, nil
}

func firstNote(notes []fhir.Annotation) string {
	if len(notes) == 0 {
		return ""
	}
	return notes[0].Text
}

// splitPrefixed separates a trailing "<prefix>..." line from the text before it.
func splitPrefixed(text, prefix string) (head, tail string) {
	if strings.HasPrefix(text, prefix) {
		return "", strings.TrimPrefix(text, prefix)
	}
	if i := strings.LastIndex(text, "\n"+prefix); i >= 0 {
		return text[:i], text[i+1+len(prefix):]
	}
	return text, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
