package terminology

import (
	"sort"
	"strings"

	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/pkg/fhirmodels"
)

// Table names accepted by Lookup.
const (
	TableObservation = "observation"
	TableCondition   = "condition"
	TableMedication  = "medication"
)

var tableNames = []string{TableObservation, TableCondition, TableMedication}

// Tables holds the fixed label-to-code mappings used by the converters.
// A Tables value is never mutated after construction; the With methods
// return modified copies. Every lookup is total.
type Tables struct {
	observations       map[string]Code
	observationDefault Code

	categories      map[clinical.Category]Code
	categoryDefault Code

	conditions       map[string]Code
	conditionDefault Code

	severities map[clinical.Severity]Code

	medications       map[string]Code
	medicationDefault Code

	medicationStatus map[medication.Status]string
	clinicalStatus   map[clinical.ConditionStatus]Code
	verification     Code

	recoverCategory bool
}

var clinicalFinding = Code{System: SystemSNOMED, Code: "404684003", Display: "Clinical finding"}

// Default returns the tables the service runs with.
func Default() *Tables {
	exam := Code{System: SystemObservationCategory, Code: fhirmodels.ObsCategoryExam, Display: "Exam"}
	return &Tables{
		observations: map[string]Code{
			"weight":         {System: SystemLOINC, Code: "29463-7", Display: "Body Weight"},
			"height":         {System: SystemLOINC, Code: "8302-2", Display: "Body Height"},
			"blood pressure": {System: SystemLOINC, Code: "85354-9", Display: "Blood pressure panel"},
			"temperature":    {System: SystemLOINC, Code: "8310-5", Display: "Body Temperature"},
			"heart rate":     {System: SystemSNOMED, Code: "364075005", Display: "Heart rate"},
			"blood glucose":  {System: SystemLOINC, Code: "2339-0", Display: "Glucose"},
			"glucose":        {System: SystemLOINC, Code: "2339-0", Display: "Glucose"},
			"bmi":            {System: SystemLOINC, Code: "39156-5", Display: "Body mass index"},
		},
		observationDefault: clinicalFinding,

		categories: map[clinical.Category]Code{
			clinical.CategoryVital:      {System: SystemObservationCategory, Code: fhirmodels.ObsCategoryVitalSigns, Display: "Vital Signs"},
			clinical.CategorySymptom:    exam,
			clinical.CategoryMedication: exam,
			clinical.CategoryGeneral:    exam,
			clinical.CategoryExercise:   {System: SystemObservationCategory, Code: fhirmodels.ObsCategoryActivity, Display: "Activity"},
		},
		categoryDefault: exam,

		conditions: map[string]Code{
			"diabetes":     {System: SystemSNOMED, Code: "73211009", Display: "Diabetes mellitus"},
			"hypertension": {System: SystemSNOMED, Code: "38341003", Display: "Hypertensive disorder"},
			"asthma":       {System: SystemSNOMED, Code: "195967001", Display: "Asthma"},
		},
		conditionDefault: clinicalFinding,

		severities: map[clinical.Severity]Code{
			clinical.SeverityMild:     {System: SystemSNOMED, Code: "255604002", Display: "Mild"},
			clinical.SeverityModerate: {System: SystemSNOMED, Code: "6736007", Display: "Moderate"},
			clinical.SeveritySevere:   {System: SystemSNOMED, Code: "24484000", Display: "Severe"},
		},

		medications: map[string]Code{
			"aspirin":     {System: SystemSNOMED, Code: "387458008", Display: "Aspirin"},
			"ibuprofen":   {System: SystemSNOMED, Code: "387207008", Display: "Ibuprofen"},
			"paracetamol": {System: SystemSNOMED, Code: "387517004", Display: "Paracetamol"},
		},
		medicationDefault: Code{System: SystemSNOMED, Code: "373873005", Display: "Pharmaceutical / biologic product"},

		medicationStatus: map[medication.Status]string{
			medication.StatusActive:    fhirmodels.MedRequestActive,
			medication.StatusCompleted: fhirmodels.MedRequestCompleted,
			medication.StatusStopped:   fhirmodels.MedRequestStopped,
			medication.StatusOnHold:    fhirmodels.MedRequestOnHold,
		},
		clinicalStatus: map[clinical.ConditionStatus]Code{
			clinical.ConditionActive:   {System: SystemConditionClinical, Code: fhirmodels.ConditionActive, Display: "Active"},
			clinical.ConditionResolved: {System: SystemConditionClinical, Code: fhirmodels.ConditionResolved, Display: "Resolved"},
			clinical.ConditionInactive: {System: SystemConditionClinical, Code: fhirmodels.ConditionInactive, Display: "Inactive"},
		},
		verification: Code{System: SystemConditionVerStatus, Code: fhirmodels.VerificationUnconfirmed, Display: "Unconfirmed"},
	}
}

func labelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func (t *Tables) clone() *Tables {
	c := *t
	c.observations = copyMap(t.observations)
	c.conditions = copyMap(t.conditions)
	c.medications = copyMap(t.medications)
	return &c
}

func copyMap(m map[string]Code) map[string]Code {
	out := make(map[string]Code, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithObservation returns a copy that maps label to code.
func (t *Tables) WithObservation(label string, code Code) *Tables {
	c := t.clone()
	c.observations[labelKey(label)] = code
	return c
}

func (t *Tables) WithCondition(label string, code Code) *Tables {
	c := t.clone()
	c.conditions[labelKey(label)] = code
	return c
}

func (t *Tables) WithMedication(label string, code Code) *Tables {
	c := t.clone()
	c.medications[labelKey(label)] = code
	return c
}

// WithCategoryRecovery returns a copy whose CategoryFromCode maps category
// codes back to domain categories instead of always returning General.
func (t *Tables) WithCategoryRecovery(enabled bool) *Tables {
	c := t.clone()
	c.recoverCategory = enabled
	return c
}

func (t *Tables) ObservationCode(label string) Code {
	if c, ok := t.observations[labelKey(label)]; ok {
		return c
	}
	return t.observationDefault
}

func (t *Tables) ObservationCategory(cat clinical.Category) Code {
	if c, ok := t.categories[cat]; ok {
		return c
	}
	return t.categoryDefault
}

// CategoryFromCode is the inverse of ObservationCategory. Without category
// recovery it always returns General.
func (t *Tables) CategoryFromCode(code string) clinical.Category {
	if !t.recoverCategory {
		return clinical.CategoryGeneral
	}
	switch code {
	case fhirmodels.ObsCategoryVitalSigns:
		return clinical.CategoryVital
	case fhirmodels.ObsCategoryActivity:
		return clinical.CategoryExercise
	default:
		return clinical.CategoryGeneral
	}
}

func (t *Tables) ConditionCode(name string) Code {
	if c, ok := t.conditions[labelKey(name)]; ok {
		return c
	}
	return t.conditionDefault
}

func (t *Tables) SeverityCode(s clinical.Severity) Code {
	if c, ok := t.severities[s]; ok {
		return c
	}
	return t.severities[clinical.SeverityMild]
}

// SeverityFromCode maps a SNOMED severity code back. Unknown codes are Mild.
func (t *Tables) SeverityFromCode(code string) clinical.Severity {
	for s, c := range t.severities {
		if c.Code == code {
			return s
		}
	}
	return clinical.SeverityMild
}

func (t *Tables) ClinicalStatus(s clinical.ConditionStatus) Code {
	if c, ok := t.clinicalStatus[s]; ok {
		return c
	}
	return t.clinicalStatus[clinical.ConditionActive]
}

func (t *Tables) VerificationStatus() Code {
	return t.verification
}

func (t *Tables) MedicationCode(name string) Code {
	if c, ok := t.medications[labelKey(name)]; ok {
		return c
	}
	return t.medicationDefault
}

// MedicationStatus returns the MedicationRequest status code, "unknown" for
// anything unmapped.
func (t *Tables) MedicationStatus(s medication.Status) string {
	if v, ok := t.medicationStatus[s]; ok {
		return v
	}
	return fhirmodels.MedRequestUnknown
}

// Lookup resolves label in the named table. Only an unknown table name
// fails; unknown labels get the table's default code.
func (t *Tables) Lookup(table, label string) (Code, error) {
	switch strings.ToLower(table) {
	case TableObservation:
		return t.ObservationCode(label), nil
	case TableCondition:
		return t.ConditionCode(label), nil
	case TableMedication:
		return t.MedicationCode(label), nil
	default:
		return Code{}, apperr.InvalidValue("table", table, tableNames)
	}
}

// Labels lists the labels of the named table in sorted order.
func (t *Tables) Labels(table string) ([]string, error) {
	var m map[string]Code
	switch strings.ToLower(table) {
	case TableObservation:
		m = t.observations
	case TableCondition:
		m = t.conditions
	case TableMedication:
		m = t.medications
	default:
		return nil, apperr.InvalidValue("table", table, tableNames)
	}
	labels := make([]string, 0, len(m))
	for k := range m {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels, nil
}

// Display finds the display text of a (system, code) pair in any table.
func (t *Tables) Display(system, code string) (string, bool) {
	match := func(c Code) bool { return c.System == system && c.Code == code }
	for _, m := range []map[string]Code{t.observations, t.conditions, t.medications} {
		for _, c := range m {
			if match(c) {
				return c.Display, true
			}
		}
	}
	for _, c := range t.severities {
		if match(c) {
			return c.Display, true
		}
	}
	for _, c := range []Code{t.observationDefault, t.conditionDefault, t.medicationDefault} {
		if match(c) {
			return c.Display, true
		}
	}
	return "", false
}
