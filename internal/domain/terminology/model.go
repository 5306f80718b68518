package terminology

import "github.com/familyhealth/healthrecord/internal/platform/fhir"

// Code is one (system, code, display) triple from a fixed table.
type Code struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Coding converts the triple to its FHIR form.
func (c Code) Coding() fhir.Coding {
	return fhir.Coding{System: c.System, Code: c.Code, Display: c.Display}
}

// Concept wraps the code in a CodeableConcept, keeping text as free text.
func (c Code) Concept(text string) *fhir.CodeableConcept {
	return &fhir.CodeableConcept{Coding: []fhir.Coding{c.Coding()}, Text: text}
}

// LookupResponse is a FHIR Parameters resource answering CodeSystem $lookup.
type LookupResponse struct {
	ResourceType string            `json:"resourceType"`
	Parameter    []LookupParameter `json:"parameter"`
}

// LookupParameter is a name/value pair in a FHIR Parameters resource.
type LookupParameter struct {
	Name        string `json:"name"`
	ValueString string `json:"valueString,omitempty"`
	ValueCode   string `json:"valueCode,omitempty"`
}

// CodeSystemURI constants for the systems the tables draw from.
const (
	SystemLOINC               = "http://loinc.org"
	SystemSNOMED              = "http://snomed.info/sct"
	SystemUCUM                = "http://unitsofmeasure.org"
	SystemObservationCategory = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemConditionClinical   = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionVerStatus  = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	SystemContactRelationship = "http://terminology.hl7.org/CodeSystem/v2-0131"
)
