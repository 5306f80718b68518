package fhir

// Kind is the closed set of resource kinds the exchange pipeline dispatches on.
type Kind int

const (
	KindOther Kind = iota
	KindPatient
	KindObservation
	KindCondition
	KindMedicationRequest
	KindBundle
)

var kindNames = map[Kind]string{
	KindOther:             "Other",
	KindPatient:           "Patient",
	KindObservation:       "Observation",
	KindCondition:         "Condition",
	KindMedicationRequest: "MedicationRequest",
	KindBundle:            "Bundle",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Other"
}

// KindOf maps a resourceType string to its Kind. Unknown types are KindOther.
func KindOf(resourceType string) Kind {
	switch resourceType {
	case "Patient":
		return KindPatient
	case "Observation":
		return KindObservation
	case "Condition":
		return KindCondition
	case "MedicationRequest":
		return KindMedicationRequest
	case "Bundle":
		return KindBundle
	default:
		return KindOther
	}
}

// FormatReference builds a relative literal reference such as "Patient/123".
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}
