package fhirmodels

// Common FHIR value set constants used across the application.

// ObservationStatus values per FHIR R4.
const (
	ObservationStatusPreliminary = "preliminary"
	ObservationStatusFinal       = "final"
	ObservationStatusAmended     = "amended"
)

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns = "vital-signs"
	ObsCategoryExam       = "exam"
	ObsCategoryActivity   = "activity"
)

// ConditionClinicalStatus codes.
const (
	ConditionActive   = "active"
	ConditionInactive = "inactive"
	ConditionResolved = "resolved"
)

// ConditionVerificationStatus codes.
const (
	VerificationUnconfirmed = "unconfirmed"
	VerificationConfirmed   = "confirmed"
)

// MedicationRequestStatus codes.
const (
	MedRequestActive    = "active"
	MedRequestOnHold    = "on-hold"
	MedRequestCompleted = "completed"
	MedRequestStopped   = "stopped"
	MedRequestUnknown   = "unknown"
)

// MedicationRequestIntent codes.
const (
	MedRequestIntentOrder = "order"
	MedRequestIntentPlan  = "plan"
)

// AdministrativeGender codes.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// ContactPoint system and use codes.
const (
	ContactSystemPhone = "phone"
	ContactSystemEmail = "email"
	ContactUseHome     = "home"
	ContactUseMobile   = "mobile"
)

// NameUse codes.
const (
	NameUseOfficial = "official"
)

// ContactRole codes from v2-0131.
const (
	ContactRoleEmergency        = "EP"
	ContactRoleEmergencyDisplay = "Emergency contact person"
)

// Component codes for the blood pressure panel.
const (
	LOINCSystolicBP  = "8480-6"
	LOINCDiastolicBP = "8462-4"
)
