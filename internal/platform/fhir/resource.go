package fhir

// Resource is implemented by every FHIR resource this service reads or writes.
type Resource interface {
	Kind() Kind
	TypeName() string
	ResourceID() string
}

type Meta struct {
	VersionID   string   `json:"versionId,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
	Source      string   `json:"source,omitempty"`
	Profile     []string `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// FirstCode returns the code of the first coding, or "".
func (cc *CodeableConcept) FirstCode() string {
	if cc == nil || len(cc.Coding) == 0 {
		return ""
	}
	return cc.Coding[0].Code
}

// Label returns the text, falling back to the first coding display.
func (cc *CodeableConcept) Label() string {
	if cc == nil {
		return ""
	}
	if cc.Text != "" {
		return cc.Text
	}
	if len(cc.Coding) > 0 {
		return cc.Coding[0].Display
	}
	return ""
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

// Period bounds are FHIR dateTime strings.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

type Annotation struct {
	AuthorString string `json:"authorString,omitempty"`
	Time         string `json:"time,omitempty"`
	Text         string `json:"text"`
}

// -- Patient --

type PatientContact struct {
	Relationship []CodeableConcept `json:"relationship,omitempty"`
	Name         *HumanName        `json:"name,omitempty"`
	Telecom      []ContactPoint    `json:"telecom,omitempty"`
}

type Patient struct {
	ResourceType string           `json:"resourceType"`
	ID           string           `json:"id,omitempty"`
	Meta         *Meta            `json:"meta,omitempty"`
	Identifier   []Identifier     `json:"identifier,omitempty"`
	Active       *bool            `json:"active,omitempty"`
	Name         []HumanName      `json:"name,omitempty"`
	Telecom      []ContactPoint   `json:"telecom,omitempty"`
	Gender       string           `json:"gender,omitempty" validate:"omitempty,oneof=male female other unknown"`
	BirthDate    string           `json:"birthDate,omitempty"`
	Contact      []PatientContact `json:"contact,omitempty"`
}

func (p *Patient) Kind() Kind         { return KindPatient }
func (p *Patient) TypeName() string   { return "Patient" }
func (p *Patient) ResourceID() string { return p.ID }

// -- Observation --

type ObservationComponent struct {
	Code          CodeableConcept `json:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
	ValueString   *string         `json:"valueString,omitempty"`
}

type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id,omitempty"`
	Meta              *Meta                  `json:"meta,omitempty"`
	Status            string                 `json:"status" validate:"required,oneof=registered preliminary final amended corrected cancelled entered-in-error unknown"`
	Category          []CodeableConcept      `json:"category,omitempty"`
	Code              CodeableConcept        `json:"code"`
	Subject           *Reference             `json:"subject,omitempty"`
	EffectiveDateTime string                 `json:"effectiveDateTime,omitempty"`
	Performer         []Reference            `json:"performer,omitempty"`
	ValueQuantity     *Quantity              `json:"valueQuantity,omitempty"`
	ValueString       *string                `json:"valueString,omitempty"`
	ValueBoolean      *bool                  `json:"valueBoolean,omitempty"`
	Note              []Annotation           `json:"note,omitempty"`
	Component         []ObservationComponent `json:"component,omitempty"`
}

func (o *Observation) Kind() Kind         { return KindObservation }
func (o *Observation) TypeName() string   { return "Observation" }
func (o *Observation) ResourceID() string { return o.ID }

// -- Condition --

type Condition struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id,omitempty"`
	Meta               *Meta            `json:"meta,omitempty"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Severity           *CodeableConcept `json:"severity,omitempty"`
	Code               *CodeableConcept `json:"code,omitempty" validate:"required"`
	Subject            Reference        `json:"subject"`
	OnsetDateTime      string           `json:"onsetDateTime,omitempty"`
	AbatementDateTime  string           `json:"abatementDateTime,omitempty"`
	RecordedDate       string           `json:"recordedDate,omitempty"`
	Recorder           *Reference       `json:"recorder,omitempty"`
	Note               []Annotation     `json:"note,omitempty"`
}

func (c *Condition) Kind() Kind         { return KindCondition }
func (c *Condition) TypeName() string   { return "Condition" }
func (c *Condition) ResourceID() string { return c.ID }

// -- MedicationRequest --

type Dosage struct {
	Text string `json:"text,omitempty"`
}

type DispenseRequest struct {
	ValidityPeriod *Period `json:"validityPeriod,omitempty"`
}

type MedicationRequest struct {
	ResourceType              string            `json:"resourceType"`
	ID                        string            `json:"id,omitempty"`
	Meta                      *Meta             `json:"meta,omitempty"`
	Status                    string            `json:"status" validate:"required,oneof=active on-hold cancelled completed entered-in-error stopped draft unknown"`
	Intent                    string            `json:"intent" validate:"required"`
	MedicationCodeableConcept *CodeableConcept  `json:"medicationCodeableConcept,omitempty"`
	MedicationReference       *Reference        `json:"medicationReference,omitempty"`
	Subject                   Reference         `json:"subject"`
	AuthoredOn                string            `json:"authoredOn,omitempty"`
	Requester                 *Reference        `json:"requester,omitempty"`
	Recorder                  *Reference        `json:"recorder,omitempty"`
	ReasonCode                []CodeableConcept `json:"reasonCode,omitempty"`
	Note                      []Annotation      `json:"note,omitempty"`
	DosageInstruction         []Dosage          `json:"dosageInstruction,omitempty"`
	DispenseRequest           *DispenseRequest  `json:"dispenseRequest,omitempty"`
}

func (m *MedicationRequest) Kind() Kind         { return KindMedicationRequest }
func (m *MedicationRequest) TypeName() string   { return "MedicationRequest" }
func (m *MedicationRequest) ResourceID() string { return m.ID }

// OtherResource holds any resource type this service does not model. Raw keeps
// the canonical JSON form so it can be stored verbatim. Err is set when the
// type is a modeled one but its body could not be decoded.
type OtherResource struct {
	ResourceType string
	ID           string
	Raw          []byte
	Err          error
}

func (o *OtherResource) Kind() Kind         { return KindOther }
func (o *OtherResource) TypeName() string   { return o.ResourceType }
func (o *OtherResource) ResourceID() string { return o.ID }
