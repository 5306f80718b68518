package fhir

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// FHIR XML puts every primitive in a value attribute: <gender value="male"/>.
// The x* types mirror the JSON model in that shape; element order follows the
// R4 structure definitions.

const xmlnsFHIR = "http://hl7.org/fhir"

type xValue struct {
	Value string `xml:"value,attr"`
}

func attr(s string) *xValue {
	if s == "" {
		return nil
	}
	return &xValue{Value: s}
}

func (v *xValue) str() string {
	if v == nil {
		return ""
	}
	return v.Value
}

func attrs(ss []string) []xValue {
	out := make([]xValue, 0, len(ss))
	for _, s := range ss {
		out = append(out, xValue{Value: s})
	}
	return out
}

func strs(vs []xValue) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Value)
	}
	return out
}

func boolAttr(b *bool) *xValue {
	if b == nil {
		return nil
	}
	return &xValue{Value: strconv.FormatBool(*b)}
}

func parseBoolAttr(v *xValue, field string) (*bool, error) {
	if v == nil {
		return nil, nil
	}
	b, err := strconv.ParseBool(v.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid boolean %q", field, v.Value)
	}
	return &b, nil
}

type xMeta struct {
	VersionID   *xValue  `xml:"versionId"`
	LastUpdated *xValue  `xml:"lastUpdated"`
	Source      *xValue  `xml:"source"`
	Profile     []xValue `xml:"profile"`
}

func toXMeta(m *Meta) *xMeta {
	if m == nil {
		return nil
	}
	return &xMeta{
		VersionID:   attr(m.VersionID),
		LastUpdated: attr(m.LastUpdated),
		Source:      attr(m.Source),
		Profile:     attrs(m.Profile),
	}
}

func (x *xMeta) model() *Meta {
	if x == nil {
		return nil
	}
	return &Meta{
		VersionID:   x.VersionID.str(),
		LastUpdated: x.LastUpdated.str(),
		Source:      x.Source.str(),
		Profile:     strs(x.Profile),
	}
}

type xCoding struct {
	System  *xValue `xml:"system"`
	Code    *xValue `xml:"code"`
	Display *xValue `xml:"display"`
}

type xCodeableConcept struct {
	Coding []xCoding `xml:"coding"`
	Text   *xValue   `xml:"text"`
}

func toXCC(cc *CodeableConcept) *xCodeableConcept {
	if cc == nil {
		return nil
	}
	x := &xCodeableConcept{Text: attr(cc.Text)}
	for _, c := range cc.Coding {
		x.Coding = append(x.Coding, xCoding{System: attr(c.System), Code: attr(c.Code), Display: attr(c.Display)})
	}
	return x
}

func toXCCs(ccs []CodeableConcept) []xCodeableConcept {
	out := make([]xCodeableConcept, 0, len(ccs))
	for i := range ccs {
		out = append(out, *toXCC(&ccs[i]))
	}
	return out
}

func (x *xCodeableConcept) model() *CodeableConcept {
	if x == nil {
		return nil
	}
	cc := &CodeableConcept{Text: x.Text.str()}
	for _, c := range x.Coding {
		cc.Coding = append(cc.Coding, Coding{System: c.System.str(), Code: c.Code.str(), Display: c.Display.str()})
	}
	return cc
}

func ccsModel(xs []xCodeableConcept) []CodeableConcept {
	if len(xs) == 0 {
		return nil
	}
	out := make([]CodeableConcept, 0, len(xs))
	for i := range xs {
		out = append(out, *xs[i].model())
	}
	return out
}

type xReference struct {
	Reference *xValue `xml:"reference"`
	Type      *xValue `xml:"type"`
	Display   *xValue `xml:"display"`
}

func toXRef(r *Reference) *xReference {
	if r == nil {
		return nil
	}
	return &xReference{Reference: attr(r.Reference), Type: attr(r.Type), Display: attr(r.Display)}
}

func (x *xReference) model() *Reference {
	if x == nil {
		return nil
	}
	return &Reference{Reference: x.Reference.str(), Type: x.Type.str(), Display: x.Display.str()}
}

func refsModel(xs []xReference) []Reference {
	if len(xs) == 0 {
		return nil
	}
	out := make([]Reference, 0, len(xs))
	for i := range xs {
		out = append(out, *xs[i].model())
	}
	return out
}

type xIdentifier struct {
	Use    *xValue `xml:"use"`
	System *xValue `xml:"system"`
	Value  *xValue `xml:"value"`
}

type xHumanName struct {
	Use    *xValue  `xml:"use"`
	Text   *xValue  `xml:"text"`
	Family *xValue  `xml:"family"`
	Given  []xValue `xml:"given"`
}

func toXName(n *HumanName) *xHumanName {
	if n == nil {
		return nil
	}
	return &xHumanName{Use: attr(n.Use), Text: attr(n.Text), Family: attr(n.Family), Given: attrs(n.Given)}
}

func (x *xHumanName) model() *HumanName {
	if x == nil {
		return nil
	}
	return &HumanName{Use: x.Use.str(), Text: x.Text.str(), Family: x.Family.str(), Given: strs(x.Given)}
}

type xContactPoint struct {
	System *xValue `xml:"system"`
	Value  *xValue `xml:"value"`
	Use    *xValue `xml:"use"`
}

func toXTelecom(cps []ContactPoint) []xContactPoint {
	out := make([]xContactPoint, 0, len(cps))
	for _, cp := range cps {
		out = append(out, xContactPoint{System: attr(cp.System), Value: attr(cp.Value), Use: attr(cp.Use)})
	}
	return out
}

func telecomModel(xs []xContactPoint) []ContactPoint {
	if len(xs) == 0 {
		return nil
	}
	out := make([]ContactPoint, 0, len(xs))
	for _, x := range xs {
		out = append(out, ContactPoint{System: x.System.str(), Value: x.Value.str(), Use: x.Use.str()})
	}
	return out
}

type xPeriod struct {
	Start *xValue `xml:"start"`
	End   *xValue `xml:"end"`
}

type xQuantity struct {
	Value  *xValue `xml:"value"`
	Unit   *xValue `xml:"unit"`
	System *xValue `xml:"system"`
	Code   *xValue `xml:"code"`
}

func toXQuantity(q *Quantity) *xQuantity {
	if q == nil {
		return nil
	}
	x := &xQuantity{Unit: attr(q.Unit), System: attr(q.System), Code: attr(q.Code)}
	if q.Value != nil {
		x.Value = attr(strconv.FormatFloat(*q.Value, 'f', -1, 64))
	}
	return x
}

func (x *xQuantity) model() (*Quantity, error) {
	if x == nil {
		return nil, nil
	}
	q := &Quantity{Unit: x.Unit.str(), System: x.System.str(), Code: x.Code.str()}
	if x.Value != nil {
		v, err := strconv.ParseFloat(x.Value.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("quantity: invalid decimal %q", x.Value.Value)
		}
		q.Value = &v
	}
	return q, nil
}

type xAnnotation struct {
	AuthorString *xValue `xml:"authorString"`
	Time         *xValue `xml:"time"`
	Text         *xValue `xml:"text"`
}

func toXNotes(ns []Annotation) []xAnnotation {
	out := make([]xAnnotation, 0, len(ns))
	for _, n := range ns {
		out = append(out, xAnnotation{AuthorString: attr(n.AuthorString), Time: attr(n.Time), Text: &xValue{Value: n.Text}})
	}
	return out
}

func notesModel(xs []xAnnotation) []Annotation {
	if len(xs) == 0 {
		return nil
	}
	out := make([]Annotation, 0, len(xs))
	for _, x := range xs {
		out = append(out, Annotation{AuthorString: x.AuthorString.str(), Time: x.Time.str(), Text: x.Text.str()})
	}
	return out
}

// -- Patient --

type xPatientContact struct {
	Relationship []xCodeableConcept `xml:"relationship"`
	Name         *xHumanName        `xml:"name"`
	Telecom      []xContactPoint    `xml:"telecom"`
}

type xPatient struct {
	XMLName    xml.Name          `xml:"Patient"`
	Xmlns      string            `xml:"xmlns,attr,omitempty"`
	ID         *xValue           `xml:"id"`
	Meta       *xMeta            `xml:"meta"`
	Identifier []xIdentifier     `xml:"identifier"`
	Active     *xValue           `xml:"active"`
	Name       []xHumanName      `xml:"name"`
	Telecom    []xContactPoint   `xml:"telecom"`
	Gender     *xValue           `xml:"gender"`
	BirthDate  *xValue           `xml:"birthDate"`
	Contact    []xPatientContact `xml:"contact"`
}

func toXPatient(p *Patient) *xPatient {
	x := &xPatient{
		Xmlns:     xmlnsFHIR,
		ID:        attr(p.ID),
		Meta:      toXMeta(p.Meta),
		Active:    boolAttr(p.Active),
		Telecom:   toXTelecom(p.Telecom),
		Gender:    attr(p.Gender),
		BirthDate: attr(p.BirthDate),
	}
	for _, id := range p.Identifier {
		x.Identifier = append(x.Identifier, xIdentifier{Use: attr(id.Use), System: attr(id.System), Value: attr(id.Value)})
	}
	for i := range p.Name {
		x.Name = append(x.Name, *toXName(&p.Name[i]))
	}
	for _, c := range p.Contact {
		x.Contact = append(x.Contact, xPatientContact{
			Relationship: toXCCs(c.Relationship),
			Name:         toXName(c.Name),
			Telecom:      toXTelecom(c.Telecom),
		})
	}
	return x
}

func (x *xPatient) model() (*Patient, error) {
	active, err := parseBoolAttr(x.Active, "active")
	if err != nil {
		return nil, err
	}
	p := &Patient{
		ResourceType: "Patient",
		ID:           x.ID.str(),
		Meta:         x.Meta.model(),
		Active:       active,
		Telecom:      telecomModel(x.Telecom),
		Gender:       x.Gender.str(),
		BirthDate:    x.BirthDate.str(),
	}
	for _, id := range x.Identifier {
		p.Identifier = append(p.Identifier, Identifier{Use: id.Use.str(), System: id.System.str(), Value: id.Value.str()})
	}
	for i := range x.Name {
		p.Name = append(p.Name, *x.Name[i].model())
	}
	for _, c := range x.Contact {
		p.Contact = append(p.Contact, PatientContact{
			Relationship: ccsModel(c.Relationship),
			Name:         c.Name.model(),
			Telecom:      telecomModel(c.Telecom),
		})
	}
	return p, nil
}

// -- Observation --

type xObservationComponent struct {
	Code          xCodeableConcept `xml:"code"`
	ValueQuantity *xQuantity       `xml:"valueQuantity"`
	ValueString   *xValue          `xml:"valueString"`
}

type xObservation struct {
	XMLName           xml.Name                `xml:"Observation"`
	Xmlns             string                  `xml:"xmlns,attr,omitempty"`
	ID                *xValue                 `xml:"id"`
	Meta              *xMeta                  `xml:"meta"`
	Status            *xValue                 `xml:"status"`
	Category          []xCodeableConcept      `xml:"category"`
	Code              *xCodeableConcept       `xml:"code"`
	Subject           *xReference             `xml:"subject"`
	EffectiveDateTime *xValue                 `xml:"effectiveDateTime"`
	Performer         []xReference            `xml:"performer"`
	ValueQuantity     *xQuantity              `xml:"valueQuantity"`
	ValueString       *xValue                 `xml:"valueString"`
	ValueBoolean      *xValue                 `xml:"valueBoolean"`
	Note              []xAnnotation           `xml:"note"`
	Component         []xObservationComponent `xml:"component"`
}

func toXObservation(o *Observation) *xObservation {
	x := &xObservation{
		Xmlns:             xmlnsFHIR,
		ID:                attr(o.ID),
		Meta:              toXMeta(o.Meta),
		Status:            attr(o.Status),
		Category:          toXCCs(o.Category),
		Code:              toXCC(&o.Code),
		Subject:           toXRef(o.Subject),
		EffectiveDateTime: attr(o.EffectiveDateTime),
		ValueQuantity:     toXQuantity(o.ValueQuantity),
		ValueBoolean:      boolAttr(o.ValueBoolean),
		Note:              toXNotes(o.Note),
	}
	if o.ValueString != nil {
		x.ValueString = &xValue{Value: *o.ValueString}
	}
	for i := range o.Performer {
		x.Performer = append(x.Performer, *toXRef(&o.Performer[i]))
	}
	for i := range o.Component {
		c := o.Component[i]
		xc := xObservationComponent{Code: *toXCC(&c.Code), ValueQuantity: toXQuantity(c.ValueQuantity)}
		if c.ValueString != nil {
			xc.ValueString = &xValue{Value: *c.ValueString}
		}
		x.Component = append(x.Component, xc)
	}
	return x
}

func (x *xObservation) model() (*Observation, error) {
	o := &Observation{
		ResourceType:      "Observation",
		ID:                x.ID.str(),
		Meta:              x.Meta.model(),
		Status:            x.Status.str(),
		Category:          ccsModel(x.Category),
		Subject:           x.Subject.model(),
		EffectiveDateTime: x.EffectiveDateTime.str(),
		Performer:         refsModel(x.Performer),
		Note:              notesModel(x.Note),
	}
	if code := x.Code.model(); code != nil {
		o.Code = *code
	}
	var err error
	if o.ValueQuantity, err = x.ValueQuantity.model(); err != nil {
		return nil, err
	}
	if x.ValueString != nil {
		s := x.ValueString.Value
		o.ValueString = &s
	}
	if o.ValueBoolean, err = parseBoolAttr(x.ValueBoolean, "valueBoolean"); err != nil {
		return nil, err
	}
	for _, xc := range x.Component {
		c := ObservationComponent{Code: *xc.Code.model()}
		if c.ValueQuantity, err = xc.ValueQuantity.model(); err != nil {
			return nil, err
		}
		if xc.ValueString != nil {
			s := xc.ValueString.Value
			c.ValueString = &s
		}
		o.Component = append(o.Component, c)
	}
	return o, nil
}

// -- Condition --

type xCondition struct {
	XMLName            xml.Name          `xml:"Condition"`
	Xmlns              string            `xml:"xmlns,attr,omitempty"`
	ID                 *xValue           `xml:"id"`
	Meta               *xMeta            `xml:"meta"`
	ClinicalStatus     *xCodeableConcept `xml:"clinicalStatus"`
	VerificationStatus *xCodeableConcept `xml:"verificationStatus"`
	Severity           *xCodeableConcept `xml:"severity"`
	Code               *xCodeableConcept `xml:"code"`
	Subject            *xReference       `xml:"subject"`
	OnsetDateTime      *xValue           `xml:"onsetDateTime"`
	AbatementDateTime  *xValue           `xml:"abatementDateTime"`
	RecordedDate       *xValue           `xml:"recordedDate"`
	Recorder           *xReference       `xml:"recorder"`
	Note               []xAnnotation     `xml:"note"`
}

func toXCondition(c *Condition) *xCondition {
	return &xCondition{
		Xmlns:              xmlnsFHIR,
		ID:                 attr(c.ID),
		Meta:               toXMeta(c.Meta),
		ClinicalStatus:     toXCC(c.ClinicalStatus),
		VerificationStatus: toXCC(c.VerificationStatus),
		Severity:           toXCC(c.Severity),
		Code:               toXCC(c.Code),
		Subject:            toXRef(&c.Subject),
		OnsetDateTime:      attr(c.OnsetDateTime),
		AbatementDateTime:  attr(c.AbatementDateTime),
		RecordedDate:       attr(c.RecordedDate),
		Recorder:           toXRef(c.Recorder),
		Note:               toXNotes(c.Note),
	}
}

func (x *xCondition) model() *Condition {
	c := &Condition{
		ResourceType:       "Condition",
		ID:                 x.ID.str(),
		Meta:               x.Meta.model(),
		ClinicalStatus:     x.ClinicalStatus.model(),
		VerificationStatus: x.VerificationStatus.model(),
		Severity:           x.Severity.model(),
		Code:               x.Code.model(),
		OnsetDateTime:      x.OnsetDateTime.str(),
		AbatementDateTime:  x.AbatementDateTime.str(),
		RecordedDate:       x.RecordedDate.str(),
		Recorder:           x.Recorder.model(),
		Note:               notesModel(x.Note),
	}
	if s := x.Subject.model(); s != nil {
		c.Subject = *s
	}
	return c
}

// -- MedicationRequest --

type xDispenseRequest struct {
	ValidityPeriod *xPeriod `xml:"validityPeriod"`
}

type xDosage struct {
	Text *xValue `xml:"text"`
}

type xMedicationRequest struct {
	XMLName                   xml.Name           `xml:"MedicationRequest"`
	Xmlns                     string             `xml:"xmlns,attr,omitempty"`
	ID                        *xValue            `xml:"id"`
	Meta                      *xMeta             `xml:"meta"`
	Status                    *xValue            `xml:"status"`
	Intent                    *xValue            `xml:"intent"`
	MedicationCodeableConcept *xCodeableConcept  `xml:"medicationCodeableConcept"`
	MedicationReference       *xReference        `xml:"medicationReference"`
	Subject                   *xReference        `xml:"subject"`
	AuthoredOn                *xValue            `xml:"authoredOn"`
	Requester                 *xReference        `xml:"requester"`
	Recorder                  *xReference        `xml:"recorder"`
	ReasonCode                []xCodeableConcept `xml:"reasonCode"`
	Note                      []xAnnotation      `xml:"note"`
	DosageInstruction         []xDosage          `xml:"dosageInstruction"`
	DispenseRequest           *xDispenseRequest  `xml:"dispenseRequest"`
}

func toXMedicationRequest(m *MedicationRequest) *xMedicationRequest {
	x := &xMedicationRequest{
		Xmlns:                     xmlnsFHIR,
		ID:                        attr(m.ID),
		Meta:                      toXMeta(m.Meta),
		Status:                    attr(m.Status),
		Intent:                    attr(m.Intent),
		MedicationCodeableConcept: toXCC(m.MedicationCodeableConcept),
		MedicationReference:       toXRef(m.MedicationReference),
		Subject:                   toXRef(&m.Subject),
		AuthoredOn:                attr(m.AuthoredOn),
		Requester:                 toXRef(m.Requester),
		Recorder:                  toXRef(m.Recorder),
		ReasonCode:                toXCCs(m.ReasonCode),
		Note:                      toXNotes(m.Note),
	}
	for _, d := range m.DosageInstruction {
		x.DosageInstruction = append(x.DosageInstruction, xDosage{Text: attr(d.Text)})
	}
	if m.DispenseRequest != nil {
		x.DispenseRequest = &xDispenseRequest{}
		if vp := m.DispenseRequest.ValidityPeriod; vp != nil {
			x.DispenseRequest.ValidityPeriod = &xPeriod{Start: attr(vp.Start), End: attr(vp.End)}
		}
	}
	return x
}

func (x *xMedicationRequest) model() *MedicationRequest {
	m := &MedicationRequest{
		ResourceType:              "MedicationRequest",
		ID:                        x.ID.str(),
		Meta:                      x.Meta.model(),
		Status:                    x.Status.str(),
		Intent:                    x.Intent.str(),
		MedicationCodeableConcept: x.MedicationCodeableConcept.model(),
		MedicationReference:       x.MedicationReference.model(),
		AuthoredOn:                x.AuthoredOn.str(),
		Requester:                 x.Requester.model(),
		Recorder:                  x.Recorder.model(),
		ReasonCode:                ccsModel(x.ReasonCode),
		Note:                      notesModel(x.Note),
	}
	if s := x.Subject.model(); s != nil {
		m.Subject = *s
	}
	for _, d := range x.DosageInstruction {
		m.DosageInstruction = append(m.DosageInstruction, Dosage{Text: d.Text.str()})
	}
	if x.DispenseRequest != nil {
		m.DispenseRequest = &DispenseRequest{}
		if vp := x.DispenseRequest.ValidityPeriod; vp != nil {
			m.DispenseRequest.ValidityPeriod = &Period{Start: vp.Start.str(), End: vp.End.str()}
		}
	}
	return m
}

// -- Bundle --

// xOther captures any resource element that is not modeled.
type xOther struct {
	XMLName xml.Name
	Xmlns   string  `xml:"xmlns,attr,omitempty"`
	ID      *xValue `xml:"id"`
}

type xEntryResource struct {
	Patient           *xPatient           `xml:"Patient"`
	Observation       *xObservation       `xml:"Observation"`
	Condition         *xCondition         `xml:"Condition"`
	MedicationRequest *xMedicationRequest `xml:"MedicationRequest"`
	Other             *xOther             `xml:",any"`
	Inner             []byte              `xml:",innerxml"`
}

type xBundleEntry struct {
	FullURL  *xValue         `xml:"fullUrl"`
	Resource *xEntryResource `xml:"resource"`
}

type xBundle struct {
	XMLName   xml.Name       `xml:"Bundle"`
	Xmlns     string         `xml:"xmlns,attr,omitempty"`
	ID        *xValue        `xml:"id"`
	Meta      *xMeta         `xml:"meta"`
	Type      *xValue        `xml:"type"`
	Timestamp *xValue        `xml:"timestamp"`
	Total     *xValue        `xml:"total"`
	Entry     []xBundleEntry `xml:"entry"`
}
