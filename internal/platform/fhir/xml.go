package fhir

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
)

// MarshalXML encodes the resource in FHIR XML. Unmodeled resources are
// written with their type and id only.
func MarshalXML(r Resource, indent bool) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil resource")
	}
	x, err := toXML(r)
	if err != nil {
		return nil, err
	}
	var out []byte
	if indent {
		out, err = xml.MarshalIndent(x, "", "  ")
	} else {
		out, err = xml.Marshal(x)
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func toXML(r Resource) (interface{}, error) {
	switch v := r.(type) {
	case *Patient:
		return toXPatient(v), nil
	case *Observation:
		return toXObservation(v), nil
	case *Condition:
		return toXCondition(v), nil
	case *MedicationRequest:
		return toXMedicationRequest(v), nil
	case *Bundle:
		return toXBundle(v)
	case *OtherResource:
		return &xOther{XMLName: xml.Name{Local: v.ResourceType}, Xmlns: xmlnsFHIR, ID: attr(v.ID)}, nil
	default:
		return nil, fmt.Errorf("unsupported resource %T", r)
	}
}

func toXBundle(b *Bundle) (*xBundle, error) {
	x := &xBundle{
		Xmlns:     xmlnsFHIR,
		ID:        attr(b.ID),
		Meta:      toXMeta(b.Meta),
		Type:      attr(b.Type),
		Timestamp: attr(b.Timestamp),
	}
	if b.Total != nil {
		x.Total = attr(strconv.Itoa(*b.Total))
	}
	for _, e := range b.Entry {
		xe := xBundleEntry{FullURL: attr(e.FullURL)}
		if e.Resource != nil {
			res := &xEntryResource{}
			switch v := e.Resource.(type) {
			case *Patient:
				res.Patient = toXPatient(v)
			case *Observation:
				res.Observation = toXObservation(v)
			case *Condition:
				res.Condition = toXCondition(v)
			case *MedicationRequest:
				res.MedicationRequest = toXMedicationRequest(v)
			case *OtherResource:
				res.Other = &xOther{XMLName: xml.Name{Local: v.ResourceType}, Xmlns: xmlnsFHIR, ID: attr(v.ID)}
			default:
				return nil, fmt.Errorf("bundle entry: unsupported resource %T", e.Resource)
			}
			xe.Resource = res
		}
		x.Entry = append(x.Entry, xe)
	}
	return x, nil
}

// UnmarshalXML decodes a FHIR XML document, dispatching on the root element.
func UnmarshalXML(data []byte) (Resource, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, errors.New("no root element")
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return decodeXMLRoot(dec, t)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, errors.New("unexpected text before root element")
			}
		}
	}
}

func decodeXMLRoot(dec *xml.Decoder, start xml.StartElement) (Resource, error) {
	name := start.Name.Local
	switch KindOf(name) {
	case KindPatient:
		var x xPatient
		if err := dec.DecodeElement(&x, &start); err != nil {
			return nil, err
		}
		return x.model()
	case KindObservation:
		var x xObservation
		if err := dec.DecodeElement(&x, &start); err != nil {
			return nil, err
		}
		return x.model()
	case KindCondition:
		var x xCondition
		if err := dec.DecodeElement(&x, &start); err != nil {
			return nil, err
		}
		return x.model(), nil
	case KindMedicationRequest:
		var x xMedicationRequest
		if err := dec.DecodeElement(&x, &start); err != nil {
			return nil, err
		}
		return x.model(), nil
	case KindBundle:
		var x xBundle
		if err := dec.DecodeElement(&x, &start); err != nil {
			return nil, err
		}
		return x.model()
	default:
		var x xOther
		if err := dec.DecodeElement(&x, &start); err != nil {
			return nil, err
		}
		return otherFromXML(name, x.ID.str()), nil
	}
}

// model converts the bundle; a malformed entry becomes an OtherResource with
// Err set instead of failing the whole document.
func (x *xBundle) model() (*Bundle, error) {
	b := &Bundle{
		ResourceType: "Bundle",
		ID:           x.ID.str(),
		Meta:         x.Meta.model(),
		Type:         x.Type.str(),
		Timestamp:    x.Timestamp.str(),
	}
	if x.Total != nil {
		n, err := strconv.Atoi(x.Total.Value)
		if err != nil {
			return nil, fmt.Errorf("total: invalid integer %q", x.Total.Value)
		}
		b.Total = &n
	}
	for _, xe := range x.Entry {
		e := BundleEntry{FullURL: xe.FullURL.str()}
		if xe.Resource != nil {
			e.Resource = xe.Resource.model()
			if e.Resource != nil {
				e.Source = append([]byte(nil), bytes.TrimSpace(xe.Resource.Inner)...)
			}
		}
		b.Entry = append(b.Entry, e)
	}
	return b, nil
}

func (x *xEntryResource) model() Resource {
	switch {
	case x.Patient != nil:
		p, err := x.Patient.model()
		if err != nil {
			return &OtherResource{ResourceType: "Patient", ID: x.Patient.ID.str(), Raw: minimalJSON("Patient", x.Patient.ID.str()), Err: err}
		}
		return p
	case x.Observation != nil:
		o, err := x.Observation.model()
		if err != nil {
			return &OtherResource{ResourceType: "Observation", ID: x.Observation.ID.str(), Raw: minimalJSON("Observation", x.Observation.ID.str()), Err: err}
		}
		return o
	case x.Condition != nil:
		return x.Condition.model()
	case x.MedicationRequest != nil:
		return x.MedicationRequest.model()
	case x.Other != nil:
		return otherFromXML(x.Other.XMLName.Local, x.Other.ID.str())
	default:
		return nil
	}
}

func otherFromXML(resourceType, id string) *OtherResource {
	return &OtherResource{ResourceType: resourceType, ID: id, Raw: minimalJSON(resourceType, id)}
}

func minimalJSON(resourceType, id string) []byte {
	m := map[string]string{"resourceType": resourceType}
	if id != "" {
		m["id"] = id
	}
	raw, _ := json.Marshal(m)
	return raw
}
