package fhir

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// MarshalJSON encodes the resource in FHIR JSON.
func MarshalJSON(r Resource, indent bool) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil resource")
	}
	if indent {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}

// MarshalJSON writes the retained raw document.
func (o *OtherResource) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	return json.Marshal(map[string]string{"resourceType": o.ResourceType, "id": o.ID})
}

type resourceHead struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// UnmarshalJSON decodes a FHIR JSON document, dispatching on resourceType.
func UnmarshalJSON(data []byte) (Resource, error) {
	var head resourceHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if head.ResourceType == "" {
		return nil, errors.New("missing resourceType")
	}
	return decodeJSONResource(head, data)
}

func decodeJSONResource(head resourceHead, data []byte) (Resource, error) {
	var (
		r   Resource
		err error
	)
	switch KindOf(head.ResourceType) {
	case KindPatient:
		var p Patient
		err = json.Unmarshal(data, &p)
		r = &p
	case KindObservation:
		var o Observation
		err = json.Unmarshal(data, &o)
		r = &o
	case KindCondition:
		var c Condition
		err = json.Unmarshal(data, &c)
		r = &c
	case KindMedicationRequest:
		var m MedicationRequest
		err = json.Unmarshal(data, &m)
		r = &m
	case KindBundle:
		r, err = decodeJSONBundle(data)
	default:
		r = &OtherResource{ResourceType: head.ResourceType, ID: head.ID, Raw: compactJSON(data)}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.ResourceType, err)
	}
	return r, nil
}

type jsonBundle struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Meta         *Meta  `json:"meta"`
	Type         string `json:"type"`
	Timestamp    string `json:"timestamp"`
	Total        *int   `json:"total"`
	Entry        []struct {
		FullURL  string          `json:"fullUrl"`
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// decodeJSONBundle keeps going when a single entry is malformed: that entry
// becomes an OtherResource carrying the decode error.
func decodeJSONBundle(data []byte) (*Bundle, error) {
	var jb jsonBundle
	if err := json.Unmarshal(data, &jb); err != nil {
		return nil, err
	}
	b := &Bundle{
		ResourceType: "Bundle",
		ID:           jb.ID,
		Meta:         jb.Meta,
		Type:         jb.Type,
		Timestamp:    jb.Timestamp,
		Total:        jb.Total,
	}
	for _, e := range jb.Entry {
		entry := BundleEntry{FullURL: e.FullURL}
		raw := bytes.TrimSpace(e.Resource)
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			entry.Resource = decodeJSONEntry(raw)
			entry.Source = compactJSON(raw)
		}
		b.Entry = append(b.Entry, entry)
	}
	return b, nil
}

func decodeJSONEntry(raw []byte) Resource {
	var head resourceHead
	if err := json.Unmarshal(raw, &head); err != nil || head.ResourceType == "" {
		if err == nil {
			err = errors.New("missing resourceType")
		}
		return &OtherResource{ResourceType: "Unknown", Raw: compactJSON(raw), Err: err}
	}
	r, err := decodeJSONResource(head, raw)
	if err != nil {
		return &OtherResource{ResourceType: head.ResourceType, ID: head.ID, Raw: compactJSON(raw), Err: err}
	}
	return r
}

func compactJSON(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return append([]byte(nil), data...)
	}
	return buf.Bytes()
}
