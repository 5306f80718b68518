package fhir

import (
	"bytes"
	"strings"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

// Format selects the textual encoding of a resource.
type Format int

const (
	FormatJSON Format = iota
	FormatXML
)

const (
	MIMETypeFHIRJSON = "application/fhir+json"
	MIMETypeFHIRXML  = "application/fhir+xml"
)

// ValidFormats lists the accepted format names for error messages.
var ValidFormats = []string{"Json", "Xml"}

func (f Format) String() string {
	if f == FormatXML {
		return "Xml"
	}
	return "Json"
}

func (f Format) MIMEType() string {
	if f == FormatXML {
		return MIMETypeFHIRXML
	}
	return MIMETypeFHIRJSON
}

// ParseFormat accepts short names ("json", "Xml") and media types
// ("application/fhir+xml; charset=utf-8"). An empty value means JSON.
func ParseFormat(raw string) (Format, error) {
	f := normalizeFormat(raw)
	if f == "" {
		return FormatJSON, nil
	}
	switch {
	case isJSONFormat(f):
		return FormatJSON, nil
	case isXMLFormat(f):
		return FormatXML, nil
	}
	return FormatJSON, apperr.InvalidValue("format", raw, ValidFormats)
}

// normalizeFormat lowercases, drops media type parameters and restores the
// "+" that query-string decoding turns into a space.
func normalizeFormat(raw string) string {
	f := strings.TrimSpace(strings.ToLower(raw))
	if i := strings.Index(f, ";"); i >= 0 {
		f = strings.TrimSpace(f[:i])
	}
	f = strings.ReplaceAll(f, "fhir json", "fhir+json")
	f = strings.ReplaceAll(f, "fhir xml", "fhir+xml")
	return f
}

func isJSONFormat(f string) bool {
	switch f {
	case "json", "application/json", "application/fhir+json":
		return true
	}
	return false
}

func isXMLFormat(f string) bool {
	switch f {
	case "xml", "application/xml", "text/xml", "application/fhir+xml":
		return true
	}
	return false
}

// Canonical returns data in the form it is stored: JSON is compacted, XML
// only loses surrounding whitespace.
func Canonical(data []byte, format Format) []byte {
	if format == FormatXML {
		return append([]byte(nil), bytes.TrimSpace(data)...)
	}
	return compactJSON(data)
}

// Codec turns resources into text and back.
type Codec interface {
	Encode(r Resource, format Format) ([]byte, error)
	Decode(data []byte, format Format) (Resource, error)
}

// DefaultCodec implements Codec with the JSON and XML encoders in this package.
type DefaultCodec struct {
	Indent bool
}

func NewCodec() *DefaultCodec {
	return &DefaultCodec{Indent: true}
}

func (c *DefaultCodec) Encode(r Resource, format Format) ([]byte, error) {
	if format == FormatXML {
		return MarshalXML(r, c.Indent)
	}
	return MarshalJSON(r, c.Indent)
}

// Decode returns an apperr.ErrDecode error for any malformed input.
func (c *DefaultCodec) Decode(data []byte, format Format) (Resource, error) {
	var (
		r   Resource
		err error
	)
	if format == FormatXML {
		r, err = UnmarshalXML(data)
	} else {
		r, err = UnmarshalJSON(data)
	}
	if err != nil {
		return nil, apperr.Decode(format.String(), err)
	}
	return r, nil
}
