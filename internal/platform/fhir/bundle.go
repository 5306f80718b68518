package fhir

import (
	"time"

	"github.com/google/uuid"
)

const (
	BundleTypeCollection = "collection"
	BundleTypeDocument   = "document"
)

// Bundle is the FHIR Bundle resource. Entries hold typed resources; the codecs
// dispatch on resourceType when decoding.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Type         string        `json:"type"`
	Timestamp    string        `json:"timestamp,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string   `json:"fullUrl,omitempty"`
	Resource Resource `json:"resource,omitempty"`
	// Source is the entry resource as it was read, in the document's own
	// format. It is empty for entries built in memory.
	Source []byte `json:"-"`
}

func (b *Bundle) Kind() Kind         { return KindBundle }
func (b *Bundle) TypeName() string   { return "Bundle" }
func (b *Bundle) ResourceID() string { return b.ID }

// NewCollectionBundle starts an empty collection bundle with a fresh id.
func NewCollectionBundle(now time.Time) *Bundle {
	ts := FormatDateTime(now)
	return &Bundle{
		ResourceType: "Bundle",
		ID:           uuid.New().String(),
		Meta:         &Meta{LastUpdated: ts},
		Type:         BundleTypeCollection,
		Timestamp:    ts,
	}
}

// Add appends a resource with a "Kind/id" fullUrl.
func (b *Bundle) Add(r Resource) {
	b.Entry = append(b.Entry, BundleEntry{
		FullURL:  FormatReference(r.TypeName(), r.ResourceID()),
		Resource: r,
	})
}

// Resources returns the non-nil entry resources in document order.
func (b *Bundle) Resources() []Resource {
	out := make([]Resource, 0, len(b.Entry))
	for _, e := range b.Entry {
		if e.Resource != nil {
			out = append(out, e.Resource)
		}
	}
	return out
}
