package fhir

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       Resource
		wantErr string
	}{
		{
			name: "valid observation",
			r:    &Observation{ResourceType: "Observation", Status: "final", Code: CodeableConcept{Text: "Weight"}},
		},
		{
			name:    "observation without status",
			r:       &Observation{ResourceType: "Observation", Code: CodeableConcept{Text: "Weight"}},
			wantErr: "Status is required",
		},
		{
			name:    "observation with unknown status",
			r:       &Observation{ResourceType: "Observation", Status: "draft"},
			wantErr: "Status has invalid value",
		},
		{
			name:    "condition without code",
			r:       &Condition{ResourceType: "Condition", Subject: Reference{Reference: "Patient/1"}},
			wantErr: "Code is required",
		},
		{
			name: "valid medication request",
			r:    &MedicationRequest{ResourceType: "MedicationRequest", Status: "active", Intent: "order"},
		},
		{
			name:    "medication request without intent",
			r:       &MedicationRequest{ResourceType: "MedicationRequest", Status: "active"},
			wantErr: "Intent is required",
		},
		{
			name:    "patient with bad gender",
			r:       &Patient{ResourceType: "Patient", Gender: "robot"},
			wantErr: "Gender has invalid value",
		},
		{
			name: "other resource",
			r:    &OtherResource{ResourceType: "Encounter"},
		},
		{
			name:    "malformed entry",
			r:       &OtherResource{ResourceType: "Observation", Err: errors.New("status: cannot unmarshal number")},
			wantErr: "cannot unmarshal number",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.r)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
