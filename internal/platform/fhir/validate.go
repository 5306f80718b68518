package fhir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// Validate checks the required elements of the modeled clinical resources.
// Patient, Bundle and unmodeled resources only get their type checked.
func Validate(r Resource) error {
	switch v := r.(type) {
	case *Observation, *Condition, *MedicationRequest, *Patient:
		if err := structValidator.Struct(v); err != nil {
			return describeValidation(err)
		}
		return nil
	case *OtherResource:
		if v.Err != nil {
			return v.Err
		}
		if v.ResourceType == "" {
			return errors.New("resourceType is required")
		}
		return nil
	case *Bundle:
		return nil
	default:
		return fmt.Errorf("unsupported resource %T", r)
	}
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Tag() == "required" {
			parts = append(parts, field+" is required")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s has invalid value %q", field, fmt.Sprint(fe.Value())))
	}
	return errors.New(strings.Join(parts, "; "))
}
