package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
)

type sampleRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Format string `json:"format" validate:"omitempty,oneof=Json Xml"`
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	if err := v.Validate(&sampleRequest{Email: "a@b.com", Format: "Xml"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := v.Validate(&sampleRequest{Format: "Yaml"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "email is required") {
		t.Errorf("expected json field name in %q", msg)
	}
	if !strings.Contains(msg, "format must be one of: Json, Xml") {
		t.Errorf("expected oneof values in %q", msg)
	}
}

func TestBind(t *testing.T) {
	e := echo.New()
	e.Validator = New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"x@y.org"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var dst sampleRequest
	if err := Bind(c, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Email != "x@y.org" {
		t.Errorf("expected email bound, got %q", dst.Email)
	}
}

func TestBind_MalformedBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var dst sampleRequest
	err := Bind(c, &dst)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
