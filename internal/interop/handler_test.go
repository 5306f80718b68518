package interop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/internal/platform/validation"
)

type fakePipeline struct {
	exportReq ExportRequest
	importReq ImportRequest
	exportErr error
	importErr error
	importRes *ImportResult
}

func (p *fakePipeline) Export(_ context.Context, req ExportRequest) (*ExportResult, error) {
	p.exportReq = req
	if p.exportErr != nil {
		return nil, p.exportErr
	}
	content := `{"resourceType":"Bundle"}`
	if req.Format == fhir.FormatXML {
		content = `<Bundle xmlns="http://hl7.org/fhir"/>`
	}
	return &ExportResult{
		BundleID:   "b1",
		Format:     req.Format.String(),
		MIMEType:   req.Format.MIMEType(),
		Content:    content,
		ExportedAt: testNow,
		RecordID:   uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
	}, nil
}

func (p *fakePipeline) Import(_ context.Context, req ImportRequest) (*ImportResult, error) {
	p.importReq = req
	if p.importErr != nil {
		return nil, p.importErr
	}
	if p.importRes != nil {
		return p.importRes, nil
	}
	return &ImportResult{ImportedResources: 1, Errors: []string{}, ImportedAt: testNow}, nil
}

func newTestHandler() (*Handler, *fakePipeline, *echo.Echo) {
	p := &fakePipeline{}
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(p), p, e
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func newContext(e *echo.Echo, method, target, body, contentType, id string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) fhir.OperationOutcome {
	t.Helper()
	var oo fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &oo); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if oo.ResourceType != "OperationOutcome" || len(oo.Issue) == 0 {
		t.Fatalf("unexpected outcome %s", rec.Body.String())
	}
	return oo
}

func TestHandler_Export(t *testing.T) {
	h, p, e := newTestHandler()
	pid := uuid.New()

	body := `{"format":"xml","include_medications":false,"from":"2024-01-01T00:00:00Z"}`
	c, rec := newContext(e, http.MethodPost, "/api/v1/patients/"+pid.String()+"/fhir/export", body, echo.MIMEApplicationJSON, pid.String())
	if err := h.Export(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	got := p.exportReq
	if got.PatientID != pid || got.Format != fhir.FormatXML {
		t.Errorf("unexpected request %+v", got)
	}
	if !got.IncludeObservations || !got.IncludeConditions || got.IncludeMedications {
		t.Errorf("unexpected include flags %+v", got)
	}
	if got.From == nil || got.To != nil {
		t.Errorf("unexpected range %v %v", got.From, got.To)
	}
	var res ExportResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.BundleID != "b1" || res.Format != "Xml" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandler_Export_EmptyBodyDefaults(t *testing.T) {
	h, p, e := newTestHandler()
	pid := uuid.New()
	c, _ := newContext(e, http.MethodPost, "/", "", "", pid.String())
	if err := h.Export(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.exportReq != NewExportRequest(pid) {
		t.Errorf("expected defaults, got %+v", p.exportReq)
	}
}

func TestHandler_Export_BadRequest(t *testing.T) {
	h, _, e := newTestHandler()
	pid := uuid.New().String()
	tests := []struct {
		name, id, body string
	}{
		{"bad id", "not-a-uuid", ""},
		{"bad format", pid, `{"format":"yaml"}`},
		{"inverted range", pid, `{"from":"2024-02-01T00:00:00Z","to":"2024-01-01T00:00:00Z"}`},
		{"malformed body", pid, `{"format":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(e, http.MethodPost, "/", tt.body, echo.MIMEApplicationJSON, tt.id)
			if code := httpCode(t, h.Export(c)); code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
		})
	}
}

func TestHandler_Export_ServiceErrors(t *testing.T) {
	h, p, e := newTestHandler()
	pid := uuid.New().String()
	p.exportErr = apperr.NotFound("patient %s not found", pid)
	c, _ := newContext(e, http.MethodPost, "/", "", "", pid)
	if code := httpCode(t, h.Export(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_Import(t *testing.T) {
	h, p, e := newTestHandler()
	pid := uuid.New()
	body := `{"content":"{\"resourceType\":\"Bundle\"}","format":"Json","validate":true,"overwrite_existing":true}`
	c, rec := newContext(e, http.MethodPost, "/", body, echo.MIMEApplicationJSON, pid.String())
	if err := h.Import(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	got := p.importReq
	if got.PatientID != pid || string(got.Content) != `{"resourceType":"Bundle"}` || !got.Validate || !got.OverwriteExisting {
		t.Errorf("unexpected request %+v", got)
	}
	var res map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res["importedResources"] != float64(1) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if errs, ok := res["errors"].([]any); !ok || len(errs) != 0 {
		t.Errorf("expected empty errors array, got %v", res["errors"])
	}
}

func TestHandler_Import_Errors(t *testing.T) {
	pid := uuid.New().String()
	tests := []struct {
		name   string
		body   string
		svcErr error
		want   int
	}{
		{"missing content", `{"format":"Json"}`, nil, http.StatusBadRequest},
		{"bad format", `{"content":"x","format":"csv"}`, nil, http.StatusBadRequest},
		{"decode", `{"content":"x"}`, apperr.Decode("Json", context.Canceled), http.StatusBadRequest},
		{"busy", `{"content":"x"}`, apperr.DomainState("An import is already running for patient %s", pid), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p, e := newTestHandler()
			p.importErr = tt.svcErr
			c, _ := newContext(e, http.MethodPost, "/", tt.body, echo.MIMEApplicationJSON, pid)
			if code := httpCode(t, h.Import(c)); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandler_FHIRExport(t *testing.T) {
	h, p, e := newTestHandler()
	pid := uuid.New()
	target := "/fhir/Patient/" + pid.String() + "/$export?_format=xml&_type=Condition,MedicationRequest&_since=2024-01-01"
	c, rec := newContext(e, http.MethodGet, target, "", "", pid.String())
	if err := h.FHIRExport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, fhir.MIMETypeFHIRXML) {
		t.Errorf("expected FHIR XML content type, got %s", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "<Bundle") {
		t.Errorf("expected raw bundle body, got %s", rec.Body.String())
	}
	if rec.Header().Get("X-Exchange-Record") == "" {
		t.Error("expected X-Exchange-Record header")
	}
	got := p.exportReq
	if got.IncludeObservations || !got.IncludeConditions || !got.IncludeMedications {
		t.Errorf("unexpected _type filter %+v", got)
	}
	if got.From == nil || got.From.Year() != 2024 {
		t.Errorf("expected _since parsed, got %v", got.From)
	}
}

func TestHandler_FHIRExport_DateBounds(t *testing.T) {
	tests := []struct {
		name  string
		query string
		from  time.Time
		to    time.Time
	}{
		{"dates cover whole days", "?_since=2024-06-01&_until=2024-06-15",
			time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 15, 23, 59, 59, 999999999, time.UTC)},
		{"instants are exact", "?_since=2024-06-01T08:00:00Z&_until=2024-06-15T12:00:00Z",
			time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p, e := newTestHandler()
			pid := uuid.New().String()
			c, _ := newContext(e, http.MethodGet, "/"+tt.query, "", "", pid)
			if err := h.FHIRExport(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := p.exportReq
			if got.From == nil || !got.From.Equal(tt.from) {
				t.Errorf("expected from %v, got %v", tt.from, got.From)
			}
			if got.To == nil || !got.To.Equal(tt.to) {
				t.Errorf("expected to %v, got %v", tt.to, got.To)
			}
		})
	}
}

func TestHandler_FHIRExport_AcceptHeader(t *testing.T) {
	h, p, e := newTestHandler()
	pid := uuid.New().String()
	c, _ := newContext(e, http.MethodGet, "/", "", "", pid)
	c.Request().Header.Set(echo.HeaderAccept, "application/fhir+xml")
	if err := h.FHIRExport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.exportReq.Format != fhir.FormatXML {
		t.Errorf("expected XML from Accept, got %s", p.exportReq.Format)
	}
}

func TestHandler_FHIRExport_Outcomes(t *testing.T) {
	pid := uuid.New().String()
	tests := []struct {
		name   string
		id     string
		query  string
		svcErr error
		status int
		code   string
	}{
		{"bad id", "x", "", nil, http.StatusBadRequest, fhir.IssueTypeInvalid},
		{"bad format", pid, "?_format=csv", nil, http.StatusBadRequest, fhir.IssueTypeInvalid},
		{"bad since", pid, "?_since=yesterday", nil, http.StatusBadRequest, fhir.IssueTypeInvalid},
		{"unknown patient", pid, "", apperr.NotFound("patient %s not found", pid), http.StatusNotFound, fhir.IssueTypeNotFound},
		{"internal", pid, "", context.DeadlineExceeded, http.StatusInternalServerError, fhir.IssueTypeProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p, e := newTestHandler()
			p.exportErr = tt.svcErr
			c, rec := newContext(e, http.MethodGet, "/"+tt.query, "", "", tt.id)
			if err := h.FHIRExport(c); err != nil {
				t.Fatalf("outcomes are written, not returned: %v", err)
			}
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			oo := decodeOutcome(t, rec)
			if oo.Issue[0].Code != tt.code || oo.Issue[0].Severity != fhir.IssueSeverityError {
				t.Errorf("unexpected issue %+v", oo.Issue[0])
			}
			if tt.status == http.StatusInternalServerError && oo.Issue[0].Diagnostics != "internal error" {
				t.Errorf("internal errors must not leak, got %q", oo.Issue[0].Diagnostics)
			}
		})
	}
}

func TestHandler_FHIRImport(t *testing.T) {
	h, p, e := newTestHandler()
	p.importRes = &ImportResult{
		ImportedResources: 3,
		Errors:            []string{"Failed to convert Observation: bad code"},
		ImportedAt:        testNow,
	}
	pid := uuid.New()
	c, rec := newContext(e, http.MethodPost, "/?validate=true", "<Bundle/>", "application/fhir+xml", pid.String())
	if err := h.FHIRImport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Imported-Resources") != "3" {
		t.Errorf("unexpected X-Imported-Resources %q", rec.Header().Get("X-Imported-Resources"))
	}
	if p.importReq.Format != fhir.FormatXML || !p.importReq.Validate || p.importReq.OverwriteExisting {
		t.Errorf("unexpected request %+v", p.importReq)
	}
	if string(p.importReq.Content) != "<Bundle/>" {
		t.Errorf("expected raw body forwarded, got %q", p.importReq.Content)
	}
	oo := decodeOutcome(t, rec)
	if len(oo.Issue) != 1 || oo.Issue[0].Severity != fhir.IssueSeverityWarning {
		t.Errorf("expected one warning issue, got %+v", oo.Issue)
	}
}

func TestHandler_FHIRImport_Clean(t *testing.T) {
	h, _, e := newTestHandler()
	pid := uuid.New().String()
	c, rec := newContext(e, http.MethodPost, "/", `{"resourceType":"Bundle"}`, "application/fhir+json", pid)
	if err := h.FHIRImport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oo := decodeOutcome(t, rec)
	if oo.Issue[0].Severity != fhir.IssueSeverityInformation {
		t.Errorf("expected informational issue, got %+v", oo.Issue[0])
	}
}

func TestHandler_FHIRImport_Outcomes(t *testing.T) {
	pid := uuid.New().String()
	tests := []struct {
		name        string
		contentType string
		svcErr      error
		status      int
		code        string
	}{
		{"unsupported content type", "text/csv", nil, http.StatusBadRequest, fhir.IssueTypeInvalid},
		{"decode", "application/fhir+json", apperr.Decode("Json", context.Canceled), http.StatusBadRequest, fhir.IssueTypeStructure},
		{"busy", "application/fhir+json", apperr.DomainState("An import is already running for patient %s", pid), http.StatusConflict, fhir.IssueTypeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p, e := newTestHandler()
			p.importErr = tt.svcErr
			c, rec := newContext(e, http.MethodPost, "/", "{}", tt.contentType, pid)
			if err := h.FHIRImport(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if oo := decodeOutcome(t, rec); oo.Issue[0].Code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, oo.Issue[0].Code)
			}
		})
	}
}

func TestTypeFilter(t *testing.T) {
	obs, cond, meds := typeFilter("Observation, Encounter")
	if !obs || cond || meds {
		t.Errorf("unexpected filter %v %v %v", obs, cond, meds)
	}
}
