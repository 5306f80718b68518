package interop

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/internal/platform/validation"
)

// Pipeline is the export/import surface the handler drives.
type Pipeline interface {
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
}

type Handler struct {
	svc Pipeline
}

func NewHandler(svc Pipeline) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the JSON API and the FHIR operations. importMW
// applies to both import routes only.
func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group, importMW ...echo.MiddlewareFunc) {
	api.POST("/patients/:id/fhir/export", h.Export)
	api.POST("/patients/:id/fhir/import", h.Import, importMW...)

	fhirGroup.GET("/Patient/:id/$export", h.FHIRExport)
	fhirGroup.POST("/Patient/:id/$import", h.FHIRImport, importMW...)
}

type exportRequest struct {
	Format              string     `json:"format" validate:"omitempty,oneof=Json Xml json xml"`
	IncludeObservations *bool      `json:"include_observations"`
	IncludeConditions   *bool      `json:"include_conditions"`
	IncludeMedications  *bool      `json:"include_medications"`
	From                *time.Time `json:"from"`
	To                  *time.Time `json:"to"`
}

type importRequest struct {
	Content           string `json:"content" validate:"required"`
	Format            string `json:"format" validate:"omitempty,oneof=Json Xml json xml"`
	Validate          bool   `json:"validate"`
	OverwriteExisting bool   `json:"overwrite_existing"`
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid patient id")
	}
	return id, nil
}

func (r exportRequest) toExport(id uuid.UUID) (ExportRequest, error) {
	out := NewExportRequest(id)
	format, err := fhir.ParseFormat(r.Format)
	if err != nil {
		return out, err
	}
	out.Format = format
	if r.IncludeObservations != nil {
		out.IncludeObservations = *r.IncludeObservations
	}
	if r.IncludeConditions != nil {
		out.IncludeConditions = *r.IncludeConditions
	}
	if r.IncludeMedications != nil {
		out.IncludeMedications = *r.IncludeMedications
	}
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return out, apperr.Validation("from must not be after to")
	}
	out.From, out.To = r.From, r.To
	return out, nil
}

// Export handles POST /api/v1/patients/:id/fhir/export
func (h *Handler) Export(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return apperr.EchoError(err)
	}
	var req exportRequest
	if c.Request().ContentLength > 0 {
		if err := validation.Bind(c, &req); err != nil {
			return apperr.EchoError(err)
		}
	}
	exp, err := req.toExport(id)
	if err != nil {
		return apperr.EchoError(err)
	}
	res, err := h.svc.Export(c.Request().Context(), exp)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// Import handles POST /api/v1/patients/:id/fhir/import
func (h *Handler) Import(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return apperr.EchoError(err)
	}
	var req importRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	format, err := fhir.ParseFormat(req.Format)
	if err != nil {
		return apperr.EchoError(err)
	}
	res, err := h.svc.Import(c.Request().Context(), ImportRequest{
		PatientID:         id,
		Content:           []byte(req.Content),
		Format:            format,
		Validate:          req.Validate,
		OverwriteExisting: req.OverwriteExisting,
	})
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// FHIRExport handles GET /fhir/Patient/:id/$export and returns the bundle
// itself in the negotiated format.
func (h *Handler) FHIRExport(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return outcomeError(c, err)
	}
	format, err := fhir.NegotiateFormat(c)
	if err != nil {
		return outcomeError(c, err)
	}
	req := NewExportRequest(id)
	req.Format = format
	bounds := []struct {
		name  string
		parse func(string) (time.Time, bool)
		dst   **time.Time
	}{
		{"_since", fhir.ParseDateTime, &req.From},
		{"_until", fhir.ParseDateTimeEnd, &req.To},
	}
	for _, b := range bounds {
		raw := c.QueryParam(b.name)
		if raw == "" {
			continue
		}
		t, ok := b.parse(raw)
		if !ok {
			return outcomeError(c, apperr.Validation("invalid "+b.name+" parameter"))
		}
		*b.dst = &t
	}
	if v := c.QueryParam("_type"); v != "" {
		req.IncludeObservations, req.IncludeConditions, req.IncludeMedications = typeFilter(v)
	}

	res, err := h.svc.Export(c.Request().Context(), req)
	if err != nil {
		return outcomeError(c, err)
	}
	c.Response().Header().Set("X-Exchange-Record", res.RecordID.String())
	return c.Blob(http.StatusOK, res.MIMEType, []byte(res.Content))
}

// typeFilter parses a comma-separated _type list.
func typeFilter(v string) (obs, cond, meds bool) {
	for _, t := range strings.Split(v, ",") {
		switch fhir.KindOf(strings.TrimSpace(t)) {
		case fhir.KindObservation:
			obs = true
		case fhir.KindCondition:
			cond = true
		case fhir.KindMedicationRequest:
			meds = true
		}
	}
	return obs, cond, meds
}

// FHIRImport handles POST /fhir/Patient/:id/$import with the FHIR document
// as the request body. The response is an OperationOutcome listing any
// per-resource failures.
func (h *Handler) FHIRImport(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return outcomeError(c, err)
	}
	format, err := fhir.RequestFormat(c)
	if err != nil {
		return outcomeError(c, err)
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return c.JSON(he.Code, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "request body too large"))
		}
		return outcomeError(c, apperr.Decode(format.String(), err))
	}
	validate, _ := strconv.ParseBool(c.QueryParam("validate"))
	overwrite, _ := strconv.ParseBool(c.QueryParam("overwrite"))

	res, err := h.svc.Import(c.Request().Context(), ImportRequest{
		PatientID:         id,
		Content:           body,
		Format:            format,
		Validate:          validate,
		OverwriteExisting: overwrite,
	})
	if err != nil {
		return outcomeError(c, err)
	}
	c.Response().Header().Set("X-Imported-Resources", strconv.Itoa(res.ImportedResources))
	return c.JSON(http.StatusOK, fhir.WarningsOutcome(res.Errors))
}

// outcomeError writes err as an OperationOutcome with its mapped status.
func outcomeError(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	code := fhir.IssueTypeProcessing
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		code = fhir.IssueTypeNotFound
	case errors.Is(err, apperr.ErrValidation):
		code = fhir.IssueTypeInvalid
	case errors.Is(err, apperr.ErrDecode):
		code = fhir.IssueTypeStructure
	case errors.Is(err, apperr.ErrDomainState):
		code = fhir.IssueTypeConflict
	}
	diagnostics := err.Error()
	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
		diagnostics = "internal error"
	}
	return c.JSON(status, fhir.NewOperationOutcome(fhir.IssueSeverityError, code, diagnostics))
}
