package terminology

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
)

// Handler exposes the fixed code tables read-only.
type Handler struct {
	tables *Tables
}

func NewHandler(tables *Tables) *Handler {
	return &Handler{tables: tables}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	api.GET("/terminology/:table", h.LookupLabel)
	fhirGroup.POST("/CodeSystem/$lookup", h.FHIRLookup)
}

// LookupLabel handles GET /api/v1/terminology/:table?label=...
// Without a label it lists the table's known labels.
func (h *Handler) LookupLabel(c echo.Context) error {
	table := c.Param("table")
	label := c.QueryParam("label")
	if label == "" {
		labels, err := h.tables.Labels(table)
		if err != nil {
			return apperr.EchoError(err)
		}
		return c.JSON(http.StatusOK, labels)
	}
	code, err := h.tables.Lookup(table, label)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, code)
}

type lookupRequest struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

// FHIRLookup handles POST /fhir/CodeSystem/$lookup
func (h *Handler) FHIRLookup(c echo.Context) error {
	var req lookupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	if req.System == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("system and code are required"))
	}
	display, ok := h.tables.Display(req.System, req.Code)
	if !ok {
		return c.JSON(http.StatusNotFound, fhir.ErrorOutcome("code "+req.Code+" not found in "+req.System))
	}
	return c.JSON(http.StatusOK, &LookupResponse{
		ResourceType: "Parameters",
		Parameter: []LookupParameter{
			{Name: "system", ValueString: req.System},
			{Name: "code", ValueCode: req.Code},
			{Name: "display", ValueString: display},
		},
	})
}
