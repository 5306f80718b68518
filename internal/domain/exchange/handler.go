package exchange

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/pkg/pagination"
)

var validStatuses = []string{string(StatusActive), string(StatusInactive), string(StatusDeleted), string(StatusError)}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/exchange-records", h.ListRecords)
	api.GET("/exchange-records/:id", h.GetRecord)
	api.GET("/exchange-records/:id/content", h.GetRecordContent)
	api.DELETE("/exchange-records/:id", h.DeleteRecord)
}

func (h *Handler) ListRecords(c echo.Context) error {
	var p SearchParams
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		p.PatientID = id
	}
	p.ResourceType = c.QueryParam("resource_type")
	if v := c.QueryParam("status"); v != "" {
		st, ok := parseStatus(v)
		if !ok {
			return apperr.EchoError(apperr.InvalidValue("status", v, validStatuses))
		}
		p.Status = st
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchRecords(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GetRecordContent returns the stored resource text with its original MIME type.
func (h *Handler) GetRecordContent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	format, err := fhir.ParseFormat(rec.Metadata[MetaFormat])
	if err != nil {
		format = fhir.FormatJSON
	}
	return c.Blob(http.StatusOK, format.MIMEType(), []byte(rec.Content))
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteRecord(c.Request().Context(), id); err != nil {
		return apperr.EchoError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseStatus(v string) (Status, bool) {
	for _, s := range validStatuses {
		if s == v {
			return Status(s), true
		}
	}
	return "", false
}
