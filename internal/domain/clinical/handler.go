package clinical

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/observations", h.RecordObservation)
	api.GET("/patients/:id/observations", h.ListObservations)
	api.GET("/observations/:id", h.GetObservation)
	api.PATCH("/observations/:id/visibility", h.SetObservationVisibility)
	api.POST("/observations/:id/notes", h.AddObservationNotes)

	api.POST("/patients/:id/conditions", h.RecordCondition)
	api.GET("/patients/:id/conditions", h.ListConditions)
	api.GET("/conditions/:id", h.GetCondition)
	api.PATCH("/conditions/:id", h.UpdateCondition)
	api.POST("/conditions/:id/resolve", h.ResolveCondition)
	api.POST("/conditions/:id/deactivate", h.DeactivateCondition)
}

type recordObservationRequest struct {
	ObservationType string     `json:"observation_type" validate:"required,max=100"`
	Value           string     `json:"value" validate:"required,max=500"`
	Unit            *string    `json:"unit"`
	RecordedAt      *time.Time `json:"recorded_at"`
	RecordedBy      string     `json:"recorded_by" validate:"required"`
	Category        string     `json:"category"`
	Notes           string     `json:"notes"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"required"`
}

type recordConditionRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description *string    `json:"description"`
	OnsetDate   *time.Time `json:"onset_date"`
	Severity    string     `json:"severity"`
	Treatment   *string    `json:"treatment"`
	RecordedBy  string     `json:"recorded_by"`
}

type updateConditionRequest struct {
	Treatment *string `json:"treatment"`
	Severity  *string `json:"severity"`
}

type resolveConditionRequest struct {
	ResolvedDate *time.Time `json:"resolved_date"`
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// parseRange reads the optional from/to RFC 3339 query parameters.
func parseRange(c echo.Context) (from, to *time.Time, err error) {
	for name, dst := range map[string]**time.Time{"from": &from, "to": &to} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		t, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" date")
		}
		*dst = &t
	}
	return from, to, nil
}

func (h *Handler) RecordObservation(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var req recordObservationRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	category, err := ParseCategory(req.Category)
	if err != nil {
		return apperr.EchoError(err)
	}
	o, err := h.svc.RecordObservation(c.Request().Context(), RecordObservationInput{
		PatientID:       patientID,
		ObservationType: req.ObservationType,
		Value:           req.Value,
		Unit:            req.Unit,
		RecordedAt:      req.RecordedAt,
		RecordedBy:      req.RecordedBy,
		Category:        category,
		Notes:           req.Notes,
	})
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListObservations(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	from, to, err := parseRange(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListObservations(c.Request().Context(), patientID, from, to)
	if err != nil {
		return apperr.EchoError(err)
	}
	if items == nil {
		items = []*Observation{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetObservation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetObservation(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) SetObservationVisibility(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req visibilityRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	o, err := h.svc.SetObservationVisibility(c.Request().Context(), id, *req.Visible)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) AddObservationNotes(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req notesRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	o, err := h.svc.AddObservationNotes(c.Request().Context(), id, req.Notes)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) RecordCondition(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var req recordConditionRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	severity, err := ParseSeverity(req.Severity)
	if err != nil {
		return apperr.EchoError(err)
	}
	cond, err := h.svc.RecordCondition(c.Request().Context(), patientID, req.Name, ConditionInput{
		Description: req.Description,
		OnsetDate:   req.OnsetDate,
		Severity:    severity,
		Treatment:   req.Treatment,
		RecordedBy:  req.RecordedBy,
	})
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusCreated, cond)
}

func (h *Handler) ListConditions(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListConditions(c.Request().Context(), patientID)
	if err != nil {
		return apperr.EchoError(err)
	}
	if items == nil {
		items = []*Condition{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetCondition(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cond, err := h.svc.GetCondition(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *Handler) UpdateCondition(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req updateConditionRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	var severity *Severity
	if req.Severity != nil {
		s, err := ParseSeverity(*req.Severity)
		if err != nil {
			return apperr.EchoError(err)
		}
		severity = &s
	}
	cond, err := h.svc.UpdateCondition(c.Request().Context(), id, req.Treatment, severity)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *Handler) ResolveCondition(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req resolveConditionRequest
	if c.Request().ContentLength > 0 {
		if err := validation.Bind(c, &req); err != nil {
			return apperr.EchoError(err)
		}
	}
	cond, err := h.svc.ResolveCondition(c.Request().Context(), id, req.ResolvedDate)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *Handler) DeactivateCondition(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cond, err := h.svc.DeactivateCondition(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, cond)
}
