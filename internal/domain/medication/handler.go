package medication

import (
	"net/http"
	"strconv"
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
	api.POST("/patients/:id/medications", h.AddMedication)
	api.GET("/patients/:id/medications", h.ListMedications)
	api.GET("/medications/:id", h.GetMedication)
	api.POST("/medications/:id/stop", h.StopMedication)
	api.POST("/medications/:id/complete", h.CompleteMedication)
	api.POST("/medications/:id/hold", h.HoldMedication)
	api.POST("/medications/:id/resume", h.ResumeMedication)
	api.POST("/medications/:id/side-effects", h.RecordSideEffect)
}

type addMedicationRequest struct {
	Name         string     `json:"name" validate:"required,max=200"`
	Dosage       *string    `json:"dosage"`
	Frequency    *string    `json:"frequency"`
	Instructions *string    `json:"instructions"`
	StartDate    *time.Time `json:"start_date"`
	PrescribedBy *string    `json:"prescribed_by"`
	Purpose      *string    `json:"purpose"`
	RecordedBy   string     `json:"recorded_by"`
}

type stopRequest struct {
	Reason string `json:"reason"`
}

type sideEffectRequest struct {
	Description string `json:"description" validate:"required"`
	Severity    string `json:"severity" validate:"required,oneof=Mild Moderate Severe"`
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) AddMedication(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var req addMedicationRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	m, err := h.svc.AddMedication(c.Request().Context(), patientID, req.Name, Input{
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Instructions: req.Instructions,
		StartDate:    req.StartDate,
		PrescribedBy: req.PrescribedBy,
		Purpose:      req.Purpose,
		RecordedBy:   req.RecordedBy,
	})
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
	items, err := h.svc.ListMedications(c.Request().Context(), patientID, activeOnly)
	if err != nil {
		return apperr.EchoError(err)
	}
	if items == nil {
		items = []*Medication{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) StopMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req stopRequest
	if c.Request().ContentLength > 0 {
		if err := validation.Bind(c, &req); err != nil {
			return apperr.EchoError(err)
		}
	}
	m, err := h.svc.StopMedication(c.Request().Context(), id, req.Reason)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) CompleteMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.CompleteMedication(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) HoldMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.HoldMedication(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ResumeMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.ResumeMedication(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) RecordSideEffect(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req sideEffectRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	m, err := h.svc.RecordSideEffect(c.Request().Context(), id, req.Description, req.Severity)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, m)
}
