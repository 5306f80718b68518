package identity

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/familyhealth/healthrecord/internal/platform/apperr"
	"github.com/familyhealth/healthrecord/internal/platform/validation"
	"github.com/familyhealth/healthrecord/pkg/pagination"
)

// Handler provides the patient REST endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeactivatePatient)
	api.GET("/patients/:id/family", h.GetFamilyMembers)
}

type createPatientRequest struct {
	Email           string  `json:"email" validate:"required,email"`
	FirstName       string  `json:"first_name" validate:"required,max=100"`
	LastName        string  `json:"last_name" validate:"required,max=100"`
	DateOfBirth     string  `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender          string  `json:"gender" validate:"omitempty"`
	PhoneNumber     *string `json:"phone_number"`
	ParentPatientID *string `json:"parent_patient_id" validate:"omitempty,uuid"`
	Relationship    string  `json:"relationship"`
}

type updatePatientRequest struct {
	FirstName   string  `json:"first_name" validate:"required,max=100"`
	LastName    string  `json:"last_name" validate:"required,max=100"`
	DateOfBirth string  `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	PhoneNumber *string `json:"phone_number"`

	EmergencyContact *struct {
		Name         string `json:"name" validate:"required"`
		Phone        string `json:"phone" validate:"required"`
		Relationship string `json:"relationship" validate:"required"`
	} `json:"emergency_contact"`

	Medical *struct {
		BloodType *string  `json:"blood_type"`
		Allergies []string `json:"allergies"`
		Notes     *string  `json:"notes"`
	} `json:"medical"`

	Privacy *struct {
		ShareWithFamily      bool     `json:"share_with_family"`
		RestrictedCategories []string `json:"restricted_categories"`
	} `json:"privacy"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req createPatientRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	dob, _ := time.Parse("2006-01-02", req.DateOfBirth)
	gender, err := ParseGender(req.Gender)
	if err != nil {
		return apperr.EchoError(err)
	}
	in := CreatePatientInput{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  dob,
		Gender:       gender,
		PhoneNumber:  req.PhoneNumber,
		Relationship: req.Relationship,
	}
	if req.ParentPatientID != nil {
		pid := uuid.MustParse(*req.ParentPatientID)
		in.ParentPatientID = &pid
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), in)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.OpenPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updatePatientRequest
	if err := validation.Bind(c, &req); err != nil {
		return apperr.EchoError(err)
	}
	dob, _ := time.Parse("2006-01-02", req.DateOfBirth)
	in := UpdatePatientInput{
		Personal: &PersonalInfo{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			DateOfBirth: dob,
			PhoneNumber: req.PhoneNumber,
		},
	}
	if ec := req.EmergencyContact; ec != nil {
		in.EmergencyContact = &EmergencyContact{Name: ec.Name, Phone: ec.Phone, Relationship: ec.Relationship}
	}
	if m := req.Medical; m != nil {
		in.Medical = &MedicalInfo{BloodType: m.BloodType, Allergies: m.Allergies, Notes: m.Notes}
	}
	if pr := req.Privacy; pr != nil {
		in.Privacy = &PrivacySettings{ShareWithFamily: pr.ShareWithFamily, RestrictedCategories: pr.RestrictedCategories}
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, in)
	if err != nil {
		return apperr.EchoError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivatePatient(c.Request().Context(), id); err != nil {
		return apperr.EchoError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetFamilyMembers(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	members, err := h.svc.FamilyMembers(c.Request().Context(), id)
	if err != nil {
		return apperr.EchoError(err)
	}
	if members == nil {
		members = []*Patient{}
	}
	return c.JSON(http.StatusOK, members)
}
