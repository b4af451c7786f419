package clinical

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medportal/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	self := auth.RequireSelfOrRole("id", auth.RoleDoctor)
	api.GET("/patients/:id/medications", h.ListMedications, self)
	api.GET("/patients/:id/vaccinations", h.ListVaccinations, self)
	api.GET("/patients/:id/consultations", h.ListConsultations, self)
	api.GET("/patients/:id/lab-results", h.ListLabResults, self)
	api.GET("/patients/:id/medical-images", h.ListMedicalImages, self)

	doctor := auth.RequireRole(auth.RoleDoctor)
	api.POST("/patients/:id/consultations", h.SaveConsultation, doctor)
	api.POST("/patients/:id/lab-results", h.AddLabResult, doctor)
	api.GET("/templates/medications", h.ListMedicationTemplates, doctor)
	api.GET("/templates/vaccinations", h.ListVaccinationTemplates, doctor)
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

// listJSON writes items as a JSON array, never null.
func listJSON[T any](c echo.Context, items []*T, err error) error {
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*T{}
	}
	return c.JSON(http.StatusOK, items)
}

// ListMedications returns the active medications, or every prescription
// with ?all=true.
func (h *Handler) ListMedications(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	if c.QueryParam("all") == "true" {
		meds, err := h.svc.ListMedications(c.Request().Context(), id)
		return listJSON(c, meds, err)
	}
	meds, err := h.svc.ListActiveMedications(c.Request().Context(), id, h.now())
	return listJSON(c, meds, err)
}

func (h *Handler) ListVaccinations(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListVaccinations(c.Request().Context(), id)
	return listJSON(c, items, err)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListConsultations(c.Request().Context(), id)
	return listJSON(c, items, err)
}

func (h *Handler) ListLabResults(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListLabResults(c.Request().Context(), id)
	return listJSON(c, items, err)
}

func (h *Handler) ListMedicalImages(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListMedicalImages(c.Request().Context(), id)
	return listJSON(c, items, err)
}

func (h *Handler) SaveConsultation(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	doctorID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var in ConsultationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.PatientID = id

	saved, err := h.svc.SaveConsultation(ctx, Doctor{ID: doctorID, Name: auth.UserNameFromContext(ctx)}, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, saved)
}

func (h *Handler) AddLabResult(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	var in LabResultInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l, err := h.svc.AddLabResult(c.Request().Context(), id, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListMedicationTemplates(c echo.Context) error {
	items, err := h.svc.ListMedicationTemplates(c.Request().Context())
	return listJSON(c, items, err)
}

func (h *Handler) ListVaccinationTemplates(c echo.Context) error {
	items, err := h.svc.ListVaccinationTemplates(c.Request().Context())
	return listJSON(c, items, err)
}
