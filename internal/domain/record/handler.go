package record

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medportal/portal/internal/domain/patient"
	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/internal/platform/blobstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/medical-record.pdf", h.Download, auth.RequireSelfOrRole("id", auth.RoleDoctor))
}

// Download streams the exported record as an attachment.
func (h *Handler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	res, err := h.svc.Export(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not export medical record")
	}

	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentDisposition, blobstore.Attachment(res.Filename))
	hdr.Set("X-Record-Pages", strconv.Itoa(res.Pages))
	hdr.Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "application/pdf", res.Data)
}
