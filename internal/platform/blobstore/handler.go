package blobstore

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medportal/portal/internal/platform/auth"
)

// Attachment formats a Content-Disposition value that downloads the response
// as name. Quotes and non-ASCII characters in name are escaped.
func Attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// BlobHandler serves uploads and downloads.
type BlobHandler struct {
	store    BlobStore
	uploader *Uploader
}

func NewBlobHandler(store BlobStore, uploader *Uploader) *BlobHandler {
	return &BlobHandler{store: store, uploader: uploader}
}

// RegisterRoutes mounts blob routes on the supplied Echo group.
func (h *BlobHandler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/uploads", h.Upload, auth.RequireRole(auth.RoleDoctor))
	api.GET("/blobs/*", h.Download)
}

func (h *BlobHandler) Upload(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	kind, err := ParseKind(c.QueryParam("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form is required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
		}
		defer src.Close()
		files = append(files, File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Content: src})
	}

	uploaded, err := h.uploader.Upload(c.Request().Context(), patientID, kind, auth.UserIDFromContext(c.Request().Context()), files)
	if err != nil {
		return uploadError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"items": uploaded})
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrInvalidDICOM), errors.Is(err, ErrInvalidKey):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Download streams an object. Patients may only fetch objects filed under
// their own id.
func (h *BlobHandler) Download(c echo.Context) error {
	key := strings.TrimPrefix(c.Param("*"), "/")
	patientID, ok := PatientFromKey(key)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "blob not found")
	}
	ctx := c.Request().Context()
	if !auth.HasRole(ctx, auth.RoleDoctor) && !strings.EqualFold(auth.UserIDFromContext(ctx), patientID.String()) {
		return echo.NewHTTPError(http.StatusForbidden, "access to this file is not allowed")
	}

	rc, meta, err := h.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "blob not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, Attachment(meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
