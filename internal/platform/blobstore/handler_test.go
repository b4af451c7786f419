package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/platform/auth"
)

func multipartBody(t *testing.T, field, name, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	w.Close()
	return &buf, w.FormDataContentType()
}

func newBlobHandler(store BlobStore) *BlobHandler {
	return NewBlobHandler(store, newTestUploader(store))
}

func TestBlobHandler_Upload(t *testing.T) {
	store := NewInMemoryBlobStore(0)
	h := newBlobHandler(store)
	e := echo.New()

	body, ct := multipartBody(t, "files", "notes.txt", "text/plain", "follow up in 2 weeks")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/"+testPatient.String()+"/uploads?kind=consultation", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req = req.WithContext(auth.WithUser(req.Context(), "doctor-1", "Dr. Ionescu", auth.RoleDoctor))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(testPatient.String())

	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Items []Uploaded `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 || !strings.HasPrefix(resp.Items[0].Key, "consultations/"+testPatient.String()+"/") {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}
	_, meta, err := store.Get(context.Background(), resp.Items[0].Key)
	if err != nil {
		t.Fatal(err)
	}
	if meta.CreatedBy != "doctor-1" {
		t.Errorf("expected created_by doctor-1, got %q", meta.CreatedBy)
	}
}

func TestBlobHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		kind   string
		ctype  string
		status int
	}{
		{"bad patient id", "nope", "consultation", "text/plain", http.StatusBadRequest},
		{"bad kind", testPatient.String(), "xray", "text/plain", http.StatusBadRequest},
		{"bad content type", testPatient.String(), "medical-image", "application/x-sh", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBlobHandler(NewInMemoryBlobStore(0))
			e := echo.New()
			body, ct := multipartBody(t, "file", "x.bin", tt.ctype, "data")
			req := httptest.NewRequest(http.MethodPost, "/?kind="+tt.kind, body)
			req.Header.Set(echo.HeaderContentType, ct)
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tt.id)

			err := h.Upload(c)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != tt.status {
				t.Errorf("expected HTTP %d, got %v", tt.status, err)
			}
		})
	}
}

func TestBlobHandler_UploadRequiresDoctor(t *testing.T) {
	e := echo.New()
	h := newBlobHandler(NewInMemoryBlobStore(0))
	g := e.Group("/api/v1")
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithUser(c.Request().Context(), testPatient.String(), "Maria", auth.RolePatient)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	h.RegisterRoutes(g)

	body, ct := multipartBody(t, "file", "a.txt", "text/plain", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/"+testPatient.String()+"/uploads?kind=consultation", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient upload, got %d", rec.Code)
	}
}

func TestBlobHandler_Download(t *testing.T) {
	store := NewInMemoryBlobStore(0)
	key := "medical-images/" + testPatient.String() + "/1_scan.png"
	if _, err := store.Put(context.Background(), BlobMetadata{Key: key, FileName: "scan.png", ContentType: "image/png"}, strings.NewReader("png")); err != nil {
		t.Fatal(err)
	}
	h := NewBlobHandler(store, NewUploader(store, 0, zerolog.Nop()))

	tests := []struct {
		name   string
		key    string
		user   string
		role   string
		status int
	}{
		{"doctor", key, "doctor-1", auth.RoleDoctor, http.StatusOK},
		{"own patient", key, strings.ToUpper(testPatient.String()), auth.RolePatient, http.StatusOK},
		{"other patient", key, "0d9e8f7a-6b5c-4d3e-2f1a-0b9c8d7e6f5a", auth.RolePatient, http.StatusForbidden},
		{"missing", "medical-images/" + testPatient.String() + "/2_none.png", "doctor-1", auth.RoleDoctor, http.StatusNotFound},
		{"malformed key", "whatever", "doctor-1", auth.RoleDoctor, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, URLPrefix+tt.key, nil)
			req = req.WithContext(auth.WithUser(req.Context(), tt.user, "", tt.role))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("*")
			c.SetParamValues(tt.key)

			err := h.Download(c)
			if tt.status == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if rec.Body.String() != "png" {
					t.Errorf("unexpected body %q", rec.Body.String())
				}
				if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "scan.png") {
					t.Errorf("unexpected Content-Disposition %q", cd)
				}
				return
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != tt.status {
				t.Errorf("expected HTTP %d, got %v", tt.status, err)
			}
		})
	}
}

func TestAttachment(t *testing.T) {
	for _, name := range []string{
		"scan.png",
		`report"; filename="evil.exe`,
		"Ștefan Țăranu.pdf",
		"Medical_Record_Maria_Popescu_2024-02-01.pdf",
	} {
		cd := Attachment(name)
		disp, params, err := mime.ParseMediaType(cd)
		if err != nil {
			t.Errorf("Attachment(%q) = %q does not parse: %v", name, cd, err)
			continue
		}
		if disp != "attachment" || params["filename"] != name {
			t.Errorf("Attachment(%q) = %q parsed as %s %q", name, cd, disp, params["filename"])
		}
	}
}
