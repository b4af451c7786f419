package record

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/domain/clinical"
	"github.com/medportal/portal/internal/domain/patient"
	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/internal/platform/recordpdf"
)

type fakePatients struct {
	patients map[uuid.UUID]*patient.Patient
}

func (f *fakePatients) GetPatient(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

type fakeClinical struct {
	today   time.Time
	meds    []*clinical.Medication
	vacs    []*clinical.Vaccination
	visits  []*clinical.Consultation
	labs    []*clinical.LabResult
	images  []*clinical.MedicalImage
	failLab error
}

func (f *fakeClinical) ListActiveMedications(_ context.Context, _ uuid.UUID, today time.Time) ([]*clinical.Medication, error) {
	f.today = today
	var out []*clinical.Medication
	for _, m := range f.meds {
		if m.ActiveOn(today) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeClinical) ListVaccinations(context.Context, uuid.UUID) ([]*clinical.Vaccination, error) {
	return f.vacs, nil
}

func (f *fakeClinical) ListConsultations(context.Context, uuid.UUID) ([]*clinical.Consultation, error) {
	return f.visits, nil
}

func (f *fakeClinical) ListLabResults(context.Context, uuid.UUID) ([]*clinical.LabResult, error) {
	return f.labs, f.failLab
}

func (f *fakeClinical) ListMedicalImages(context.Context, uuid.UUID) ([]*clinical.MedicalImage, error) {
	return f.images, nil
}

var exportTime = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func newTestService() (*Service, *fakePatients, *fakeClinical, uuid.UUID) {
	id := uuid.New()
	dob := date("1985-01-01")
	pats := &fakePatients{patients: map[uuid.UUID]*patient.Patient{
		id: {ID: id, FullName: "Maria Popescu", CNP: "2850101123456", DateOfBirth: &dob, Gender: "F", BloodType: "A+", Allergies: []string{"Penicillin"}},
	}}
	clin := &fakeClinical{
		meds: []*clinical.Medication{
			{Name: "Amoxicillin", Dose: "500mg", Frequency: "3x/day", DurationDays: 7, PrescribedDate: date("2024-01-30")},
			{Name: "Old course", DurationDays: 3, PrescribedDate: date("2023-06-01")},
		},
		vacs:   []*clinical.Vaccination{{Name: "Influenza", Date: date("2023-10-10"), Status: "completed"}},
		visits: []*clinical.Consultation{{Diagnosis: "Acute bronchitis", DoctorName: "Dr. Ionescu", Date: date("2024-01-30").Add(10 * time.Hour), Notes: "Rest"}},
		labs:   []*clinical.LabResult{{Name: "Glucose", Value: "95 mg/dL", Date: date("2024-01-20"), Status: "normal"}},
		images: []*clinical.MedicalImage{{Type: "X-Ray", Notes: "chest", Date: date("2024-01-30")}},
	}
	exporter := recordpdf.NewExporter(recordpdf.WithClock(func() time.Time { return exportTime }))
	svc := NewService(pats, clin, exporter, zerolog.Nop())
	svc.now = func() time.Time { return exportTime }
	return svc, pats, clin, id
}

func TestService_Assemble(t *testing.T) {
	svc, _, clin, id := newTestService()

	rec, err := svc.Assemble(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clin.today.Equal(exportTime) {
		t.Errorf("expected active medications as of export time, got %s", clin.today)
	}

	p := rec.Patient
	if p.FullName != "Maria Popescu" || p.NationalID != "2850101123456" || p.DateOfBirth != "1985-01-01" {
		t.Errorf("unexpected patient block: %+v", p)
	}
	if len(rec.Medications) != 1 || rec.Medications[0].Name != "Amoxicillin" {
		t.Errorf("expected only the active medication, got %+v", rec.Medications)
	}
	if len(rec.Consultations) != 1 || rec.Consultations[0].Date != "2024-01-30" {
		t.Errorf("unexpected consultations: %+v", rec.Consultations)
	}
	if len(rec.LabResults) != 1 || rec.LabResults[0].Status != recordpdf.LabNormal {
		t.Errorf("unexpected lab results: %+v", rec.LabResults)
	}
	if len(rec.Vaccinations) != 1 || rec.Vaccinations[0].Date != "2023-10-10" {
		t.Errorf("unexpected vaccinations: %+v", rec.Vaccinations)
	}
	if len(rec.MedicalImages) != 1 || rec.MedicalImages[0].Type != "X-Ray" {
		t.Errorf("unexpected images: %+v", rec.MedicalImages)
	}
}

func TestService_Assemble_MissingDateOfBirth(t *testing.T) {
	svc, pats, _, id := newTestService()
	pats.patients[id].DateOfBirth = nil

	rec, err := svc.Assemble(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Patient.DateOfBirth != "" {
		t.Errorf("expected empty date of birth, got %q", rec.Patient.DateOfBirth)
	}
}

func TestService_Export(t *testing.T) {
	svc, _, _, id := newTestService()

	res, err := svc.Export(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Filename != "Medical_Record_Maria_Popescu_2024-02-01.pdf" {
		t.Errorf("unexpected filename %q", res.Filename)
	}
	if res.Pages < 1 || !bytes.HasPrefix(res.Data, []byte("%PDF-")) {
		t.Errorf("expected a PDF document, got %d pages", res.Pages)
	}
}

func TestService_Export_Errors(t *testing.T) {
	svc, _, clin, id := newTestService()

	if _, err := svc.Export(context.Background(), uuid.New()); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("expected patient.ErrNotFound, got %v", err)
	}

	boom := errors.New("connection reset")
	clin.failLab = boom
	res, err := svc.Export(context.Background(), id)
	if !errors.Is(err, boom) || res != nil {
		t.Errorf("expected wrapped read error and no result, got %v %v", res, err)
	}
}

func TestHandler_Download(t *testing.T) {
	svc, _, _, id := newTestService()
	h := NewHandler(svc)
	other := uuid.NewString()

	tests := []struct {
		name string
		path string
		user string
		role string
		want int
	}{
		{"patient downloads own record", id.String(), id.String(), auth.RolePatient, http.StatusOK},
		{"doctor downloads record", id.String(), uuid.NewString(), auth.RoleDoctor, http.StatusOK},
		{"patient cannot download other", other, id.String(), auth.RolePatient, http.StatusForbidden},
		{"unknown patient", other, uuid.NewString(), auth.RoleDoctor, http.StatusNotFound},
		{"malformed id", "abc", uuid.NewString(), auth.RoleDoctor, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			api := e.Group("/api/v1")
			api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					r := c.Request()
					c.SetRequest(r.WithContext(auth.WithUser(r.Context(), tt.user, "", tt.role)))
					return next(c)
				}
			})
			h.RegisterRoutes(api)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+tt.path+"/medical-record.pdf", nil))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want != http.StatusOK {
				return
			}
			if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
				t.Errorf("unexpected content type %q", ct)
			}
			cd := rec.Header().Get(echo.HeaderContentDisposition)
			if !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "Medical_Record_Maria_Popescu_2024-02-01.pdf") {
				t.Errorf("unexpected content disposition %q", cd)
			}
		})
	}
}
