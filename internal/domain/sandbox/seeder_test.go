package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/domain/account"
	"github.com/medportal/portal/internal/domain/clinical"
	"github.com/medportal/portal/internal/platform/auth"
)

type fakeAccounts struct {
	created []account.CreateInput
	emails  map[string]bool
}

func (f *fakeAccounts) Create(_ context.Context, in account.CreateInput) (*account.Account, error) {
	if f.emails == nil {
		f.emails = map[string]bool{}
	}
	if f.emails[in.Email] {
		return nil, account.ErrEmailTaken
	}
	f.emails[in.Email] = true
	f.created = append(f.created, in)
	return &account.Account{ID: uuid.New(), Email: in.Email, Role: in.Role, FullName: in.FullName}, nil
}

type fakeClinical struct {
	visits []clinical.ConsultationInput
	labs   []clinical.LabResultInput
	fail   error
}

func (f *fakeClinical) SaveConsultation(_ context.Context, doc clinical.Doctor, in clinical.ConsultationInput) (*clinical.SavedConsultation, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.visits = append(f.visits, in)
	out := &clinical.SavedConsultation{Consultation: &clinical.Consultation{ID: uuid.New(), DoctorID: doc.ID}}
	for _, m := range in.Medications {
		out.Medications = append(out.Medications, &clinical.Medication{Name: m.Name})
	}
	if in.Vaccination != nil {
		out.Vaccination = &clinical.Vaccination{Name: in.Vaccination.Name}
	}
	return out, nil
}

func (f *fakeClinical) AddLabResult(_ context.Context, _ uuid.UUID, in clinical.LabResultInput) (*clinical.LabResult, error) {
	f.labs = append(f.labs, in)
	return &clinical.LabResult{Name: in.Name, Status: in.Status}, nil
}

func TestDataGenerator_Deterministic(t *testing.T) {
	a, b := NewDataGenerator(42), NewDataGenerator(42)
	for i := 0; i < 5; i++ {
		pa, pb := a.Patient("pw"), b.Patient("pw")
		if pa.Email != pb.Email || pa.Profile.CNP != pb.Profile.CNP || pa.FullName != pb.FullName {
			t.Fatalf("same seed produced different patients: %+v vs %+v", pa, pb)
		}
	}
}

func TestDataGenerator_Patient(t *testing.T) {
	g := NewDataGenerator(7)
	for i := 0; i < 50; i++ {
		p := g.Patient("secret123")
		if p.Role != auth.RolePatient || !account.ValidCNP(p.Profile.CNP) {
			t.Fatalf("invalid patient: %+v", p)
		}
		wantSex := "1"
		if p.Profile.Gender == "F" {
			wantSex = "2"
		}
		if !strings.HasPrefix(p.Profile.CNP, wantSex) {
			t.Errorf("CNP %s does not match gender %s", p.Profile.CNP, p.Profile.Gender)
		}
		if p.Profile.CNP[1:7] != p.Profile.DateOfBirth.Format("060102") {
			t.Errorf("CNP %s does not encode birth date %s", p.Profile.CNP, p.Profile.DateOfBirth)
		}
	}
}

func TestDataGenerator_LabResultStatus(t *testing.T) {
	g := NewDataGenerator(3)
	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		l := g.LabResult()
		switch l.Status {
		case "normal", "abnormal", "critical":
			seen[l.Status] = true
		default:
			t.Fatalf("unexpected status %q", l.Status)
		}
	}
	if !seen["normal"] || !seen["abnormal"] {
		t.Errorf("expected a spread of statuses, got %v", seen)
	}
}

func TestSeeder_Run(t *testing.T) {
	accounts := &fakeAccounts{}
	clin := &fakeClinical{}
	cfg := SeedConfig{Doctors: 2, Patients: 4, VisitsPerPatient: 3, LabsPerPatient: 1, Password: "portal-demo", Seed: 9}

	res, err := NewSeeder(cfg, accounts, clin, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Doctors != 2 || res.Patients != 4 || res.Consultations != 12 || res.LabResults != 4 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(accounts.created) != 6 || len(clin.visits) != 12 {
		t.Errorf("unexpected writes: %d accounts, %d visits", len(accounts.created), len(clin.visits))
	}
	for _, v := range clin.visits {
		if v.PatientID == uuid.Nil || v.Diagnosis == "" {
			t.Errorf("incomplete visit: %+v", v)
		}
	}
}

func TestSeeder_Errors(t *testing.T) {
	_, err := NewSeeder(SeedConfig{Patients: 1, VisitsPerPatient: 1}, &fakeAccounts{}, &fakeClinical{}, zerolog.Nop()).Run(context.Background())
	if err == nil {
		t.Error("expected error without doctors")
	}

	boom := errors.New("db down")
	res, err := NewSeeder(DefaultSeedConfig(), &fakeAccounts{}, &fakeClinical{fail: boom}, zerolog.Nop()).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if res.Patients != 1 || res.Consultations != 0 {
		t.Errorf("expected partial counts, got %+v", res)
	}
}
