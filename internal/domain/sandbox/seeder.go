// Package sandbox fills a development database with reproducible demo
// doctors, patients and visit history.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/domain/account"
	"github.com/medportal/portal/internal/domain/clinical"
	"github.com/medportal/portal/internal/platform/auth"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	Doctors          int
	Patients         int
	VisitsPerPatient int
	LabsPerPatient   int
	Password         string
	Seed             int64
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Doctors:          3,
		Patients:         10,
		VisitsPerPatient: 2,
		LabsPerPatient:   2,
		Password:         "portal-demo",
		Seed:             1,
	}
}

// SeedResult summarizes what a run created.
type SeedResult struct {
	Doctors       int           `json:"doctors"`
	Patients      int           `json:"patients"`
	Consultations int           `json:"consultations"`
	Medications   int           `json:"medications"`
	Vaccinations  int           `json:"vaccinations"`
	LabResults    int           `json:"lab_results"`
	Duration      time.Duration `json:"duration"`
}

type AccountCreator interface {
	Create(ctx context.Context, in account.CreateInput) (*account.Account, error)
}

type ClinicalWriter interface {
	SaveConsultation(ctx context.Context, doctor clinical.Doctor, in clinical.ConsultationInput) (*clinical.SavedConsultation, error)
	AddLabResult(ctx context.Context, patientID uuid.UUID, in clinical.LabResultInput) (*clinical.LabResult, error)
}

// -- Pools --

type visitDef struct {
	Diagnosis   string
	Medications []clinical.MedicationInput
	Vaccine     string
	Image       string
}

type labDef struct {
	Name string
	Unit string
	Low  float64
	High float64
}

var (
	firstNamesMale   = []string{"Andrei", "Mihai", "Alexandru", "Ion", "Stefan", "Radu", "Cristian", "Vlad", "Bogdan", "Gabriel"}
	firstNamesFemale = []string{"Maria", "Elena", "Ioana", "Ana", "Andreea", "Cristina", "Alexandra", "Diana", "Mihaela", "Raluca"}
	lastNames        = []string{"Popescu", "Ionescu", "Popa", "Dumitru", "Stan", "Stoica", "Gheorghe", "Matei", "Ciobanu", "Rusu", "Munteanu", "Marin"}
	specializations  = []string{"Family Medicine", "Internal Medicine", "Pediatrics", "Cardiology", "Pulmonology"}
	bloodTypes       = []string{"0+", "0-", "A+", "A-", "B+", "B-", "AB+", "AB-"}

	visits = []visitDef{
		{"Acute bronchitis", []clinical.MedicationInput{{Name: "Amoxicillin", Dose: "500mg", Frequency: "3x/day", DurationDays: 7}}, "", "X-Ray"},
		{"Essential hypertension", []clinical.MedicationInput{{Name: "Lisinopril", Dose: "10mg", Frequency: "1x/day", DurationDays: 30}}, "", ""},
		{"Type 2 diabetes follow-up", []clinical.MedicationInput{{Name: "Metformin", Dose: "850mg", Frequency: "2x/day", DurationDays: 90}}, "", ""},
		{"Seasonal influenza", []clinical.MedicationInput{{Name: "Paracetamol", Dose: "1g", Frequency: "as needed", DurationDays: 5}}, "", ""},
		{"Annual checkup", nil, "Influenza", ""},
		{"Ankle sprain", []clinical.MedicationInput{{Name: "Ibuprofen", Dose: "400mg", Frequency: "3x/day", DurationDays: 5}}, "Tetanus", "X-Ray"},
		{"Migraine", []clinical.MedicationInput{{Name: "Sumatriptan", Dose: "50mg", Frequency: "as needed", DurationDays: 10}}, "", "MRI"},
	}

	labs = []labDef{
		{"Glucose", "mg/dL", 70, 100},
		{"Hemoglobin", "g/dL", 12, 17},
		{"Cholesterol", "mg/dL", 120, 200},
		{"Creatinine", "mg/dL", 0.6, 1.2},
		{"Potassium", "mmol/L", 3.5, 5.1},
	}
)

// DataGenerator produces deterministic demo records for a given seed.
type DataGenerator struct {
	rng *rand.Rand
	seq int
}

func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) next() int {
	g.seq++
	return g.seq
}

func (g *DataGenerator) emailFor(kind, last string, n int) string {
	return fmt.Sprintf("%s.%s.%d@demo.medportal.test", kind, strings.ToLower(last), n)
}

func (g *DataGenerator) Doctor(password string) account.CreateInput {
	n := g.next()
	first, last := g.pick(firstNamesFemale), g.pick(lastNames)
	if g.rng.Intn(2) == 0 {
		first = g.pick(firstNamesMale)
	}
	return account.CreateInput{
		Email:    g.emailFor("dr", last, n),
		Password: password,
		Role:     auth.RoleDoctor,
		FullName: "Dr. " + first + " " + last,
		Profile:  account.Profile{Specialization: g.pick(specializations)},
	}
}

// Patient returns a patient with a structurally valid CNP derived from the
// generated sex and birth date.
func (g *DataGenerator) Patient(password string) account.CreateInput {
	n := g.next()
	male := g.rng.Intn(2) == 0
	first, gender, sexDigit := g.pick(firstNamesFemale), "F", 2
	if male {
		first, gender, sexDigit = g.pick(firstNamesMale), "M", 1
	}
	last := g.pick(lastNames)

	dob := time.Date(1940+g.rng.Intn(60), time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28), 0, 0, 0, 0, time.UTC)
	cnp := fmt.Sprintf("%d%s%06d", sexDigit, dob.Format("060102"), n)

	return account.CreateInput{
		Email:    g.emailFor("patient", last, n),
		Password: password,
		Role:     auth.RolePatient,
		FullName: first + " " + last,
		Profile: account.Profile{
			CNP:         cnp,
			DateOfBirth: &dob,
			Gender:      gender,
			BloodType:   g.pick(bloodTypes),
		},
	}
}

func (g *DataGenerator) Consultation(patientID uuid.UUID) clinical.ConsultationInput {
	v := visits[g.rng.Intn(len(visits))]
	in := clinical.ConsultationInput{
		PatientID:   patientID,
		Diagnosis:   v.Diagnosis,
		Notes:       "Demo visit.",
		Medications: v.Medications,
	}
	if v.Vaccine != "" {
		in.Vaccination = &clinical.VaccinationInput{Name: v.Vaccine}
	}
	if v.Image != "" {
		in.Images = []clinical.ImageInput{{Type: v.Image, Notes: "Demo study"}}
	}
	return in
}

// LabResult draws a value around the reference range and classifies it.
func (g *DataGenerator) LabResult() clinical.LabResultInput {
	l := labs[g.rng.Intn(len(labs))]
	span := l.High - l.Low
	value := l.Low - span*0.3 + g.rng.Float64()*span*1.6

	status := "normal"
	switch {
	case value < l.Low-span*0.25 || value > l.High+span*0.25:
		status = "critical"
	case value < l.Low || value > l.High:
		status = "abnormal"
	}
	return clinical.LabResultInput{
		Name:   l.Name,
		Value:  fmt.Sprintf("%.1f %s", value, l.Unit),
		Status: status,
	}
}

// Seeder writes generated data through the domain services so every record
// passes the same validation as user input.
type Seeder struct {
	cfg      SeedConfig
	gen      *DataGenerator
	accounts AccountCreator
	clinical ClinicalWriter
	logger   zerolog.Logger
}

func NewSeeder(cfg SeedConfig, accounts AccountCreator, clin ClinicalWriter, logger zerolog.Logger) *Seeder {
	return &Seeder{
		cfg:      cfg,
		gen:      NewDataGenerator(cfg.Seed),
		accounts: accounts,
		clinical: clin,
		logger:   logger,
	}
}

func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	if s.cfg.Doctors < 1 && s.cfg.Patients > 0 && s.cfg.VisitsPerPatient > 0 {
		return nil, fmt.Errorf("visits need at least one doctor")
	}
	start := time.Now()
	res := &SeedResult{}

	doctors := make([]clinical.Doctor, 0, s.cfg.Doctors)
	for i := 0; i < s.cfg.Doctors; i++ {
		a, err := s.accounts.Create(ctx, s.gen.Doctor(s.cfg.Password))
		if err != nil {
			return res, fmt.Errorf("create doctor %d: %w", i+1, err)
		}
		doctors = append(doctors, clinical.Doctor{ID: a.ID, Name: a.FullName})
		res.Doctors++
	}

	for i := 0; i < s.cfg.Patients; i++ {
		p, err := s.accounts.Create(ctx, s.gen.Patient(s.cfg.Password))
		if err != nil {
			return res, fmt.Errorf("create patient %d: %w", i+1, err)
		}
		res.Patients++

		for v := 0; v < s.cfg.VisitsPerPatient; v++ {
			doc := doctors[s.gen.rng.Intn(len(doctors))]
			saved, err := s.clinical.SaveConsultation(ctx, doc, s.gen.Consultation(p.ID))
			if err != nil {
				return res, fmt.Errorf("save consultation for %s: %w", p.Email, err)
			}
			res.Consultations++
			res.Medications += len(saved.Medications)
			if saved.Vaccination != nil {
				res.Vaccinations++
			}
		}

		for l := 0; l < s.cfg.LabsPerPatient; l++ {
			if _, err := s.clinical.AddLabResult(ctx, p.ID, s.gen.LabResult()); err != nil {
				return res, fmt.Errorf("add lab result for %s: %w", p.Email, err)
			}
			res.LabResults++
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info().
		Int("doctors", res.Doctors).
		Int("patients", res.Patients).
		Int("consultations", res.Consultations).
		Int("lab_results", res.LabResults).
		Dur("elapsed", res.Duration).
		Msg("demo data seeded")
	return res, nil
}
