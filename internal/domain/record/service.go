// Package record assembles a patient's medical record from the patient and
// clinical domains and exports it as a PDF.
package record

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/domain/clinical"
	"github.com/medportal/portal/internal/domain/patient"
	"github.com/medportal/portal/internal/platform/recordpdf"
)

const dateLayout = "2006-01-02"

type PatientReader interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type ClinicalReader interface {
	ListActiveMedications(ctx context.Context, patientID uuid.UUID, today time.Time) ([]*clinical.Medication, error)
	ListVaccinations(ctx context.Context, patientID uuid.UUID) ([]*clinical.Vaccination, error)
	ListConsultations(ctx context.Context, patientID uuid.UUID) ([]*clinical.Consultation, error)
	ListLabResults(ctx context.Context, patientID uuid.UUID) ([]*clinical.LabResult, error)
	ListMedicalImages(ctx context.Context, patientID uuid.UUID) ([]*clinical.MedicalImage, error)
}

type Service struct {
	patients PatientReader
	clinical ClinicalReader
	exporter *recordpdf.Exporter
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(patients PatientReader, clin ClinicalReader, exporter *recordpdf.Exporter, logger zerolog.Logger) *Service {
	return &Service{
		patients: patients,
		clinical: clin,
		exporter: exporter,
		now:      time.Now,
		logger:   logger,
	}
}

// Assemble gathers everything printed in the record. Only medications whose
// course covers today are included.
func (s *Service) Assemble(ctx context.Context, patientID uuid.UUID) (recordpdf.Record, error) {
	var rec recordpdf.Record

	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return rec, err
	}
	rec.Patient = recordpdf.Patient{
		FullName:    p.FullName,
		NationalID:  p.CNP,
		DateOfBirth: formatDatePtr(p.DateOfBirth),
		Gender:      p.Gender,
		BloodType:   p.BloodType,
		Allergies:   p.Allergies,
	}

	meds, err := s.clinical.ListActiveMedications(ctx, patientID, s.now())
	if err != nil {
		return rec, fmt.Errorf("medications: %w", err)
	}
	for _, m := range meds {
		rec.Medications = append(rec.Medications, recordpdf.Medication{
			Name:         m.Name,
			Dose:         m.Dose,
			Frequency:    m.Frequency,
			DurationDays: m.DurationDays,
		})
	}

	vacs, err := s.clinical.ListVaccinations(ctx, patientID)
	if err != nil {
		return rec, fmt.Errorf("vaccinations: %w", err)
	}
	for _, v := range vacs {
		rec.Vaccinations = append(rec.Vaccinations, recordpdf.Vaccination{
			Name:   v.Name,
			Date:   v.Date.Format(dateLayout),
			Status: v.Status,
		})
	}

	consults, err := s.clinical.ListConsultations(ctx, patientID)
	if err != nil {
		return rec, fmt.Errorf("consultations: %w", err)
	}
	for _, c := range consults {
		rec.Consultations = append(rec.Consultations, recordpdf.Consultation{
			Diagnosis:  c.Diagnosis,
			DoctorName: c.DoctorName,
			Date:       c.Date.Format(dateLayout),
			Notes:      c.Notes,
			ImageURLs:  c.ImageURLs,
		})
	}

	labs, err := s.clinical.ListLabResults(ctx, patientID)
	if err != nil {
		return rec, fmt.Errorf("lab results: %w", err)
	}
	for _, l := range labs {
		rec.LabResults = append(rec.LabResults, recordpdf.LabResult{
			Name:   l.Name,
			Value:  l.Value,
			Date:   l.Date.Format(dateLayout),
			Status: recordpdf.LabStatus(l.Status),
		})
	}

	images, err := s.clinical.ListMedicalImages(ctx, patientID)
	if err != nil {
		return rec, fmt.Errorf("medical images: %w", err)
	}
	for _, img := range images {
		rec.MedicalImages = append(rec.MedicalImages, recordpdf.MedicalImage{
			Type:  img.Type,
			Notes: img.Notes,
			Date:  img.Date.Format(dateLayout),
		})
	}
	return rec, nil
}

// Export assembles and renders the record of patientID.
func (s *Service) Export(ctx context.Context, patientID uuid.UUID) (*recordpdf.Result, error) {
	start := time.Now()
	rec, err := s.Assemble(ctx, patientID)
	if err != nil {
		return nil, err
	}
	res, err := s.exporter.Export(rec)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("record export failed")
		return nil, fmt.Errorf("render record: %w", err)
	}
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("filename", res.Filename).
		Int("pages", res.Pages).
		Int("bytes", len(res.Data)).
		Dur("elapsed", time.Since(start)).
		Msg("medical record exported")
	return res, nil
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
