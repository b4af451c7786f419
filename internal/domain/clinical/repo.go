package clinical

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateConsultation(ctx context.Context, c *Consultation) error
	CreateMedication(ctx context.Context, m *Medication) error
	CreateVaccination(ctx context.Context, v *Vaccination) error
	CreateMedicalImage(ctx context.Context, img *MedicalImage) error
	CreateLabResult(ctx context.Context, l *LabResult) error

	// ListConsultations returns the patient's consultations, newest first.
	ListConsultations(ctx context.Context, patientID uuid.UUID) ([]*Consultation, error)
	ListMedications(ctx context.Context, patientID uuid.UUID) ([]*Medication, error)
	ListVaccinations(ctx context.Context, patientID uuid.UUID) ([]*Vaccination, error)
	ListLabResults(ctx context.Context, patientID uuid.UUID) ([]*LabResult, error)
	ListMedicalImages(ctx context.Context, patientID uuid.UUID) ([]*MedicalImage, error)

	ListMedicationTemplates(ctx context.Context) ([]*MedicationTemplate, error)
	ListVaccinationTemplates(ctx context.Context) ([]*VaccinationTemplate, error)
}
