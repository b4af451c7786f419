package clinical

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidLabStatus = errors.New("lab status must be normal, abnormal or critical")
)

// Default statuses for new records.
const (
	MedicationActive    = "active"
	VaccinationComplete = "completed"
)

type Consultation struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DoctorName string    `db:"doctor_name" json:"doctor_name"`
	Diagnosis  string    `db:"diagnosis" json:"diagnosis"`
	Notes      string    `db:"notes" json:"notes"`
	ImageURLs  []string  `db:"image_urls" json:"image_urls"`
	Date       time.Time `db:"consultation_date" json:"date"`
}

type Medication struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ConsultationID *uuid.UUID `db:"consultation_id" json:"consultation_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	Dose           string     `db:"dose" json:"dose"`
	Frequency      string     `db:"frequency" json:"frequency"`
	DurationDays   int        `db:"duration_days" json:"duration_days"`
	PrescribedDate time.Time  `db:"prescribed_date" json:"prescribed_date"`
	PrescribedBy   string     `db:"prescribed_by" json:"prescribed_by"`
	Status         string     `db:"status" json:"status"`
}

// ActiveOn reports whether the course of treatment covers day, including the
// last day of the course. PrescribedDate is a calendar date: its own year,
// month and day are used, placed at midnight in day's location.
func (m *Medication) ActiveOn(day time.Time) bool {
	y, mo, d := m.PrescribedDate.Date()
	start := time.Date(y, mo, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, m.DurationDays)
	today := midnight(day)
	return !today.Before(start) && !today.After(end)
}

func midnight(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

type Vaccination struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ConsultationID *uuid.UUID `db:"consultation_id" json:"consultation_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	Date           time.Time  `db:"administered_date" json:"date"`
	Status         string     `db:"status" json:"status"`
	DoctorID       *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
}

type LabResult struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Name      string    `db:"name" json:"name"`
	Value     string    `db:"value" json:"value"`
	Date      time.Time `db:"result_date" json:"date"`
	Status    string    `db:"status" json:"status"`
}

type MedicalImage struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ConsultationID *uuid.UUID `db:"consultation_id" json:"consultation_id,omitempty"`
	Type           string     `db:"image_type" json:"type"`
	Notes          string     `db:"notes" json:"notes"`
	ImageURL       string     `db:"image_url" json:"image_url"`
	Date           time.Time  `db:"image_date" json:"date"`
}

type MedicationTemplate struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Dose         string    `db:"dose" json:"dose"`
	Frequency    string    `db:"frequency" json:"frequency"`
	DurationDays int       `db:"duration_days" json:"duration_days"`
}

type VaccinationTemplate struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// -- Inputs --

type MedicationInput struct {
	Name         string `json:"name"`
	Dose         string `json:"dose"`
	Frequency    string `json:"frequency"`
	DurationDays int    `json:"duration_days"`
}

type VaccinationInput struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ImageInput struct {
	Type     string `json:"type"`
	Notes    string `json:"notes"`
	ImageURL string `json:"image_url"`
}

// ConsultationInput is everything a doctor records in one visit.
type ConsultationInput struct {
	PatientID   uuid.UUID         `json:"-"`
	Diagnosis   string            `json:"diagnosis"`
	Notes       string            `json:"notes"`
	ImageURLs   []string          `json:"image_urls"`
	Medications []MedicationInput `json:"medications"`
	Vaccination *VaccinationInput `json:"vaccination,omitempty"`
	Images      []ImageInput      `json:"images"`
}

// Doctor identifies the author of a consultation.
type Doctor struct {
	ID   uuid.UUID
	Name string
}

// SavedConsultation is the result of SaveConsultation.
type SavedConsultation struct {
	Consultation *Consultation   `json:"consultation"`
	Medications  []*Medication   `json:"medications"`
	Vaccination  *Vaccination    `json:"vaccination,omitempty"`
	Images       []*MedicalImage `json:"images"`
}

type LabResultInput struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Date   string `json:"date"`
	Status string `json:"status"`
}
