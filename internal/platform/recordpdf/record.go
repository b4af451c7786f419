// Package recordpdf lays out a patient's medical record as a paginated A4
// document and renders it to PDF.
//
// Layout and rendering are separate steps. Layout walks the record sections
// in a fixed order, threading a cursor value through each section writer and
// breaking pages according to a Policy. The resulting Document is plain data
// (pages of positioned lines) and is rendered with fpdf.
package recordpdf

// LabStatus classifies a lab result value.
type LabStatus string

const (
	LabNormal   LabStatus = "normal"
	LabAbnormal LabStatus = "abnormal"
	LabCritical LabStatus = "critical"
)

// Valid reports whether s is one of the known lab statuses.
func (s LabStatus) Valid() bool {
	switch s {
	case LabNormal, LabAbnormal, LabCritical:
		return true
	}
	return false
}

// Patient holds the demographic block printed at the top of the record.
type Patient struct {
	FullName    string
	NationalID  string
	DateOfBirth string
	Gender      string
	BloodType   string
	Allergies   []string
}

type Medication struct {
	Name         string
	Dose         string
	Frequency    string
	DurationDays int
}

type Vaccination struct {
	Name   string
	Date   string
	Status string
}

type Consultation struct {
	Diagnosis  string
	DoctorName string
	Date       string
	Notes      string
	ImageURLs  []string
}

type LabResult struct {
	Name   string
	Value  string
	Date   string
	Status LabStatus
}

type MedicalImage struct {
	Type  string
	Notes string
	Date  string
}

// Record is the full input of one export. Dates are display strings that the
// caller has already formatted.
type Record struct {
	Patient       Patient
	Medications   []Medication
	Vaccinations  []Vaccination
	Consultations []Consultation
	LabResults    []LabResult
	MedicalImages []MedicalImage
}
