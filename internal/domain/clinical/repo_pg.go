package clinical

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medportal/portal/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// -- Inserts --

func (r *repoPG) CreateConsultation(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	if c.ImageURLs == nil {
		c.ImageURLs = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultations (id, patient_id, doctor_id, doctor_name, diagnosis, notes, image_urls, consultation_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.PatientID, c.DoctorID, c.DoctorName, c.Diagnosis, c.Notes, c.ImageURLs, c.Date)
	return err
}

func (r *repoPG) CreateMedication(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medications (id, patient_id, consultation_id, name, dose, frequency, duration_days, prescribed_date, prescribed_by, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.PatientID, m.ConsultationID, m.Name, m.Dose, m.Frequency, m.DurationDays, m.PrescribedDate, m.PrescribedBy, m.Status)
	return err
}

func (r *repoPG) CreateVaccination(ctx context.Context, v *Vaccination) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vaccinations (id, patient_id, consultation_id, name, administered_date, status, doctor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.PatientID, v.ConsultationID, v.Name, v.Date, v.Status, v.DoctorID)
	return err
}

func (r *repoPG) CreateMedicalImage(ctx context.Context, img *MedicalImage) error {
	img.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_images (id, patient_id, consultation_id, image_type, notes, image_url, image_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		img.ID, img.PatientID, img.ConsultationID, img.Type, img.Notes, img.ImageURL, img.Date)
	return err
}

func (r *repoPG) CreateLabResult(ctx context.Context, l *LabResult) error {
	l.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_results (id, patient_id, name, value, result_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.PatientID, l.Name, l.Value, l.Date, l.Status)
	return err
}

// -- Lists --

func (r *repoPG) ListConsultations(ctx context.Context, patientID uuid.UUID) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, doctor_id, doctor_name, diagnosis, notes, image_urls, consultation_date
		FROM consultations WHERE patient_id = $1
		ORDER BY consultation_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*Consultation, error) {
		var c Consultation
		err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.DoctorName, &c.Diagnosis, &c.Notes, &c.ImageURLs, &c.Date)
		return &c, err
	})
}

func (r *repoPG) ListMedications(ctx context.Context, patientID uuid.UUID) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, consultation_id, name, dose, frequency, duration_days, prescribed_date, prescribed_by, status
		FROM medications WHERE patient_id = $1
		ORDER BY prescribed_date DESC, name`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*Medication, error) {
		var m Medication
		err := row.Scan(&m.ID, &m.PatientID, &m.ConsultationID, &m.Name, &m.Dose, &m.Frequency,
			&m.DurationDays, &m.PrescribedDate, &m.PrescribedBy, &m.Status)
		return &m, err
	})
}

func (r *repoPG) ListVaccinations(ctx context.Context, patientID uuid.UUID) ([]*Vaccination, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, consultation_id, name, administered_date, status, doctor_id
		FROM vaccinations WHERE patient_id = $1
		ORDER BY administered_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*Vaccination, error) {
		var v Vaccination
		err := row.Scan(&v.ID, &v.PatientID, &v.ConsultationID, &v.Name, &v.Date, &v.Status, &v.DoctorID)
		return &v, err
	})
}

func (r *repoPG) ListLabResults(ctx context.Context, patientID uuid.UUID) ([]*LabResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, name, value, result_date, status
		FROM lab_results WHERE patient_id = $1
		ORDER BY result_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*LabResult, error) {
		var l LabResult
		err := row.Scan(&l.ID, &l.PatientID, &l.Name, &l.Value, &l.Date, &l.Status)
		return &l, err
	})
}

func (r *repoPG) ListMedicalImages(ctx context.Context, patientID uuid.UUID) ([]*MedicalImage, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, consultation_id, image_type, notes, image_url, image_date
		FROM medical_images WHERE patient_id = $1
		ORDER BY image_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*MedicalImage, error) {
		var img MedicalImage
		err := row.Scan(&img.ID, &img.PatientID, &img.ConsultationID, &img.Type, &img.Notes, &img.ImageURL, &img.Date)
		return &img, err
	})
}

func (r *repoPG) ListMedicationTemplates(ctx context.Context) ([]*MedicationTemplate, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, dose, frequency, duration_days FROM medication_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*MedicationTemplate, error) {
		var t MedicationTemplate
		err := row.Scan(&t.ID, &t.Name, &t.Dose, &t.Frequency, &t.DurationDays)
		return &t, err
	})
}

func (r *repoPG) ListVaccinationTemplates(ctx context.Context) ([]*VaccinationTemplate, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM vaccination_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*VaccinationTemplate, error) {
		var t VaccinationTemplate
		err := row.Scan(&t.ID, &t.Name)
		return &t, err
	})
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
