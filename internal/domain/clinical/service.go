package clinical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/platform/cache"
	"github.com/medportal/portal/internal/platform/db"
	"github.com/medportal/portal/internal/platform/websocket"
)

const (
	medicationTemplatesKey  = "templates:medications"
	vaccinationTemplatesKey = "templates:vaccinations"
)

type Service struct {
	repo        Repository
	tx          db.TxRunner
	events      websocket.EventPublisher
	cache       cache.Cache
	templateTTL time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

type Option func(*Service)

// WithCache caches template lists for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.templateTTL = ttl
	}
}

// WithEvents publishes record changes to subscribers.
func WithEvents(p websocket.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(repo Repository, tx db.TxRunner, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		tx:     tx,
		cache:  cache.Nop{},
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -- Reads --

// ListActiveMedications returns the medications whose course covers today.
func (s *Service) ListActiveMedications(ctx context.Context, patientID uuid.UUID, today time.Time) ([]*Medication, error) {
	all, err := s.repo.ListMedications(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	active := make([]*Medication, 0, len(all))
	for _, m := range all {
		if m.ActiveOn(today) {
			active = append(active, m)
		}
	}
	return active, nil
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID) ([]*Medication, error) {
	return s.repo.ListMedications(ctx, patientID)
}

func (s *Service) ListVaccinations(ctx context.Context, patientID uuid.UUID) ([]*Vaccination, error) {
	return s.repo.ListVaccinations(ctx, patientID)
}

// ListConsultations returns consultations newest first.
func (s *Service) ListConsultations(ctx context.Context, patientID uuid.UUID) ([]*Consultation, error) {
	return s.repo.ListConsultations(ctx, patientID)
}

func (s *Service) ListLabResults(ctx context.Context, patientID uuid.UUID) ([]*LabResult, error) {
	return s.repo.ListLabResults(ctx, patientID)
}

func (s *Service) ListMedicalImages(ctx context.Context, patientID uuid.UUID) ([]*MedicalImage, error) {
	return s.repo.ListMedicalImages(ctx, patientID)
}

func (s *Service) ListMedicationTemplates(ctx context.Context) ([]*MedicationTemplate, error) {
	return cached(ctx, s, medicationTemplatesKey, s.repo.ListMedicationTemplates)
}

func (s *Service) ListVaccinationTemplates(ctx context.Context) ([]*VaccinationTemplate, error) {
	return cached(ctx, s, vaccinationTemplatesKey, s.repo.ListVaccinationTemplates)
}

// cached serves key from the cache, loading and storing it on a miss. Cache
// failures are logged and fall through to load.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) ([]*T, error)) ([]*T, error) {
	var items []*T
	hit, err := s.cache.Get(ctx, key, &items)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("template cache read failed")
	}
	if hit {
		return items, nil
	}

	items, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*T{}
	}
	if err := s.cache.Set(ctx, key, items, s.templateTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("template cache write failed")
	}
	return items, nil
}

// -- Writes --

// SaveConsultation records a visit: the consultation, its prescriptions, an
// optional vaccination and any medical images, all in one transaction.
// Prescriptions start today with status active. The vaccination is skipped
// when its name is blank. Subscribers of the patient's topic are notified
// after commit.
func (s *Service) SaveConsultation(ctx context.Context, doctor Doctor, in ConsultationInput) (*SavedConsultation, error) {
	if err := validateConsultation(in); err != nil {
		return nil, err
	}

	now := s.now()
	today := midnight(now)
	out := &SavedConsultation{
		Consultation: &Consultation{
			PatientID:  in.PatientID,
			DoctorID:   doctor.ID,
			DoctorName: doctor.Name,
			Diagnosis:  strings.TrimSpace(in.Diagnosis),
			Notes:      in.Notes,
			ImageURLs:  in.ImageURLs,
			Date:       now,
		},
		Medications: []*Medication{},
		Images:      []*MedicalImage{},
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateConsultation(ctx, out.Consultation); err != nil {
			return fmt.Errorf("create consultation: %w", err)
		}
		cid := out.Consultation.ID

		for _, mi := range in.Medications {
			m := &Medication{
				PatientID:      in.PatientID,
				ConsultationID: &cid,
				Name:           strings.TrimSpace(mi.Name),
				Dose:           mi.Dose,
				Frequency:      mi.Frequency,
				DurationDays:   mi.DurationDays,
				PrescribedDate: today,
				PrescribedBy:   doctor.Name,
				Status:         MedicationActive,
			}
			if err := s.repo.CreateMedication(ctx, m); err != nil {
				return fmt.Errorf("create medication %q: %w", m.Name, err)
			}
			out.Medications = append(out.Medications, m)
		}

		if in.Vaccination != nil && strings.TrimSpace(in.Vaccination.Name) != "" {
			status := in.Vaccination.Status
			if status == "" {
				status = VaccinationComplete
			}
			doctorID := doctor.ID
			v := &Vaccination{
				PatientID:      in.PatientID,
				ConsultationID: &cid,
				Name:           strings.TrimSpace(in.Vaccination.Name),
				Date:           today,
				Status:         status,
				DoctorID:       &doctorID,
			}
			if err := s.repo.CreateVaccination(ctx, v); err != nil {
				return fmt.Errorf("create vaccination: %w", err)
			}
			out.Vaccination = v
		}

		for _, ii := range in.Images {
			img := &MedicalImage{
				PatientID:      in.PatientID,
				ConsultationID: &cid,
				Type:           strings.TrimSpace(ii.Type),
				Notes:          ii.Notes,
				ImageURL:       ii.ImageURL,
				Date:           today,
			}
			if err := s.repo.CreateMedicalImage(ctx, img); err != nil {
				return fmt.Errorf("create medical image: %w", err)
			}
			out.Images = append(out.Images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("consultation_id", out.Consultation.ID.String()).
		Str("patient_id", in.PatientID.String()).
		Str("doctor_id", doctor.ID.String()).
		Int("medications", len(out.Medications)).
		Int("images", len(out.Images)).
		Msg("consultation saved")
	s.publish(ctx, websocket.EventConsultationCreated, in.PatientID, out.Consultation)
	return out, nil
}

func validateConsultation(in ConsultationInput) error {
	if in.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(in.Diagnosis) == "" {
		return fmt.Errorf("diagnosis is required")
	}
	for i, m := range in.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("medication %d: name is required", i+1)
		}
		if m.DurationDays < 0 {
			return fmt.Errorf("medication %q: duration must not be negative", m.Name)
		}
	}
	for i, img := range in.Images {
		if strings.TrimSpace(img.Type) == "" {
			return fmt.Errorf("image %d: type is required", i+1)
		}
	}
	return nil
}

// AddLabResult records a lab result. Date is YYYY-MM-DD and defaults to
// today.
func (s *Service) AddLabResult(ctx context.Context, patientID uuid.UUID, in LabResultInput) (*LabResult, error) {
	status := strings.ToLower(strings.TrimSpace(in.Status))
	switch status {
	case "normal", "abnormal", "critical":
	default:
		return nil, ErrInvalidLabStatus
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Value) == "" {
		return nil, fmt.Errorf("name and value are required")
	}

	date := midnight(s.now())
	if in.Date != "" {
		d, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			return nil, fmt.Errorf("date must be YYYY-MM-DD")
		}
		date = d
	}

	l := &LabResult{PatientID: patientID, Name: strings.TrimSpace(in.Name), Value: strings.TrimSpace(in.Value), Date: date, Status: status}
	if err := s.repo.CreateLabResult(ctx, l); err != nil {
		return nil, fmt.Errorf("create lab result: %w", err)
	}
	return l, nil
}

func (s *Service) publish(ctx context.Context, eventType string, patientID uuid.UUID, data interface{}) {
	if s.events == nil {
		return
	}
	ev, err := websocket.NewPatientEvent(eventType, patientID, data)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
