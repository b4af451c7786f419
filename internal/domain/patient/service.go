package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// SearchByCNP looks a patient up by national identification number.
func (s *Service) SearchByCNP(ctx context.Context, cnp string) (*Patient, error) {
	cnp = strings.TrimSpace(cnp)
	if !validCNP(cnp) {
		return nil, ErrInvalidCNP
	}
	return s.repo.GetByCNP(ctx, cnp)
}

func (s *Service) ListDoctorPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// UpdateProfile applies a doctor's edits to the patient's profile.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Patient, error) {
	if u.BloodType != nil {
		bt := strings.ToUpper(strings.TrimSpace(*u.BloodType))
		if bt != "" && !bloodTypes[bt] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBloodType, *u.BloodType)
		}
		u.BloodType = &bt
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update patient profile: %w", err)
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient profile updated")
	return p, nil
}

func validCNP(s string) bool {
	if len(s) != 13 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// cleanAllergies trims labels and drops blanks and case-insensitive
// duplicates, keeping first-seen order.
func cleanAllergies(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
