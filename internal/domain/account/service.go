package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/internal/platform/db"
)

// dummyHash is compared against when the email is unknown so that a miss
// costs as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("medportal-dummy-password"), bcrypt.MinCost)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	tokens *auth.TokenIssuer
	cost   int
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, tokens *auth.TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, tokens: tokens, cost: bcrypt.DefaultCost, logger: logger}
}

// Login verifies the credentials and that the account holds the requested
// role, then issues a token.
func (s *Service) Login(ctx context.Context, email, password, role string) (*LoginResponse, error) {
	if role != auth.RolePatient && role != auth.RoleDoctor {
		return nil, ErrInvalidRole
	}

	a, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if a.Role != role {
		s.logger.Info().Str("account_id", a.ID.String()).Str("role", role).Msg("login with wrong role")
		return nil, fmt.Errorf("%w: not registered as %s", ErrWrongRole, role)
	}

	token, exp, err := s.tokens.Issue(a.ID.String(), a.Role, a.FullName)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResponse{Token: token, ExpiresAt: exp, UserID: a.ID, Role: a.Role, FullName: a.FullName}, nil
}

// ChangePassword replaces the password of id after verifying the current
// one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len(req.NewPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info().Str("account_id", id.String()).Msg("password changed")
	return nil
}

// Create registers an account together with its patient or doctor profile.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email %q", in.Email)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, fmt.Errorf("full name is required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	switch in.Role {
	case auth.RolePatient:
		if !ValidCNP(in.Profile.CNP) {
			return nil, fmt.Errorf("patients need a 13 digit CNP")
		}
	case auth.RoleDoctor:
	default:
		return nil, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &Account{Email: email, PasswordHash: string(hash), Role: in.Role, FullName: strings.TrimSpace(in.FullName)}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.repo.CreateProfile(ctx, a, in.Profile)
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info().Str("account_id", a.ID.String()).Str("role", a.Role).Msg("account created")
	return a, nil
}

// Me returns the account of the caller.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// ValidCNP reports whether s looks like a Romanian personal numeric code:
// exactly 13 digits.
func ValidCNP(s string) bool {
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

// ParseDate parses a YYYY-MM-DD date for CLI input. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return &t, nil
}
