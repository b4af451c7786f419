// Package accesslog persists who accessed which patient's record. The audit
// middleware feeds it through Recorder; patients read their own trail back.
package accesslog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/platform/middleware"
)

// Entry is one recorded access.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	UserID     string    `json:"user_id"`
	UserRoles  []string  `json:"user_roles"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	RequestID  string    `json:"request_id"`
	IPAddress  string    `json:"ip_address"`
	AccessedAt time.Time `json:"accessed_at"`
}

type Store interface {
	Insert(ctx context.Context, e *Entry) error
	// ListByPatient returns entries newest first and the total count.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error)
}

const defaultWriteTimeout = 2 * time.Second

// Recorder implements middleware.AuditRecorder on top of a Store.
type Recorder struct {
	store   Store
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, timeout: defaultWriteTimeout, logger: logger}
}

// RecordAccess stores entry. Entries whose patient id is not a UUID are
// dropped with a warning.
func (r *Recorder) RecordAccess(entry middleware.AuditEntry) error {
	patientID, err := uuid.Parse(entry.PatientID)
	if err != nil {
		r.logger.Warn().Str("patient_id", entry.PatientID).Msg("skipping access entry with invalid patient id")
		return nil
	}

	e := &Entry{
		PatientID:  patientID,
		UserID:     entry.UserID,
		UserRoles:  entry.UserRoles,
		Resource:   entry.Resource,
		Action:     entry.Action,
		Method:     entry.Method,
		Path:       entry.Path,
		Status:     entry.StatusCode,
		RequestID:  entry.RequestID,
		IPAddress:  entry.IPAddress,
		AccessedAt: entry.Timestamp,
	}
	if e.AccessedAt.IsZero() {
		e.AccessedAt = time.Now().UTC()
	}
	if e.UserRoles == nil {
		e.UserRoles = []string{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Insert(ctx, e); err != nil {
		return fmt.Errorf("access log: %w", err)
	}
	return nil
}
