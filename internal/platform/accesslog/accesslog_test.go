package accesslog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/internal/platform/middleware"
	"github.com/medportal/portal/pkg/pagination"
)

type memStore struct {
	mu      sync.Mutex
	entries []*Entry
	err     error
	hadDL   bool
}

func (m *memStore) Insert(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, m.hadDL = ctx.Deadline()
	if m.err != nil {
		return m.err
	}
	e.ID = uuid.New()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Entry
	for _, e := range m.entries {
		if e.PatientID == patientID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AccessedAt.After(all[j].AccessedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func TestRecorder_RecordAccess(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, zerolog.Nop())
	pid := uuid.New()
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	err := r.RecordAccess(middleware.AuditEntry{
		UserID:     "doc-1",
		UserRoles:  []string{auth.RoleDoctor},
		PatientID:  pid.String(),
		Resource:   "medical-record.pdf",
		Action:     "read",
		Method:     http.MethodGet,
		Path:       "/api/v1/patients/" + pid.String() + "/medical-record.pdf",
		StatusCode: http.StatusOK,
		Timestamp:  at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	e := store.entries[0]
	if e.PatientID != pid || e.Status != http.StatusOK || !e.AccessedAt.Equal(at) || e.Resource != "medical-record.pdf" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !store.hadDL {
		t.Error("expected the write to carry a deadline")
	}
}

func TestRecorder_Defaults(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, zerolog.Nop())

	if err := r.RecordAccess(middleware.AuditEntry{PatientID: "not-a-uuid"}); err != nil {
		t.Fatalf("invalid patient ids should be skipped, got %v", err)
	}
	if len(store.entries) != 0 {
		t.Fatal("expected nothing stored")
	}

	if err := r.RecordAccess(middleware.AuditEntry{PatientID: uuid.NewString(), Action: "read"}); err != nil {
		t.Fatal(err)
	}
	e := store.entries[0]
	if e.AccessedAt.IsZero() || e.UserRoles == nil {
		t.Errorf("expected timestamp and roles defaults, got %+v", e)
	}
}

func TestRecorder_StoreError(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	r := NewRecorder(store, zerolog.Nop())
	if err := r.RecordAccess(middleware.AuditEntry{PatientID: uuid.NewString()}); err == nil {
		t.Error("expected store error to be returned")
	}
}

func TestAuditMiddleware_PersistsThroughRecorder(t *testing.T) {
	store := &memStore{}
	e := echo.New()
	e.Use(middleware.Audit(zerolog.Nop(), NewRecorder(store, zerolog.Nop())))
	e.GET("/api/v1/patients/:id/consultations", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	pid := uuid.New()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+pid.String()+"/consultations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if len(store.entries) != 1 || store.entries[0].PatientID != pid || store.entries[0].Action != "read" {
		t.Errorf("unexpected entries: %+v", store.entries)
	}
}

func TestHandler_List(t *testing.T) {
	store := &memStore{}
	pid := uuid.New()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		store.entries = append(store.entries, &Entry{ID: uuid.New(), PatientID: pid, Action: "read", AccessedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	h := NewHandler(store)

	tests := []struct {
		name string
		user string
		role string
		want int
	}{
		{"patient reads own trail", pid.String(), auth.RolePatient, http.StatusOK},
		{"admin reads trail", "admin-1", auth.RoleAdmin, http.StatusOK},
		{"doctor cannot read trail", uuid.NewString(), auth.RoleDoctor, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			api := e.Group("/api/v1")
			api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					r := c.Request()
					c.SetRequest(r.WithContext(auth.WithUser(r.Context(), tt.user, "", tt.role)))
					return next(c)
				}
			})
			h.RegisterRoutes(api)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+pid.String()+"/access-log?limit=2", nil))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want != http.StatusOK {
				return
			}
			var resp struct {
				pagination.Response
				Data []Entry `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Total != 3 || !resp.HasMore || len(resp.Data) != 2 {
				t.Errorf("unexpected page: %s", rec.Body.String())
			}
			if !resp.Data[0].AccessedAt.After(resp.Data[1].AccessedAt) {
				t.Error("expected newest entries first")
			}
		})
	}
}
