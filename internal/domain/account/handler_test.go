package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medportal/portal/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo, *Account) {
	t.Helper()
	svc, _, _ := newTestService()
	a := createAccount(t, svc, "maria@example.com", auth.RolePatient)
	return NewHandler(svc), echo.New(), a
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestHandler_Login(t *testing.T) {
	h, e, a := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"email":"maria@example.com","password":"secret-pass","role":"patient"}`), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp LoginResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Token == "" || resp.UserID != a.ID {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
}

func TestHandler_LoginErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing fields", `{"email":"maria@example.com"}`, http.StatusBadRequest},
		{"bad password", `{"email":"maria@example.com","password":"wrong-pass","role":"patient"}`, http.StatusUnauthorized},
		{"wrong role", `{"email":"maria@example.com","password":"secret-pass","role":"doctor"}`, http.StatusForbidden},
		{"invalid role", `{"email":"maria@example.com","password":"secret-pass","role":"admin"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e, _ := newTestHandler(t)
			err := h.Login(e.NewContext(jsonRequest(http.MethodPost, tt.body), httptest.NewRecorder()))
			if got := httpCode(err); got != tt.want {
				t.Errorf("expected %d, got %d (%v)", tt.want, got, err)
			}
		})
	}
}

func TestHandler_ChangePassword(t *testing.T) {
	h, e, a := newTestHandler(t)

	req := jsonRequest(http.MethodPost, `{"current_password":"secret-pass","new_password":"another-pass","confirm_password":"another-pass"}`)
	req = req.WithContext(auth.WithUser(req.Context(), a.ID.String(), a.FullName, auth.RolePatient))
	rec := httptest.NewRecorder()
	if err := h.ChangePassword(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	req = jsonRequest(http.MethodPost, `{"current_password":"another-pass","new_password":"x","confirm_password":"y"}`)
	req = req.WithContext(auth.WithUser(req.Context(), a.ID.String(), a.FullName, auth.RolePatient))
	if code := httpCode(h.ChangePassword(e.NewContext(req, httptest.NewRecorder()))); code != http.StatusBadRequest {
		t.Errorf("expected 400 for mismatch, got %d", code)
	}
}

func TestHandler_ChangePassword_Unauthenticated(t *testing.T) {
	h, e, _ := newTestHandler(t)
	err := h.ChangePassword(e.NewContext(jsonRequest(http.MethodPost, `{}`), httptest.NewRecorder()))
	if code := httpCode(err); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e, a := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithUser(req.Context(), a.ID.String(), "", auth.RolePatient))
	rec := httptest.NewRecorder()
	if err := h.Me(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must not be serialized")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithUser(req.Context(), uuid.NewString(), "", auth.RolePatient))
	if code := httpCode(h.Me(e.NewContext(req, httptest.NewRecorder()))); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}
