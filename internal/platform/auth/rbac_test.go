package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(req *http.Request, userID string, roles ...string) *http.Request {
	return req.WithContext(WithUser(req.Context(), userID, "", roles...))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		require []string
		wantErr bool
	}{
		{"doctor allowed", []string{RoleDoctor}, []string{RoleDoctor}, false},
		{"one of many", []string{RolePatient}, []string{RoleDoctor, RolePatient}, false},
		{"patient denied", []string{RolePatient}, []string{RoleDoctor}, true},
		{"admin bypass", []string{RoleAdmin}, []string{RoleDoctor}, false},
		{"anonymous denied", nil, []string{RolePatient}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := contextWithRoles(httptest.NewRequest(http.MethodGet, "/", nil), "u1", tt.roles...)
			c := e.NewContext(req, httptest.NewRecorder())

			err := RequireRole(tt.require...)(okHandler)(c)
			if tt.wantErr {
				expectStatus(t, err, http.StatusForbidden)
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestRequireSelfOrRole(t *testing.T) {
	const self = "0f8fad5b-d9cb-469f-a165-70867728950e"
	tests := []struct {
		name    string
		userID  string
		roles   []string
		param   string
		wantErr bool
	}{
		{"own record", self, []string{RolePatient}, self, false},
		{"own record upper case", self, []string{RolePatient}, "0F8FAD5B-D9CB-469F-A165-70867728950E", false},
		{"other patient", self, []string{RolePatient}, "7c9e6679-7425-40de-944b-e07fc1f90ae7", true},
		{"doctor any record", "doc", []string{RoleDoctor}, self, false},
		{"admin any record", "adm", []string{RoleAdmin}, self, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := contextWithRoles(httptest.NewRequest(http.MethodGet, "/", nil), tt.userID, tt.roles...)
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tt.param)

			err := RequireSelfOrRole("id", RoleDoctor)(okHandler)(c)
			if tt.wantErr {
				expectStatus(t, err, http.StatusForbidden)
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	ctx := WithUser(context.Background(), "u", "", RoleDoctor)
	if !HasRole(ctx, RoleDoctor) {
		t.Error("expected doctor role")
	}
	if HasRole(ctx, RolePatient) {
		t.Error("doctor must not have patient role")
	}
	if HasRole(context.Background(), RolePatient) {
		t.Error("empty context has no roles")
	}
}
