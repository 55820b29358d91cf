package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runRequireRole(granted []string, required ...string) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, granted)
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())
	return RequireRole(required...)(okHandler)(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	if err := runRequireRole([]string{"CA"}, "CA", "ADMIN"); err != nil {
		t.Fatalf("expected access, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	err := runRequireRole([]string{"CA"}, "MR_STAFF")
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_NoRoles(t *testing.T) {
	err := runRequireRole(nil, "CA")
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AdminBypass(t *testing.T) {
	if err := runRequireRole([]string{"ADMIN"}, "MR_STAFF"); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		granted  []string
		required []string
		want     bool
	}{
		{[]string{"mr_staff"}, []string{"MR_STAFF"}, true},
		{[]string{"CA"}, []string{"MR_STAFF", "CA"}, true},
		{[]string{"admin"}, nil, true},
		{[]string{"CA"}, nil, false},
		{nil, []string{"CA"}, false},
	}
	for _, tt := range tests {
		if got := HasAnyRole(tt.granted, tt.required...); got != tt.want {
			t.Errorf("HasAnyRole(%v, %v) = %v, want %v", tt.granted, tt.required, got, tt.want)
		}
	}
}
