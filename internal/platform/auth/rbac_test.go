package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithIdentity(id Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := contextWithIdentity(Identity{UserID: "u1", Roles: []string{"doctor"}})
	if err := RequireRole(RoleDoctor, RoleMidwife)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := contextWithIdentity(Identity{UserID: "u1", Roles: []string{"receptionist"}})
	err := RequireRole(RoleDoctor)(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c, _ := contextWithIdentity(Identity{UserID: "root", IsAdmin: true})
	if err := RequireRole(RoleMidwife)(okHandler)(c); err != nil {
		t.Fatalf("admin should bypass role check: %v", err)
	}
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	c, _ := contextWithIdentity(Identity{})
	if err := RequireRole(StaffRoles...)(okHandler)(c); err == nil {
		t.Fatal("expected error for anonymous caller")
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		wantErr bool
	}{
		{"admin", Identity{UserID: "a", IsAdmin: true}, false},
		{"doctor", Identity{UserID: "d", Roles: []string{"doctor"}}, true},
		{"anonymous", Identity{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := contextWithIdentity(tt.id)
			err := RequireAdmin()(okHandler)(c)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Identity
	h := DevAuthMiddleware()(func(c echo.Context) error {
		got = IdentityFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsAdmin || got.UserID != "dev-user" {
		t.Errorf("expected dev admin identity, got %+v", got)
	}
}
