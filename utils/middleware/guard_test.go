package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/auth"
)

type fakeResolver struct {
	roles map[uint]model.Role
}

func (f *fakeResolver) Resolve(_ context.Context, userID uint) (model.Role, error) {
	role, ok := f.roles[userID]
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	return role, nil
}

type fakeRevocation struct {
	revoked map[string]bool
}

func (f *fakeRevocation) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func newGuardApp(t *testing.T) (*fiber.App, *auth.JWTManager, *fakeResolver, *fakeRevocation) {
	t.Helper()

	manager := auth.NewJWTManager(auth.JWTConfig{
		Secret: "guard-test-secret",
		Expiry: time.Hour,
		Issuer: "scholarproof-test",
	})
	resolver := &fakeResolver{roles: map[uint]model.Role{}}
	revocation := &fakeRevocation{revoked: map[string]bool{}}

	app := fiber.New()
	guard := NewRouteGuard(manager, revocation, resolver)
	app.Use(guard.Intercept())

	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Get("/dashboard/student/certificates", ok)
	app.Get("/dashboard/lecturer/certificates", ok)
	app.Get("/dashboard/admin/sessions", ok)
	app.Get("/public", ok)

	return app, manager, resolver, revocation
}

func accessToken(t *testing.T, manager *auth.JWTManager, userID uint, role model.Role) (string, string) {
	t.Helper()
	token, jti, err := manager.GenerateAccessToken(userID, "user@example.com", role, 0)
	if err != nil {
		t.Fatal(err)
	}
	return token, jti
}

func TestGuardRequiredRole(t *testing.T) {
	tests := []struct {
		path    string
		role    model.Role
		guarded bool
	}{
		{"/dashboard/student/certificates", model.RoleStudent, true},
		{"/dashboard/lecturer/certificates/9", model.RoleLecturer, true},
		{"/dashboard/admin/sessions", model.RoleAdmin, true},
		{"/verify/abc", "", false},
		{"/login", "", false},
		{"/", "", false},
	}

	for _, tt := range tests {
		role, guarded := RequiredRole(tt.path)
		if guarded != tt.guarded || role != tt.role {
			t.Errorf("RequiredRole(%q) = %v, %v; want %v, %v", tt.path, role, guarded, tt.role, tt.guarded)
		}
	}
}

func TestGuardRejectsUnauthenticated(t *testing.T) {
	app, _, _, _ := newGuardApp(t)

	for _, path := range []string{
		"/dashboard/student/certificates",
		"/dashboard/lecturer/certificates",
		"/dashboard/admin/sessions",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusSeeOther {
			t.Errorf("GET %s status = %d, want 303", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != UnauthorizedPath {
			t.Errorf("GET %s redirected to %q, want %q", path, loc, UnauthorizedPath)
		}
	}
}

func TestGuardRoleMatrix(t *testing.T) {
	app, manager, resolver, _ := newGuardApp(t)
	resolver.roles[1] = model.RoleStudent
	resolver.roles[2] = model.RoleLecturer
	resolver.roles[3] = model.RoleAdmin

	paths := map[model.Role]string{
		model.RoleStudent:  "/dashboard/student/certificates",
		model.RoleLecturer: "/dashboard/lecturer/certificates",
		model.RoleAdmin:    "/dashboard/admin/sessions",
	}
	users := map[uint]model.Role{1: model.RoleStudent, 2: model.RoleLecturer, 3: model.RoleAdmin}

	for userID, userRole := range users {
		token, _ := accessToken(t, manager, userID, userRole)
		for pathRole, path := range paths {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}

			if pathRole == userRole {
				if resp.StatusCode != http.StatusOK {
					t.Errorf("role %s on %s: status = %d, want 200", userRole, path, resp.StatusCode)
				}
			} else {
				if resp.StatusCode != http.StatusSeeOther {
					t.Errorf("role %s on %s: status = %d, want 303", userRole, path, resp.StatusCode)
				}
			}
		}
	}
}

func TestGuardAcceptsCookieCredential(t *testing.T) {
	app, manager, resolver, _ := newGuardApp(t)
	resolver.roles[5] = model.RoleStudent

	token, _ := accessToken(t, manager, 5, model.RoleStudent)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/student/certificates", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cookie credential: status = %d, want 200", resp.StatusCode)
	}
}

func TestGuardRejectsRevokedToken(t *testing.T) {
	app, manager, resolver, revocation := newGuardApp(t)
	resolver.roles[6] = model.RoleAdmin

	token, jti := accessToken(t, manager, 6, model.RoleAdmin)
	revocation.revoked[jti] = true

	req := httptest.NewRequest(http.MethodGet, "/dashboard/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("revoked token: status = %d, want 303", resp.StatusCode)
	}
}

func TestGuardTokenRoleClaimIsAdvisory(t *testing.T) {
	app, manager, resolver, _ := newGuardApp(t)
	// Token claims admin, the store says student. The store wins.
	resolver.roles[7] = model.RoleStudent

	token, _ := accessToken(t, manager, 7, model.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("stale role claim: status = %d, want 303", resp.StatusCode)
	}
}

func TestGuardIgnoresUnguardedPaths(t *testing.T) {
	app, _, _, _ := newGuardApp(t)

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unguarded path: status = %d, want 200", resp.StatusCode)
	}
}

func TestGuardRejectsRefreshTokenOnDashboard(t *testing.T) {
	app, manager, resolver, _ := newGuardApp(t)
	resolver.roles[8] = model.RoleStudent

	refresh, _, err := manager.GenerateRefreshToken(8, "user@example.com", model.RoleStudent, 0)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard/student/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("refresh token on dashboard: status = %d, want 303", resp.StatusCode)
	}
}
