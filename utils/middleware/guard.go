package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/services"
	"github.com/scholarproof/api/utils/auth"
)

// UnauthorizedPath is where every guard failure lands. Authentication and
// authorization failures are deliberately indistinguishable.
const UnauthorizedPath = "/unauthorized"

// guardTable maps dashboard path prefixes to the role required to enter.
// Paths outside the table pass through untouched.
var guardTable = []struct {
	prefix string
	role   model.Role
}{
	{"/dashboard/student", model.RoleStudent},
	{"/dashboard/lecturer", model.RoleLecturer},
	{"/dashboard/admin", model.RoleAdmin},
}

// RequiredRole returns the role a path prefix demands, if any
func RequiredRole(path string) (model.Role, bool) {
	for _, entry := range guardTable {
		if strings.HasPrefix(path, entry.prefix) {
			return entry.role, true
		}
	}
	return "", false
}

// RevocationChecker answers whether a token ID has been blacklisted
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// RouteGuard intercepts every request to a guarded dashboard path and
// rejects it before any handler runs. It validates the bearer credential,
// resolves the caller's stored role and compares it against the path's
// required role. Every ambiguity fails closed to /unauthorized.
type RouteGuard struct {
	jwtManager *auth.JWTManager
	blacklist  RevocationChecker
	resolver   services.RoleResolver
}

// NewRouteGuard creates a new route guard
func NewRouteGuard(jwtManager *auth.JWTManager, blacklist RevocationChecker, resolver services.RoleResolver) *RouteGuard {
	return &RouteGuard{
		jwtManager: jwtManager,
		blacklist:  blacklist,
		resolver:   resolver,
	}
}

// credential extracts the bearer token from the Authorization header or,
// failing that, the access_token cookie set for browser navigations.
func credential(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Cookies("access_token")
}

func (g *RouteGuard) reject(c *fiber.Ctx) error {
	return c.Redirect(UnauthorizedPath, fiber.StatusSeeOther)
}

// Intercept is the request-time interceptor applied to the whole app
func (g *RouteGuard) Intercept() fiber.Handler {
	return func(c *fiber.Ctx) error {
		required, guarded := RequiredRole(c.Path())
		if !guarded {
			return c.Next()
		}

		token := credential(c)
		if token == "" {
			return g.reject(c)
		}

		claims, err := g.jwtManager.ValidateToken(token)
		if err != nil {
			return g.reject(c)
		}
		if claims.TokenType != "access" {
			return g.reject(c)
		}

		revoked, err := g.blacklist.IsTokenRevoked(c.Context(), claims.ID)
		if err != nil || revoked {
			return g.reject(c)
		}

		role, err := g.resolver.Resolve(c.Context(), claims.UserID)
		if err != nil {
			return g.reject(c)
		}

		if role != required {
			return g.reject(c)
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("user_email", claims.Email)
		c.Locals("user_role", role)
		c.Locals("token_jti", claims.ID)

		return c.Next()
	}
}

// RedirectToDashboard serves the convenience routes (/admin, /lecturer,
// /student, /dashboard): resolve the caller's actual role and send them to
// the canonical dashboard path, or to /unauthorized.
func (g *RouteGuard) RedirectToDashboard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := credential(c)
		if token == "" {
			return g.reject(c)
		}

		claims, err := g.jwtManager.ValidateToken(token)
		if err != nil || claims.TokenType != "access" {
			return g.reject(c)
		}

		role, err := g.resolver.Resolve(c.Context(), claims.UserID)
		if err != nil {
			return g.reject(c)
		}

		return c.Redirect("/dashboard/"+string(role), fiber.StatusSeeOther)
	}
}

// GuardUserID extracts the guard-authenticated user ID from context
func GuardUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("user_id").(uint)
	return id, ok
}

// GuardRole extracts the guard-resolved role from context
func GuardRole(c *fiber.Ctx) (model.Role, bool) {
	role, ok := c.Locals("user_role").(model.Role)
	return role, ok
}
