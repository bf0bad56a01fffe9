package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/config"
	"github.com/scholarproof/api/database"
	"github.com/scholarproof/api/handlers"
	assignment_handlers "github.com/scholarproof/api/handlers/assignment"
	auth_handlers "github.com/scholarproof/api/handlers/auth"
	certificate_handlers "github.com/scholarproof/api/handlers/certificate"
	invitecode_handlers "github.com/scholarproof/api/handlers/invitecode"
	session_handlers "github.com/scholarproof/api/handlers/session"
	student_handlers "github.com/scholarproof/api/handlers/student"
	summary_handlers "github.com/scholarproof/api/handlers/summary"
	verify_handlers "github.com/scholarproof/api/handlers/verify"
	"github.com/scholarproof/api/services"
	"github.com/scholarproof/api/services/permastore"
	"github.com/scholarproof/api/services/storage"
	"github.com/scholarproof/api/utils/auth"
	"github.com/scholarproof/api/utils/cache"
	"github.com/scholarproof/api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage, verifyStore *database.PostgreSQLStore) {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "scholarproof-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        getEnv.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Initialize Redis cache for brute force protection and role lookups
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection and role caching will be disabled.", err)
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// The guard resolves roles from the database on every request; Redis in
	// front keeps the per-request lookup off Postgres
	blacklistService := auth.NewBlacklistService(db)
	roleService := services.NewRoleService(db)
	roleResolver := services.NewCachedRoleResolver(roleService, redisCache, 0)
	routeGuard := middleware.NewRouteGuard(jwtManager, blacklistService, roleResolver)

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Object storage is optional; without it profile pictures and document
	// copies are simply not stored
	var spacesClient *storage.SpacesClient
	if getEnv.SPACES_ACCESS_KEY != "" {
		spacesClient, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: getEnv.SPACES_ACCESS_KEY,
			SecretKey: getEnv.SPACES_SECRET_KEY,
			Bucket:    getEnv.SPACES_BUCKET,
			Region:    getEnv.SPACES_REGION,
			Endpoint:  getEnv.SPACES_ENDPOINT,
			CDNURL:    getEnv.SPACES_CDN_URL,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize object storage: %v", err)
		}
	}

	// Permanent storage network client, optional likewise
	var permanentClient *permastore.Client
	if getEnv.PERMASTORE_NODE_URL != "" {
		permanentClient, err = permastore.NewClient(permastore.Config{
			NodeURL:    getEnv.PERMASTORE_NODE_URL,
			GatewayURL: getEnv.PERMASTORE_GATEWAY_URL,
			PrivateKey: getEnv.PERMASTORE_PRIVATE_KEY,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize permanent storage client: %v", err)
		}
	}

	certificateService := services.NewCertificateService(db, permanentClient, spacesClient)

	// Initialize handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection, roleResolver, spacesClient)
	sessionHandler := session_handlers.NewSessionHandler(db)
	certificateHandler := certificate_handlers.NewCertificateHandler(db, certificateService)
	inviteCodeHandler := invitecode_handlers.NewInviteCodeHandler(db)
	assignmentHandler := assignment_handlers.NewAssignmentHandler(db)
	studentHandler := student_handlers.NewStudentHandler(db)
	summaryHandler := summary_handlers.NewSummaryHandler(db)
	verifyHandler := verify_handlers.NewVerifyHandler(verifyStore)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Every request passes the guard; non-dashboard paths fall through
	app.Use(routeGuard.Intercept())

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// Public certificate verification
	app.Get("/verify/:verify_id", verifyHandler.VerifyCertificate)

	// Auth routes (public)
	app.Post("/signup", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		app.Post("/login", bruteForceProtection.CheckAttempt(), authHandler.Login)
	} else {
		app.Post("/login", authHandler.Login)
	}
	app.Post("/refresh", authHandler.RefreshToken)
	app.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	// The guard rejects unauthenticated and mismatched dashboard requests
	// with a redirect here
	app.Get(middleware.UnauthorizedPath, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error": fiber.Map{
				"code":    "FORBIDDEN",
				"message": "You do not have access to this area",
			},
		})
	})

	// Convenience entrypoints: send the caller to their own dashboard
	app.Get("/dashboard", routeGuard.RedirectToDashboard())
	app.Get("/admin", routeGuard.RedirectToDashboard())
	app.Get("/lecturer", routeGuard.RedirectToDashboard())
	app.Get("/student", routeGuard.RedirectToDashboard())

	// Profile routes (protected)
	profileGroup := app.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)
	profileGroup.Put("/password", authHandler.ChangePassword)
	profileGroup.Post("/picture", authHandler.UploadProfilePicture)

	// ==================== Student dashboard ====================

	studentDash := app.Group("/dashboard/student")
	studentDash.Get("/certificates", certificateHandler.ListCertificates)
	studentDash.Get("/certificates/:id", certificateHandler.GetCertificate)
	studentDash.Get("/certificates/:id/export", certificateHandler.ExportCertificate)

	// ==================== Lecturer dashboard ====================

	lecturerDash := app.Group("/dashboard/lecturer")
	lecturerDash.Get("/sessions", sessionHandler.ListMySessions)
	lecturerDash.Get("/certificates", certificateHandler.ListCertificates)
	lecturerDash.Get("/certificates/:id", certificateHandler.GetCertificate)
	lecturerDash.Get("/certificates/:id/export", certificateHandler.ExportCertificate)

	// ==================== Admin dashboard ====================

	adminDash := app.Group("/dashboard/admin")

	adminDash.Get("/summary", summaryHandler.GetOverview)
	adminDash.Get("/summary/sessions", summaryHandler.GetSessionSummaries)

	// Sessions
	adminDash.Get("/sessions", sessionHandler.ListSessions)
	adminDash.Get("/sessions/:id", sessionHandler.GetSession)
	adminDash.Post("/sessions", middleware.AdminAuditLog(db, "session_create", "sessions"), sessionHandler.CreateSession)
	adminDash.Put("/sessions/:id", middleware.AdminAuditLog(db, "session_update", "sessions"), sessionHandler.UpdateSession)
	adminDash.Delete("/sessions/:id", middleware.AdminAuditLog(db, "session_delete", "sessions"), sessionHandler.DeleteSession)

	// Lecturer assignments
	adminDash.Get("/sessions/:id/lecturers", assignmentHandler.ListAssignments)
	adminDash.Put("/sessions/:id/lecturers", middleware.AdminAuditLog(db, "assignment_update", "sessions"), assignmentHandler.SetAssignments)

	// Certificates
	adminDash.Get("/certificates", certificateHandler.ListCertificates)
	adminDash.Get("/certificates/:id", certificateHandler.GetCertificate)
	adminDash.Get("/certificates/:id/export", certificateHandler.ExportCertificate)
	adminDash.Post("/certificates", middleware.AdminAuditLog(db, "certificate_issue", "certificates"), certificateHandler.IssueCertificate)
	adminDash.Post("/certificates/:id/archive", middleware.AdminAuditLog(db, "certificate_archive", "certificates"), certificateHandler.ArchiveCertificate)
	adminDash.Post("/certificates/:id/regenerate", middleware.AdminAuditLog(db, "certificate_regenerate", "certificates"), certificateHandler.RegenerateCertificate)
	adminDash.Post("/certificates/:id/revoke", middleware.AdminAuditLog(db, "certificate_revoke", "certificates"), certificateHandler.RevokeCertificate)
	adminDash.Post("/certificates/:id/restore", middleware.AdminAuditLog(db, "certificate_restore", "certificates"), certificateHandler.RestoreCertificate)

	// Students directory
	adminDash.Get("/students", studentHandler.ListStudents)
	adminDash.Get("/students/:id", studentHandler.GetStudent)

	// Invite codes
	adminDash.Get("/invite-codes", inviteCodeHandler.ListInviteCodes)
	adminDash.Post("/invite-codes", middleware.AdminAuditLog(db, "invite_code_create", "invite_codes"), inviteCodeHandler.CreateInviteCodes)
	adminDash.Delete("/invite-codes/:id", middleware.AdminAuditLog(db, "invite_code_delete", "invite_codes"), inviteCodeHandler.DeleteInviteCode)
}
