package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scholarproof/api/model"
	authutil "github.com/scholarproof/api/utils/auth"
	"github.com/scholarproof/api/utils/middleware"
)

// setupIntegrationApp wires signup, login and the authenticated profile
// routes against the test database from the standard DB_* environment
// variables.
func setupIntegrationApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER_NAME"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.InviteCode{}, &model.JWTTokenBlacklist{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	jwtManager := authutil.NewJWTManager(authutil.JWTConfig{
		Secret:        "integration-test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "scholarproof-api",
	})
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)
	handler := NewAuthHandler(db, jwtManager, nil, nil, nil)

	app := fiber.New()
	app.Post("/signup", handler.Register)
	app.Post("/login", handler.Login)
	app.Get("/profile", authMiddleware.Required(), handler.GetProfile)
	app.Put("/profile/password", authMiddleware.Required(), handler.ChangePassword)

	return app, db
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}, bearer string) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	return resp
}

// envelope is the slice of the response body these tests care about
type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID   uint       `json:"id"`
			Role model.Role `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("failed to decode response %s: %v", body, err)
	}
	return env
}

func TestInviteCodeClaimedAtMostOnce(t *testing.T) {
	app, db := setupIntegrationApp(t)

	suffix := time.Now().UnixNano()
	code := model.InviteCode{
		Code: fmt.Sprintf("SP-ONCE%d", suffix),
		Role: model.RoleLecturer,
	}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("failed to create invite code: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&code) })

	firstEmail := fmt.Sprintf("first-%d@example.edu", suffix)
	secondEmail := fmt.Sprintf("second-%d@example.edu", suffix)
	t.Cleanup(func() {
		db.Unscoped().Where("email IN ?", []string{firstEmail, secondEmail}).Delete(&model.User{})
	})

	resp := postJSON(t, app, "/signup", fiber.Map{
		"email":       firstEmail,
		"password":    "first-password",
		"name":        "First Claimant",
		"invite_code": code.Code,
	}, "")
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("first signup: status = %d, want %d", resp.StatusCode, fiber.StatusCreated)
	}
	if env := decodeEnvelope(t, resp); env.Data.User.Role != model.RoleLecturer {
		t.Errorf("first signup role = %q, want lecturer", env.Data.User.Role)
	}

	resp = postJSON(t, app, "/signup", fiber.Map{
		"email":       secondEmail,
		"password":    "second-password",
		"name":        "Second Claimant",
		"invite_code": code.Code,
	}, "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("second signup with used code: status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}

	// The rejected signup must leave no user row behind
	var orphaned int64
	if err := db.Model(&model.User{}).Where("email = ?", secondEmail).Count(&orphaned).Error; err != nil {
		t.Fatal(err)
	}
	if orphaned != 0 {
		t.Errorf("rejected signup left %d user row(s)", orphaned)
	}

	var claimed model.InviteCode
	if err := db.First(&claimed, code.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !claimed.Used || claimed.UsedByID == nil {
		t.Errorf("code not marked claimed: used=%v used_by=%v", claimed.Used, claimed.UsedByID)
	}
}

func TestChangePasswordInvalidatesIssuedTokens(t *testing.T) {
	app, db := setupIntegrationApp(t)

	email := fmt.Sprintf("rotator-%d@example.edu", time.Now().UnixNano())
	t.Cleanup(func() {
		db.Unscoped().Where("email = ?", email).Delete(&model.User{})
	})

	resp := postJSON(t, app, "/signup", fiber.Map{
		"email":    email,
		"password": "old-password-1",
		"name":     "Key Rotator",
	}, "")
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("signup: status = %d, want %d", resp.StatusCode, fiber.StatusCreated)
	}
	oldToken := decodeEnvelope(t, resp).Data.AccessToken

	payload, _ := json.Marshal(fiber.Map{
		"current_password": "old-password-1",
		"new_password":     "new-password-2",
	})
	req, _ := http.NewRequest(http.MethodPut, "/profile/password", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+oldToken)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("change password: status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}

	// The pre-rotation token no longer validates
	profileReq, _ := http.NewRequest(http.MethodGet, "/profile", nil)
	profileReq.Header.Set("Authorization", "Bearer "+oldToken)
	resp, err = app.Test(profileReq, -1)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("profile with stale token: status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}

	// The old password is gone, the new one works
	resp = postJSON(t, app, "/login", fiber.Map{"email": email, "password": "old-password-1"}, "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("login with old password: status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
	resp = postJSON(t, app, "/login", fiber.Map{"email": email, "password": "new-password-2"}, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("login with new password: status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}

	freshToken := decodeEnvelope(t, resp).Data.AccessToken
	profileReq, _ = http.NewRequest(http.MethodGet, "/profile", nil)
	profileReq.Header.Set("Authorization", "Bearer "+freshToken)
	resp, err = app.Test(profileReq, -1)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("profile with fresh token: status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}
}
