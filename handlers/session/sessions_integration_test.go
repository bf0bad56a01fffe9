package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scholarproof/api/model"
)

// setupIntegrationApp wires the session handler routes against the test
// database named by the standard DB_* environment variables.
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

	if err := db.AutoMigrate(&model.User{}, &model.Session{}, &model.Certificate{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	app := fiber.New()
	handler := NewSessionHandler(db)
	app.Put("/dashboard/admin/sessions/:id", handler.UpdateSession)
	app.Delete("/dashboard/admin/sessions/:id", handler.DeleteSession)

	return app, db
}

func createTestSession(t *testing.T, db *gorm.DB, start, end time.Time, status model.SessionStatus) *model.Session {
	t.Helper()

	session := model.Session{
		Name:      fmt.Sprintf("Handler Cohort %d", time.Now().UnixNano()),
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&session) })

	return &session
}

func putJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPut, path, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	return resp
}

func TestDeleteSessionWithCertificatesConflicts(t *testing.T) {
	app, db := setupIntegrationApp(t)

	now := time.Now()
	session := createTestSession(t, db, now.AddDate(0, -3, 0), now.AddDate(0, 3, 0), model.SessionActive)

	student := model.User{
		Email:        fmt.Sprintf("graduate-%d@example.edu", time.Now().UnixNano()),
		PasswordHash: "not-a-real-hash",
		Name:         "Grace Hopper",
		Role:         model.RoleStudent,
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("failed to create student: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&student) })

	cert := model.Certificate{
		StudentID:  student.ID,
		SessionID:  session.ID,
		Title:      "Certificate of Completion",
		UploadedAt: now.UTC(),
		VerifyID:   uuid.New(),
	}
	if err := db.Create(&cert).Error; err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&cert) })

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("/dashboard/admin/sessions/%d", session.ID), nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("delete with certificates: status = %d, want %d", resp.StatusCode, fiber.StatusConflict)
	}

	var kept model.Session
	if err := db.First(&kept, session.ID).Error; err != nil {
		t.Fatalf("session was deleted despite issued certificates: %v", err)
	}

	// Once the last certificate is gone the session becomes deletable
	if err := db.Unscoped().Delete(&cert).Error; err != nil {
		t.Fatal(err)
	}
	req, _ = http.NewRequest(http.MethodDelete, fmt.Sprintf("/dashboard/admin/sessions/%d", session.ID), nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete without certificates: status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}
}

func TestUpdateSessionRederivesStatusFromDates(t *testing.T) {
	app, db := setupIntegrationApp(t)

	now := time.Now()
	session := createTestSession(t, db, now.AddDate(0, 1, 0), now.AddDate(0, 4, 0), model.SessionUpcoming)

	resp := putJSON(t, app, fmt.Sprintf("/dashboard/admin/sessions/%d", session.ID), fiber.Map{
		"start_date": now.AddDate(0, -6, 0).Format("2006-01-02"),
		"end_date":   now.AddDate(0, -3, 0).Format("2006-01-02"),
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}

	var updated model.Session
	if err := db.First(&updated, session.ID).Error; err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.SessionCompleted {
		t.Errorf("Status = %q after moving dates into the past, want %q", updated.Status, model.SessionCompleted)
	}
}

func TestUpdateSessionExplicitStatusWins(t *testing.T) {
	app, db := setupIntegrationApp(t)

	now := time.Now()
	session := createTestSession(t, db, now.AddDate(0, 1, 0), now.AddDate(0, 4, 0), model.SessionUpcoming)

	resp := putJSON(t, app, fmt.Sprintf("/dashboard/admin/sessions/%d", session.ID), fiber.Map{
		"start_date": now.AddDate(0, -6, 0).Format("2006-01-02"),
		"end_date":   now.AddDate(0, -3, 0).Format("2006-01-02"),
		"status":     string(model.SessionInactive),
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}

	var updated model.Session
	if err := db.First(&updated, session.ID).Error; err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.SessionInactive {
		t.Errorf("Status = %q, want explicit %q", updated.Status, model.SessionInactive)
	}
}

func TestUpdateSessionKeepsInactiveAcrossDateChanges(t *testing.T) {
	app, db := setupIntegrationApp(t)

	now := time.Now()
	session := createTestSession(t, db, now.AddDate(0, -3, 0), now.AddDate(0, 3, 0), model.SessionInactive)

	resp := putJSON(t, app, fmt.Sprintf("/dashboard/admin/sessions/%d", session.ID), fiber.Map{
		"end_date": now.AddDate(0, 6, 0).Format("2006-01-02"),
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}

	var updated model.Session
	if err := db.First(&updated, session.ID).Error; err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.SessionInactive {
		t.Errorf("Status = %q, want Inactive to stick until an admin reactivates", updated.Status)
	}
}
