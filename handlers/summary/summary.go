package summary

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/response"
)

// SummaryHandler serves the admin dashboard overview numbers
type SummaryHandler struct {
	db *gorm.DB
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(db *gorm.DB) *SummaryHandler {
	return &SummaryHandler{db: db}
}

// Overview is the top-line counts block on the admin dashboard
type Overview struct {
	Students             int64 `json:"students"`
	Lecturers            int64 `json:"lecturers"`
	Sessions             int64 `json:"sessions"`
	ActiveSessions       int64 `json:"active_sessions"`
	Certificates         int64 `json:"certificates"`
	ArchivedCertificates int64 `json:"archived_certificates"`
	RevokedCertificates  int64 `json:"revoked_certificates"`
	UnusedInviteCodes    int64 `json:"unused_invite_codes"`
}

// SessionSummary is one per-session row in the overview table
type SessionSummary struct {
	SessionID    uint                `json:"session_id"`
	Name         string              `json:"name"`
	Status       model.SessionStatus `json:"status"`
	Certificates int64               `json:"certificates"`
	Lecturers    int64               `json:"lecturers"`
}

// GetOverview handles GET /dashboard/admin/summary
func (h *SummaryHandler) GetOverview(c *fiber.Ctx) error {
	var overview Overview

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&overview.Students, h.db.Model(&model.User{}).Where("role = ?", model.RoleStudent)},
		{&overview.Lecturers, h.db.Model(&model.User{}).Where("role = ?", model.RoleLecturer)},
		{&overview.Sessions, h.db.Model(&model.Session{})},
		{&overview.ActiveSessions, h.db.Model(&model.Session{}).Where("status = ?", model.SessionActive)},
		{&overview.Certificates, h.db.Model(&model.Certificate{})},
		{&overview.ArchivedCertificates, h.db.Model(&model.Certificate{}).Where("permanent_url <> ''")},
		{&overview.RevokedCertificates, h.db.Model(&model.Certificate{}).Where("revoked = ?", true)},
		{&overview.UnusedInviteCodes, h.db.Model(&model.InviteCode{}).Where("used = ?", false)},
	}

	for _, count := range counts {
		if err := count.query.Count(count.dest).Error; err != nil {
			return response.InternalServerError(c, "Failed to compute summary")
		}
	}

	return response.Success(c, overview)
}

// GetSessionSummaries handles GET /dashboard/admin/summary/sessions
func (h *SummaryHandler) GetSessionSummaries(c *fiber.Ctx) error {
	var rows []SessionSummary
	err := h.db.Model(&model.Session{}).
		Select("sessions.id AS session_id, sessions.name, sessions.status, " +
			"(SELECT COUNT(*) FROM certificates WHERE certificates.session_id = sessions.id AND certificates.deleted_at IS NULL) AS certificates, " +
			"(SELECT COUNT(*) FROM lecturer_sessions WHERE lecturer_sessions.session_id = sessions.id) AS lecturers").
		Order("sessions.start_date DESC").
		Scan(&rows).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to compute session summaries")
	}

	return response.Success(c, rows)
}
