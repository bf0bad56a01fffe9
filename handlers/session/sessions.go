package session

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/middleware"
	"github.com/scholarproof/api/utils/response"
	"github.com/scholarproof/api/utils/validation"
)

// SessionHandler handles academic session requests
type SessionHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(db *gorm.DB) *SessionHandler {
	return &SessionHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateSessionRequest represents the request body for creating a session
type CreateSessionRequest struct {
	Name      string `json:"name" validate:"required,min=3,max=100"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Status    string `json:"status" validate:"omitempty,oneof=Active Inactive Upcoming Completed"`
}

// UpdateSessionRequest represents the request body for updating a session
type UpdateSessionRequest struct {
	Name      string `json:"name" validate:"omitempty,min=3,max=100"`
	StartDate string `json:"start_date" validate:"omitempty"`
	EndDate   string `json:"end_date" validate:"omitempty"`
	Status    string `json:"status" validate:"omitempty,oneof=Active Inactive Upcoming Completed"`
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// ListSessions handles GET /dashboard/admin/sessions
func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(response.DefaultPageSize)))

	query := h.db.Model(&model.Session{})

	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count sessions")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var sessions []model.Session
	if err := query.Order("start_date DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&sessions).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch sessions")
	}

	return response.Paginated(c, sessions, pagination)
}

// GetSession handles GET /dashboard/admin/sessions/:id
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	var session model.Session
	if err := h.db.First(&session, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to fetch session")
	}

	return response.Success(c, session)
}

// CreateSession handles POST /dashboard/admin/sessions
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return response.BadRequest(c, "start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return response.BadRequest(c, "end_date must be YYYY-MM-DD")
	}
	if !end.After(start) {
		return response.BadRequest(c, "end_date must be after start_date")
	}

	status := model.SessionStatus(req.Status)
	if status == "" {
		status = model.DeriveStatus("", start, end, time.Now().UTC())
	}

	session := model.Session{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}

	if err := h.db.Create(&session).Error; err != nil {
		return response.Conflict(c, "A session with this name already exists")
	}

	return response.Created(c, session)
}

// UpdateSession handles PUT /dashboard/admin/sessions/:id
func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	var session model.Session
	if err := h.db.First(&session, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to fetch session")
	}

	var req UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}

	start, end := session.StartDate, session.EndDate
	datesChanged := false
	if req.StartDate != "" {
		parsed, err := parseDate(req.StartDate)
		if err != nil {
			return response.BadRequest(c, "start_date must be YYYY-MM-DD")
		}
		start = parsed
		updates["start_date"] = start
		datesChanged = true
	}
	if req.EndDate != "" {
		parsed, err := parseDate(req.EndDate)
		if err != nil {
			return response.BadRequest(c, "end_date must be YYYY-MM-DD")
		}
		end = parsed
		updates["end_date"] = end
		datesChanged = true
	}
	if datesChanged && !end.After(start) {
		return response.BadRequest(c, "end_date must be after start_date")
	}

	if req.Status != "" {
		updates["status"] = model.SessionStatus(req.Status)
	} else if datesChanged {
		// A date change moves the session along its lifecycle immediately
		// instead of waiting for the hourly rollover job
		updates["status"] = model.DeriveStatus(session.Status, start, end, time.Now().UTC())
	}

	if len(updates) == 0 {
		return response.Success(c, session)
	}

	if err := h.db.Model(&session).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update session")
	}

	return response.Success(c, session)
}

// DeleteSession handles DELETE /dashboard/admin/sessions/:id.
// A session with issued certificates cannot be deleted.
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	var session model.Session
	if err := h.db.First(&session, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to fetch session")
	}

	var certificateCount int64
	err := h.db.Model(&model.Certificate{}).
		Where("session_id = ?", session.ID).
		Count(&certificateCount).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to check session certificates")
	}
	if certificateCount > 0 {
		return response.Conflict(c, "Session has issued certificates and cannot be deleted")
	}

	if err := h.db.Delete(&session).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete session")
	}

	return response.SuccessWithMessage(c, "Session deleted", nil)
}

// ListMySessions handles GET /dashboard/lecturer/sessions: only sessions
// the lecturer has been assigned to
func (h *SessionHandler) ListMySessions(c *fiber.Ctx) error {
	userID, ok := middleware.GuardUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(response.DefaultPageSize)))

	query := h.db.Model(&model.Session{}).
		Joins("JOIN lecturer_sessions ON lecturer_sessions.session_id = sessions.id").
		Where("lecturer_sessions.user_id = ?", userID)

	if search := c.Query("search"); search != "" {
		query = query.Where("sessions.name ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count sessions")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var sessions []model.Session
	if err := query.Order("sessions.start_date DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&sessions).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch sessions")
	}

	return response.Paginated(c, sessions, pagination)
}
