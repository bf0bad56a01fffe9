package invitecode

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/response"
	"github.com/scholarproof/api/utils/validation"
)

// InviteCodeHandler handles admin management of signup invite codes
type InviteCodeHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewInviteCodeHandler creates a new invite code handler
func NewInviteCodeHandler(db *gorm.DB) *InviteCodeHandler {
	return &InviteCodeHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateInviteCodeRequest represents the request body for minting codes
type CreateInviteCodeRequest struct {
	Role  string `json:"role" validate:"required,oneof=lecturer admin"`
	Count int    `json:"count" validate:"omitempty,min=1,max=50"`
}

// generateCode mints an SP-XXXXXXXXXX code from crypto/rand
func generateCode() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	return "SP-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// CreateInviteCodes handles POST /dashboard/admin/invite-codes
func (h *InviteCodeHandler) CreateInviteCodes(c *fiber.Ctx) error {
	var req CreateInviteCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	role, ok := model.ParseRole(req.Role)
	if !ok || role == model.RoleStudent {
		return response.BadRequest(c, "role must be lecturer or admin")
	}

	count := req.Count
	if count == 0 {
		count = 1
	}

	codes := make([]model.InviteCode, 0, count)
	for i := 0; i < count; i++ {
		code, err := generateCode()
		if err != nil {
			return response.InternalServerError(c, "Failed to generate invite codes")
		}
		codes = append(codes, model.InviteCode{Code: code, Role: role})
	}

	if err := h.db.Create(&codes).Error; err != nil {
		return response.InternalServerError(c, "Failed to create invite codes")
	}

	return response.Created(c, codes)
}

// ListInviteCodes handles GET /dashboard/admin/invite-codes
func (h *InviteCodeHandler) ListInviteCodes(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(response.DefaultPageSize)))

	query := h.db.Model(&model.InviteCode{})

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if used := c.Query("used"); used != "" {
		query = query.Where("used = ?", used == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count invite codes")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var codes []model.InviteCode
	if err := query.Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&codes).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch invite codes")
	}

	return response.Paginated(c, codes, pagination)
}

// DeleteInviteCode handles DELETE /dashboard/admin/invite-codes/:id.
// Redeemed codes are part of the signup audit trail and cannot be deleted.
func (h *InviteCodeHandler) DeleteInviteCode(c *fiber.Ctx) error {
	var code model.InviteCode
	if err := h.db.First(&code, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Invite code not found")
		}
		return response.InternalServerError(c, "Failed to fetch invite code")
	}

	if code.Used {
		return response.Conflict(c, "Invite code has been redeemed and cannot be deleted")
	}

	if err := h.db.Delete(&code).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete invite code")
	}

	return response.SuccessWithMessage(c, "Invite code deleted", nil)
}
