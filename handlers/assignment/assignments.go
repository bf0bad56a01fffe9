package assignment

import (
	"errors"
	"sort"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/response"
	"github.com/scholarproof/api/utils/validation"
)

// AssignmentHandler manages which lecturers are assigned to which sessions
type AssignmentHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(db *gorm.DB) *AssignmentHandler {
	return &AssignmentHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// SetAssignmentsRequest is the full desired lecturer set for one session
type SetAssignmentsRequest struct {
	LecturerIDs []uint `json:"lecturer_ids" validate:"required"`
}

// Diff is the reconciliation plan between current and desired assignments
type Diff struct {
	Add    []uint
	Remove []uint
}

// ReconcileAssignments computes the additions and removals that turn the
// current lecturer set into the desired one. Duplicates in the desired set
// are collapsed, output is sorted, and an unchanged set yields an empty diff.
func ReconcileAssignments(current, desired []uint) Diff {
	currentSet := make(map[uint]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}
	desiredSet := make(map[uint]bool, len(desired))
	for _, id := range desired {
		desiredSet[id] = true
	}

	var diff Diff
	for id := range desiredSet {
		if !currentSet[id] {
			diff.Add = append(diff.Add, id)
		}
	}
	for id := range currentSet {
		if !desiredSet[id] {
			diff.Remove = append(diff.Remove, id)
		}
	}

	sort.Slice(diff.Add, func(i, j int) bool { return diff.Add[i] < diff.Add[j] })
	sort.Slice(diff.Remove, func(i, j int) bool { return diff.Remove[i] < diff.Remove[j] })
	return diff
}

// ListAssignments handles GET /dashboard/admin/sessions/:id/lecturers
func (h *AssignmentHandler) ListAssignments(c *fiber.Ctx) error {
	var session model.Session
	if err := h.db.First(&session, c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to fetch session")
	}

	var lecturers []model.User
	err := h.db.Model(&model.User{}).
		Joins("JOIN lecturer_sessions ON lecturer_sessions.user_id = users.id").
		Where("lecturer_sessions.session_id = ?", session.ID).
		Order("users.name").
		Find(&lecturers).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch assignments")
	}

	return response.Success(c, lecturers)
}

// SetAssignments handles PUT /dashboard/admin/sessions/:id/lecturers. The
// request carries the complete desired lecturer set; the handler reconciles
// it against the current one in a single transaction.
func (h *AssignmentHandler) SetAssignments(c *fiber.Ctx) error {
	var session model.Session
	if err := h.db.First(&session, c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to fetch session")
	}

	var req SetAssignmentsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	// Every desired ID must be an actual lecturer
	if len(req.LecturerIDs) > 0 {
		var lecturerCount int64
		err := h.db.Model(&model.User{}).
			Where("id IN ? AND role = ?", req.LecturerIDs, model.RoleLecturer).
			Count(&lecturerCount).Error
		if err != nil {
			return response.InternalServerError(c, "Failed to verify lecturers")
		}
		uniqueDesired := make(map[uint]bool, len(req.LecturerIDs))
		for _, id := range req.LecturerIDs {
			uniqueDesired[id] = true
		}
		if lecturerCount != int64(len(uniqueDesired)) {
			return response.BadRequest(c, "One or more users are not lecturers")
		}
	}

	var current []uint
	err := h.db.Model(&model.LecturerSession{}).
		Where("session_id = ?", session.ID).
		Pluck("user_id", &current).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch assignments")
	}

	diff := ReconcileAssignments(current, req.LecturerIDs)
	if len(diff.Add) == 0 && len(diff.Remove) == 0 {
		return response.SuccessWithMessage(c, "Assignments unchanged", nil)
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if len(diff.Remove) > 0 {
			if err := tx.
				Where("session_id = ? AND user_id IN ?", session.ID, diff.Remove).
				Delete(&model.LecturerSession{}).Error; err != nil {
				return err
			}
		}
		for _, id := range diff.Add {
			if err := tx.Create(&model.LecturerSession{
				UserID:    id,
				SessionID: session.ID,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to update assignments")
	}

	return response.SuccessWithMessage(c, "Assignments updated", fiber.Map{
		"added":   len(diff.Add),
		"removed": len(diff.Remove),
	})
}
