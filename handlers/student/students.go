package student

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/response"
)

// StudentHandler serves the admin student directory
type StudentHandler struct {
	db *gorm.DB
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(db *gorm.DB) *StudentHandler {
	return &StudentHandler{db: db}
}

// StudentRow is one directory entry with its certificate count
type StudentRow struct {
	ID                uint   `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	CertificateCount  int64  `json:"certificate_count"`
}

// ListStudents handles GET /dashboard/admin/students
func (h *StudentHandler) ListStudents(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(response.DefaultPageSize)))

	query := h.db.Model(&model.User{}).Where("users.role = ?", model.RoleStudent)

	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("users.name ILIKE ? OR users.email ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count students")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var rows []StudentRow
	err := query.
		Select("users.id, users.name, users.email, users.profile_picture_url, " +
			"(SELECT COUNT(*) FROM certificates WHERE certificates.student_id = users.id AND certificates.deleted_at IS NULL) AS certificate_count").
		Order("users.name").
		Limit(pagination.PerPage).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch students")
	}

	return response.Paginated(c, rows, pagination)
}

// GetStudent handles GET /dashboard/admin/students/:id with the student's
// certificates inlined
func (h *StudentHandler) GetStudent(c *fiber.Ctx) error {
	var student model.User
	err := h.db.
		Where("role = ?", model.RoleStudent).
		First(&student, c.Params("id")).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	var certificates []model.Certificate
	err = h.db.
		Preload("Session").
		Where("student_id = ?", student.ID).
		Order("uploaded_at DESC").
		Find(&certificates).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch certificates")
	}

	return response.Success(c, fiber.Map{
		"student":      student,
		"certificates": certificates,
	})
}
