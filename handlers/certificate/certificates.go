package certificate

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/services"
	"github.com/scholarproof/api/services/permastore"
	"github.com/scholarproof/api/services/render"
	"github.com/scholarproof/api/utils/middleware"
	"github.com/scholarproof/api/utils/response"
	"github.com/scholarproof/api/utils/validation"
)

// CertificateHandler handles certificate requests across all three
// dashboards. Every read is scoped to what the caller's role may see.
type CertificateHandler struct {
	db        *gorm.DB
	service   *services.CertificateService
	validator *validation.Validator
}

// NewCertificateHandler creates a new certificate handler
func NewCertificateHandler(db *gorm.DB, service *services.CertificateService) *CertificateHandler {
	return &CertificateHandler{
		db:        db,
		service:   service,
		validator: validation.NewValidator(),
	}
}

// IssueCertificateRequest represents the request body for issuing a certificate
type IssueCertificateRequest struct {
	StudentID   uint   `json:"student_id" validate:"required"`
	SessionID   uint   `json:"session_id" validate:"required"`
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// scopedQuery narrows a certificate query to the rows the caller may see:
// students their own, lecturers their assigned sessions, admins everything.
func (h *CertificateHandler) scopedQuery(c *fiber.Ctx) (*gorm.DB, error) {
	role, ok := middleware.GuardRole(c)
	if !ok {
		return nil, errors.New("no resolved role")
	}
	userID, ok := middleware.GuardUserID(c)
	if !ok {
		return nil, errors.New("no resolved user")
	}

	query := h.db.Model(&model.Certificate{})

	switch role {
	case model.RoleAdmin:
		return query, nil
	case model.RoleStudent:
		return query.Where("certificates.student_id = ?", userID), nil
	case model.RoleLecturer:
		return query.Where(
			"certificates.session_id IN (?)",
			h.db.Model(&model.LecturerSession{}).
				Select("session_id").
				Where("user_id = ?", userID),
		), nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

// ListCertificates handles the certificate list on every dashboard
func (h *CertificateHandler) ListCertificates(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(response.DefaultPageSize)))

	query, err := h.scopedQuery(c)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.
			Joins("JOIN users ON users.id = certificates.student_id").
			Where("certificates.title ILIKE ? OR users.name ILIKE ?", pattern, pattern)
	}
	if sessionID := c.Query("session_id"); sessionID != "" {
		query = query.Where("certificates.session_id = ?", sessionID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count certificates")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var certificates []model.Certificate
	err = query.
		Preload("Student").
		Preload("Session").
		Order("certificates.uploaded_at DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&certificates).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch certificates")
	}

	return response.Paginated(c, certificates, pagination)
}

// loadScoped fetches one certificate if the caller's scope includes it
func (h *CertificateHandler) loadScoped(c *fiber.Ctx) (*model.Certificate, error) {
	query, err := h.scopedQuery(c)
	if err != nil {
		return nil, err
	}

	var cert model.Certificate
	err = query.
		Preload("Student").
		Preload("Session").
		Where("certificates.id = ?", c.Params("id")).
		First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// GetCertificate handles the certificate detail view
func (h *CertificateHandler) GetCertificate(c *fiber.Ctx) error {
	cert, err := h.loadScoped(c)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Certificate not found")
		}
		return response.InternalServerError(c, "Failed to fetch certificate")
	}

	return response.Success(c, cert)
}

// IssueCertificate handles POST /dashboard/admin/certificates
func (h *CertificateHandler) IssueCertificate(c *fiber.Ctx) error {
	var req IssueCertificateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	description := req.Description
	if description == "" {
		description = render.DefaultDescription
	}

	cert, err := h.service.Issue(c.Context(), services.IssueParams{
		StudentID:   req.StudentID,
		SessionID:   req.SessionID,
		Title:       req.Title,
		Description: description,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStudentNotFound):
			return response.BadRequest(c, "Student not found")
		case errors.Is(err, services.ErrSessionNotFound):
			return response.BadRequest(c, "Session not found")
		default:
			return response.InternalServerError(c, "Failed to issue certificate")
		}
	}

	return response.Created(c, cert)
}

// ExportCertificate handles the download link on the certificate view.
// Revoked certificates have no download anywhere, for any role.
func (h *CertificateHandler) ExportCertificate(c *fiber.Ctx) error {
	cert, err := h.loadScoped(c)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Certificate not found")
		}
		return response.InternalServerError(c, "Failed to fetch certificate")
	}

	format, ok := render.ParseFormat(c.Query("format", "pdf"))
	if !ok {
		return response.BadRequest(c, "format must be png or pdf")
	}

	data, err := h.service.Export(c.Context(), cert.ID, format)
	if err != nil {
		if errors.Is(err, services.ErrRevokedCertificate) {
			return response.Forbidden(c, "Certificate has been revoked")
		}
		return response.InternalServerError(c, "Failed to export certificate")
	}

	filename := fmt.Sprintf("certificate-%s.%s", cert.VerifyID, format)
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}

// RevokeCertificate handles POST /dashboard/admin/certificates/:id/revoke
func (h *CertificateHandler) RevokeCertificate(c *fiber.Ctx) error {
	return h.setRevoked(c, true)
}

// RestoreCertificate handles POST /dashboard/admin/certificates/:id/restore.
// Restoring an archived certificate keeps its original permanent locator.
func (h *CertificateHandler) RestoreCertificate(c *fiber.Ctx) error {
	return h.setRevoked(c, false)
}

func (h *CertificateHandler) setRevoked(c *fiber.Ctx, revoked bool) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid certificate id")
	}

	cert, err := h.service.SetRevoked(c.Context(), uint(id), revoked)
	if err != nil {
		if errors.Is(err, services.ErrCertificateNotFound) {
			return response.NotFound(c, "Certificate not found")
		}
		return response.InternalServerError(c, "Failed to update certificate")
	}

	return response.Success(c, cert)
}

// ArchiveCertificate handles POST /dashboard/admin/certificates/:id/archive.
// On upload failure the certificate keeps its issued state and the admin can
// retry.
func (h *CertificateHandler) ArchiveCertificate(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid certificate id")
	}

	cert, err := h.service.Archive(c.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCertificateNotFound):
			return response.NotFound(c, "Certificate not found")
		case errors.Is(err, services.ErrRevokedCertificate):
			return response.Forbidden(c, "Certificate has been revoked")
		case errors.Is(err, permastore.ErrArchiveFailed):
			return response.Error(c, fiber.StatusBadGateway, "Permanent storage upload failed", "ARCHIVE_FAILED")
		default:
			return response.InternalServerError(c, "Failed to archive certificate")
		}
	}

	return response.Success(c, cert)
}

// RegenerateCertificate handles POST /dashboard/admin/certificates/:id/regenerate
func (h *CertificateHandler) RegenerateCertificate(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid certificate id")
	}

	cert, err := h.service.Regenerate(c.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCertificateNotFound):
			return response.NotFound(c, "Certificate not found")
		case errors.Is(err, services.ErrRevokedCertificate):
			return response.Forbidden(c, "Certificate has been revoked")
		default:
			return response.InternalServerError(c, "Failed to regenerate certificate")
		}
	}

	return response.Success(c, cert)
}
