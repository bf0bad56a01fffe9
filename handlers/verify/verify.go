package verify

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/scholarproof/api/database"
	"github.com/scholarproof/api/utils/response"
)

// VerifyHandler serves the public certificate verification route. It reads
// through the raw SQL store so the unauthenticated path stays a single
// point lookup.
type VerifyHandler struct {
	store *database.PostgreSQLStore
}

// NewVerifyHandler creates a new verification handler
func NewVerifyHandler(store *database.PostgreSQLStore) *VerifyHandler {
	return &VerifyHandler{store: store}
}

// VerificationResponse is the public view of a verified certificate
type VerificationResponse struct {
	Valid        bool       `json:"valid"`
	Title        string     `json:"title,omitempty"`
	StudentName  string     `json:"student_name,omitempty"`
	SessionName  string     `json:"session_name,omitempty"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
	PermanentURL string     `json:"permanent_url,omitempty"`
}

// VerifyCertificate handles GET /verify/:verify_id. Revoked certificates
// are reported invalid with no further detail.
func (h *VerifyHandler) VerifyCertificate(c *fiber.Ctx) error {
	verifyID, err := uuid.Parse(c.Params("verify_id"))
	if err != nil {
		return response.NotFound(c, "Certificate not found")
	}

	row, err := h.store.LookupVerification(c.Context(), verifyID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.NotFound(c, "Certificate not found")
		}
		return response.InternalServerError(c, "Verification lookup failed")
	}

	if row.Revoked {
		return response.Success(c, VerificationResponse{Valid: false})
	}

	issued := row.IssuedAt
	return response.Success(c, VerificationResponse{
		Valid:        true,
		Title:        row.Title,
		StudentName:  row.StudentName,
		SessionName:  row.SessionName,
		IssuedAt:     &issued,
		PermanentURL: row.PermanentURL.String,
	})
}
