package auth

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	authutil "github.com/scholarproof/api/utils/auth"
	"github.com/scholarproof/api/utils/middleware"
	"github.com/scholarproof/api/utils/response"
	"github.com/scholarproof/api/utils/validation"
)

// UpdateProfileRequest updates the fields a user owns about themselves
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// GetProfile returns the authenticated user's profile
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	return response.Success(c, toUserResponse(user))
}

// UpdateProfile updates the authenticated user's name
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if err := h.db.Model(user).Update("name", req.Name).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	user.Name = req.Name
	return response.Success(c, toUserResponse(user))
}

// ChangePasswordRequest rotates the authenticated user's password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePassword verifies the current password, stores the new hash and
// bumps the user's token version so every previously issued token stops
// validating. The caller has to log in again.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if err := authutil.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return response.Unauthorized(c, "Current password is incorrect")
	}

	hashed, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		if errors.Is(err, authutil.ErrPasswordTooShort) {
			return response.BadRequest(c, "Password must be at least 8 characters")
		}
		return response.InternalServerError(c, "Failed to change password")
	}

	if err := h.db.Model(user).Update("password_hash", hashed).Error; err != nil {
		return response.InternalServerError(c, "Failed to change password")
	}

	if err := h.blacklistService.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to revoke existing sessions")
	}

	if h.roleCache != nil {
		h.roleCache.Invalidate(c.Context(), user.ID)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
		MaxAge:   -1,
	})

	return response.SuccessWithMessage(c, "Password changed, please log in again", nil)
}

var allowedPictureExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// UploadProfilePicture stores a new profile picture in object storage and
// records its public URL on the user
func (h *AuthHandler) UploadProfilePicture(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	if h.spaces == nil {
		return response.InternalServerError(c, "Object storage is not configured")
	}

	fileHeader, err := c.FormFile("picture")
	if err != nil {
		return response.BadRequest(c, "Picture file is required")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := allowedPictureExtensions[ext]
	if !ok {
		return response.BadRequest(c, "Picture must be a PNG, JPEG or WebP image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	key := fmt.Sprintf("profiles/%d%s", user.ID, ext)
	url, err := h.spaces.UploadFile(c.Context(), key, file, contentType)
	if err != nil {
		return response.InternalServerError(c, "Failed to store profile picture")
	}

	if err := h.db.Model(user).Update("profile_picture_url", url).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	user.ProfilePictureURL = url
	return response.Success(c, toUserResponse(user))
}
