package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/middleware"
	"github.com/scholarproof/api/utils/response"
)

// RefreshRequest carries the refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse carries the new access token
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// RefreshToken exchanges a valid refresh token for a new access token
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid refresh token")
	}
	if claims.TokenType != "refresh" {
		return response.Unauthorized(c, "Invalid token type")
	}

	// Check the refresh token has not been revoked
	revoked, err := h.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if revoked {
		return response.Unauthorized(c, "Token has been revoked")
	}

	// Verify the token version still matches
	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User not found")
	}
	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	accessToken, _, err := h.jwtManager.RefreshAccessToken(req.RefreshToken, user.TokenVersion)
	if err != nil {
		return response.Unauthorized(c, "Failed to refresh token")
	}

	return response.Success(c, RefreshResponse{
		AccessToken: accessToken,
		ExpiresIn:   24 * 60 * 60,
	})
}

// Logout blacklists the current access token and clears the session cookie
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	err := h.blacklistService.RevokeToken(c.Context(), claims.ID, claims.UserID, claims.ExpiresAt.Time, "logout")
	if err != nil {
		return response.InternalServerError(c, "Failed to revoke token")
	}

	// Drop the cached role so a later role change is picked up on the
	// next login
	if h.roleCache != nil {
		h.roleCache.Invalidate(c.Context(), claims.UserID)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
		MaxAge:   -1,
	})

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}
