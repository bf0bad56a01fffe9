package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/services"
	"github.com/scholarproof/api/services/storage"
	authutil "github.com/scholarproof/api/utils/auth"
	"github.com/scholarproof/api/utils/middleware"
	"github.com/scholarproof/api/utils/response"
	"github.com/scholarproof/api/utils/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	roleCache            *services.CachedRoleResolver
	spaces               *storage.SpacesClient
	validator            *validation.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection, roleCache *services.CachedRoleResolver, spaces *storage.SpacesClient) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: bruteForceProtection,
		roleCache:            roleCache,
		spaces:               spaces,
		validator:            validation.NewValidator(),
	}
}

// RegisterRequest represents a signup request. An invite code elevates the
// account to the code's role; without one the account is a student.
type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Name       string `json:"name" validate:"required,min=2"`
	InviteCode string `json:"invite_code,omitempty"`
}

// AuthResponse represents a successful registration or login response
type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID                uint       `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	Role              model.Role `json:"role"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:                user.ID,
		Email:             user.Email,
		Name:              user.Name,
		Role:              user.Role,
		ProfilePictureURL: user.ProfilePictureURL,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
	}
}

// errInviteCode distinguishes a rejected invite code inside the signup
// transaction from an infrastructure failure
var errInviteCode = fiber.NewError(fiber.StatusBadRequest, "Invalid or used invite code")

// Register handles user signup
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	// Check if user already exists
	var existingUser model.User
	if err := h.db.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		return response.Conflict(c, "User with this email already exists")
	}

	hashedPassword, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Role:         model.RoleStudent,
	}

	// Creating the user and claiming the invite code happen in one
	// transaction: a rejected code must leave no user row behind, and two
	// signups racing on the same code must not both win.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if req.InviteCode != "" {
			var code model.InviteCode
			if err := tx.Where("code = ?", req.InviteCode).First(&code).Error; err != nil {
				return errInviteCode
			}
			user.Role = code.Role
		}

		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		if req.InviteCode != "" {
			// Conditional claim: zero rows affected means another signup
			// already consumed the code
			result := tx.Model(&model.InviteCode{}).
				Where("code = ? AND used = ?", req.InviteCode, false).
				Updates(map[string]interface{}{"used": true, "used_by_id": user.ID})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errInviteCode
			}
		}

		return nil
	})
	if err != nil {
		if err == errInviteCode {
			return response.BadRequest(c, "Invalid or used invite code")
		}
		return response.InternalServerError(c, "Failed to create user")
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate refresh token")
	}

	return response.Created(c, AuthResponse{
		User:         toUserResponse(&user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    24 * 60 * 60,
	})
}
