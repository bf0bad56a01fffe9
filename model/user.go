package model

import (
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of dashboard roles.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a raw role string against the closed set
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Valid reports whether the role is one of the three known roles
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// User represents a registered user in the system
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email             string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash      string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name              string         `gorm:"not null" json:"name"`
	Role              Role           `gorm:"type:varchar(20);default:'student'" json:"role"` // student, lecturer, admin
	ProfilePictureURL string         `json:"profile_picture_url,omitempty"`
	TokenVersion      int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Certificates     []Certificate       `gorm:"foreignKey:StudentID" json:"-"`
	LecturerSessions []LecturerSession   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist   []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AdminAuditLog    []AdminAuditLog     `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"-"`
}
