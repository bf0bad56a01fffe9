package model

import (
	"time"

	"gorm.io/gorm"
)

// SessionStatus is the lifecycle status of an academic session
type SessionStatus string

const (
	SessionActive    SessionStatus = "Active"
	SessionInactive  SessionStatus = "Inactive"
	SessionUpcoming  SessionStatus = "Upcoming"
	SessionCompleted SessionStatus = "Completed"
)

// Session represents an academic term/cohort that certificates are issued against
type Session struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Name      string         `gorm:"not null;uniqueIndex" json:"name"`
	StartDate time.Time      `gorm:"not null" json:"start_date"`
	EndDate   time.Time      `gorm:"not null" json:"end_date"`
	Status    SessionStatus  `gorm:"type:varchar(20);default:'Upcoming'" json:"status"`

	// Relationships
	Certificates []Certificate     `gorm:"foreignKey:SessionID" json:"-"`
	Lecturers    []LecturerSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// DeriveStatus computes the date-driven status for a session. Inactive is a
// manual override and is never changed automatically.
func DeriveStatus(current SessionStatus, start, end time.Time, now time.Time) SessionStatus {
	if current == SessionInactive {
		return SessionInactive
	}
	switch {
	case now.Before(start):
		return SessionUpcoming
	case now.After(end):
		return SessionCompleted
	default:
		return SessionActive
	}
}

// LecturerSession grants a lecturer visibility into a session's certificates
type LecturerSession struct {
	UserID     uint      `gorm:"primaryKey" json:"user_id"`
	SessionID  uint      `gorm:"primaryKey" json:"session_id"`
	AssignedAt time.Time `gorm:"autoCreateTime" json:"assigned_at"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Session Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"session,omitempty"`
}

func (LecturerSession) TableName() string {
	return "lecturer_sessions"
}
