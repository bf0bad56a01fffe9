package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certificate represents an issued completion certificate.
//
// Lifecycle: issued (row exists, PermanentURL empty) -> archived
// (PermanentURL set) with revoke/restore as an idempotent flag flip on top.
// Restoring keeps the original locator, and no transition is blocked by the
// current state.
type Certificate struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	StudentID   uint           `gorm:"not null;index" json:"student_id"`
	SessionID   uint           `gorm:"not null;index" json:"session_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `json:"description,omitempty"`
	UploadedAt  time.Time      `gorm:"not null" json:"uploaded_at"`
	Revoked     bool           `gorm:"default:false" json:"revoked"`

	// VerifyID is the public identifier served on the verification route.
	VerifyID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"verify_id"`

	// PermanentURL/PermanentTxID are the locator and transaction identifier
	// returned by the permanent-storage network, stored verbatim. Empty
	// until the certificate has been archived.
	PermanentURL  string `json:"permanent_url,omitempty"`
	PermanentTxID string `json:"permanent_tx_id,omitempty"`

	// StorageURL is the object-storage copy of the exported document.
	StorageURL string `json:"storage_url,omitempty"`

	RegeneratedAt *time.Time `json:"regenerated_at,omitempty"`

	// Relationships
	Student User    `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Session Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

// Archived reports whether the certificate has a permanent locator
func (c *Certificate) Archived() bool {
	return c.PermanentURL != ""
}
