package model

import (
	"time"
)

// InviteCode elevates a signup to lecturer or admin. A code is consumed
// exactly once; redemption is a conditional update on used=false so two
// concurrent signups cannot both claim the same code.
type InviteCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Code      string    `gorm:"uniqueIndex;not null" json:"code"`
	Role      Role      `gorm:"type:varchar(20);not null" json:"role"` // lecturer or admin
	Used      bool      `gorm:"default:false" json:"used"`
	UsedByID  *uint     `json:"used_by_id,omitempty"`

	// Relationships
	UsedBy *User `gorm:"foreignKey:UsedByID" json:"-"`
}

func (InviteCode) TableName() string {
	return "invite_codes"
}
