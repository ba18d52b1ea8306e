package domain

import "time"

// DefaultGroupName is the floor membership for every non-elevated account.
// The default group cannot be deleted and can never mandate TOTP.
const DefaultGroupName = "default"

type Group struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:512" json:"description"`
	RequireTOTP bool      `gorm:"not null;default:false" json:"require_totp"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Membership struct {
	AccountID string    `gorm:"primaryKey;size:36" json:"account_id"`
	GroupID   string    `gorm:"primaryKey;size:36" json:"group_id"`
	Role      Role      `gorm:"size:16;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
