package domain

import "time"

// Session is one refresh-token record. FamilyID links every record produced
// by successive rotations of a single login; the record that starts a family
// uses its own ID as the family id.
type Session struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID  string    `gorm:"size:36;index;not null" json:"account_id"`
	TokenHash  string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	FamilyID   string    `gorm:"size:36;index;not null" json:"-"`
	UserAgent  string    `gorm:"size:512" json:"user_agent"`
	IP         string    `gorm:"size:64" json:"ip"`
	ExpiresAt  time.Time `gorm:"index;not null" json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}
