package domain

import "time"

type Account struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Username         string     `gorm:"size:128;uniqueIndex;not null" json:"username"`
	PasswordHash     string     `gorm:"size:128;not null" json:"-"`
	Elevated         bool       `gorm:"not null;default:false" json:"elevated"`
	TOTPSecret       *string    `gorm:"size:64" json:"-"`
	TOTPEnabled      bool       `gorm:"not null;default:false" json:"totp_enabled"`
	BackupCodeHashes []string   `gorm:"serializer:json" json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
