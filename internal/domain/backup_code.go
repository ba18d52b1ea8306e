package domain

import "time"

// UsedBackupCode marks a backup code as spent. The composite primary key is
// the uniqueness constraint that makes redemption exactly-once: the insert
// either succeeds (code accepted) or violates the key (code already spent).
type UsedBackupCode struct {
	AccountID string    `gorm:"primaryKey;size:36" json:"account_id"`
	CodeHash  string    `gorm:"primaryKey;size:128" json:"-"`
	UsedAt    time.Time `json:"used_at"`
}
