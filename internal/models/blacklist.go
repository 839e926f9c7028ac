package models

import "time"

// BlacklistEntry is one command string that requires approval for an account.
type BlacklistEntry struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	AccountID string    `json:"account_id" gorm:"not null;uniqueIndex:idx_blacklist_account_command"`
	Command   string    `json:"command" gorm:"not null;uniqueIndex:idx_blacklist_account_command"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultBlacklist is seeded for new accounts when no policy file is configured.
var DefaultBlacklist = []string{"rm", "sudo", "fdisk", "mkfs"}
