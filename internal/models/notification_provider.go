package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationProvider is a shoutrrr destination that receives a message when one
// of the account's endpoints parks a command for approval.
type NotificationProvider struct {
	ID        string `gorm:"primaryKey" json:"id"`
	AccountID string `json:"account_id" gorm:"index;not null"`
	Name      string `json:"name"`
	URL       string `json:"url"` // shoutrrr service URL, e.g. discord://token@id
	Enabled   bool   `json:"enabled" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *NotificationProvider) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
