package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Endpoint is a registered agent installation. The (hostname, os_user, account_id)
// tuple identifies at most one row; re-registration refreshes the existing one.
type Endpoint struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	AccountID     string    `json:"account_id" gorm:"not null;uniqueIndex:idx_endpoint_identity;index"`
	Name          string    `json:"name"`
	Hostname      string    `json:"hostname" gorm:"not null;uniqueIndex:idx_endpoint_identity"`
	OSUser        string    `json:"os_user" gorm:"column:os_user;not null;uniqueIndex:idx_endpoint_identity"`
	SourceAddress string    `json:"source_address"`
	OSInfo        string    `json:"os_info" gorm:"column:os_info"`
	Active        bool      `json:"active" gorm:"default:true"`
	TokenHash     string    `json:"-"`
	LastSeen      time.Time `json:"last_seen" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (e *Endpoint) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.LastSeen.IsZero() {
		e.LastSeen = time.Now().UTC()
	}
	return
}
