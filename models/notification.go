package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types
const (
	NotificationTypeOrderStatus = "order_status"
	NotificationTypeSystem      = "system"
)

// Notification is a message addressed to a single user
type Notification struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"` // recipient
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"not null;default:'system'" json:"type"`
	Read      bool      `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns a UUID when the caller did not supply an ID
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
