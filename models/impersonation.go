package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Impersonation log actions
const (
	ImpersonationActionStart = "start"
	ImpersonationActionStop  = "stop"
)

// ImpersonationLog is an append-only audit record of impersonation start/stop
type ImpersonationLog struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	AdminID        string    `gorm:"size:64;not null;index" json:"admin_id"`
	TargetUserID   string    `gorm:"size:64;not null;index" json:"target_user_id"`
	TargetUserRole string    `gorm:"not null" json:"target_user_role"`
	Action         string    `gorm:"not null" json:"action"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the ImpersonationLog model
func (ImpersonationLog) TableName() string {
	return "impersonation_logs"
}

// BeforeCreate assigns a UUID when the caller did not supply an ID
func (l *ImpersonationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
