package models

import "time"

// ImpersonationOverride replaces the effective identity of a session.
// The original identity is always recoverable from it.
type ImpersonationOverride struct {
	OriginalUserID   string    `json:"original_user_id"`
	OriginalUserRole string    `json:"original_user_role"`
	TargetUserID     string    `json:"target_user_id"`
	TargetUserRole   string    `json:"target_user_role"`
	StartedAt        time.Time `json:"started_at"`
}

// Session is the per-caller state kept between requests. Sessions are keyed
// by (user, id): the same id presented by two principals names two sessions.
type Session struct {
	ID             string                 `gorm:"primaryKey;size:128" json:"id"`
	UserID         string                 `gorm:"primaryKey;size:64" json:"user_id"` // authenticated principal, part of the key
	ActiveOverride *ImpersonationOverride `gorm:"serializer:json" json:"active_override,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TableName specifies the table name for the Session model
func (Session) TableName() string {
	return "sessions"
}

// EffectiveUserID is the identity requests in this session act as
func (s *Session) EffectiveUserID() string {
	if s.ActiveOverride != nil {
		return s.ActiveOverride.TargetUserID
	}
	return s.UserID
}

// Impersonating reports whether an override is active
func (s *Session) Impersonating() bool {
	return s.ActiveOverride != nil
}
