package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles
const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
	RoleSubadmin = "subadmin"
)

// Permission grants held by subadmins
const (
	PermissionUserImpersonation   = "user_impersonation"
	PermissionNotificationsManage = "notifications_manage"
)

// User represents a marketplace account (customer, driver, admin or subadmin)
type User struct {
	ID          string           `gorm:"primaryKey;size:64" json:"id"`
	Auth0ID     string           `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name        string           `gorm:"not null" json:"name"`
	Email       string           `gorm:"uniqueIndex;not null" json:"email"`
	Role        string           `gorm:"not null;default:'customer';index" json:"role"`
	Permissions []UserPermission `gorm:"foreignKey:UserID" json:"permissions,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID when the caller did not supply an ID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// PermissionNames lists the grants loaded on the user
func (u *User) PermissionNames() []string {
	names := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		names = append(names, p.Permission)
	}
	return names
}

// UserPermission is a single capability grant for a subadmin
type UserPermission struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:idx_user_permission" json:"user_id"`
	Permission string    `gorm:"not null;uniqueIndex:idx_user_permission" json:"permission"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the UserPermission model
func (UserPermission) TableName() string {
	return "user_permissions"
}
