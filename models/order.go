package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	StatusNew        OrderStatus = "new"         // created, no driver yet
	StatusPending    OrderStatus = "pending"     // driver assigned
	StatusInProgress OrderStatus = "in_progress"
	StatusPickedUp   OrderStatus = "picked_up"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// AllowedTransitions is the order state flow as code.
// new -> pending is taken only by driver assignment, which also moves any
// other non-terminal state back to pending.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	StatusNew:        {StatusPending, StatusCancelled},
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:   {StatusDelivered, StatusCancelled},
}

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusPending, StatusInProgress, StatusPickedUp, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// NeedsDriver reports whether an order in this status must have a driver
func (s OrderStatus) NeedsDriver() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPickedUp, StatusDelivered:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a documented edge
func CanTransition(from, to OrderStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Address is one end of a delivery
type Address struct {
	Street     string  `gorm:"column:street" json:"street"`
	City       string  `gorm:"column:city" json:"city"`
	PostalCode string  `gorm:"column:postal_code" json:"postal_code"`
	Latitude   float64 `gorm:"column:lat" json:"latitude"`
	Longitude  float64 `gorm:"column:lng" json:"longitude"`
}

// Location holds the pickup and dropoff addresses of an order
type Location struct {
	Pickup  Address `gorm:"embedded;embeddedPrefix:pickup_" json:"pickup"`
	Dropoff Address `gorm:"embedded;embeddedPrefix:dropoff_" json:"dropoff"`
}

// Order represents a delivery request in the system
type Order struct {
	ID                  string      `gorm:"primaryKey;size:64" json:"id"`
	RequestNumber       string      `gorm:"uniqueIndex;not null" json:"request_number"`
	CustomerID          string      `gorm:"size:64;not null;index" json:"customer_id"`
	Customer            *User       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	DriverID            *string     `gorm:"size:64;index" json:"driver_id"`
	Driver              *User       `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
	ServiceID           string      `gorm:"not null" json:"service_id"`
	SubcategoryID       *string     `gorm:"index" json:"subcategory_id,omitempty"`
	Status              OrderStatus `gorm:"not null;default:'new';index" json:"status"`
	Location            Location    `gorm:"embedded" json:"location"`
	Notes               *string     `gorm:"type:text" json:"notes"`
	AdminNotesDisplayed *string     `gorm:"type:text" json:"admin_notes_displayed"`
	ProofImageKey       *string     `json:"proof_image_key,omitempty"`          // S3 key of the delivery photo
	ProofImageURL       *string     `gorm:"-" json:"proof_image_url,omitempty"` // computed, presigned
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns a UUID when the caller did not supply an ID
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// AssignedTo reports whether userID is the order's driver
func (o *Order) AssignedTo(userID string) bool {
	return o.DriverID != nil && *o.DriverID == userID
}

// SubcategoryNote is operator guidance surfaced on orders for a subcategory
type SubcategoryNote struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	SubcategoryID string    `gorm:"not null;index" json:"subcategory_id"`
	Title         string    `gorm:"not null" json:"title"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	Priority      int       `gorm:"not null;default:0" json:"priority"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for the SubcategoryNote model
func (SubcategoryNote) TableName() string {
	return "subcategory_notes"
}

// BeforeCreate assigns a UUID when the caller did not supply an ID
func (n *SubcategoryNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
