package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"gorm.io/gorm"
)

// CreateNoteInput is the body accepted when adding a subcategory note
type CreateNoteInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required,max=2000"`
	Priority int    `json:"priority" validate:"gte=0"`
	IsActive *bool  `json:"isActive"`
}

// NoteService manages the admin notes injected into new orders
type NoteService struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewNoteService creates a note service
func NewNoteService(db *gorm.DB) *NoteService {
	return &NoteService{db: db, validate: newValidator()}
}

// ListNotes returns every note of a subcategory, highest priority first
func (s *NoteService) ListNotes(ctx context.Context, subcategoryID string) ([]models.SubcategoryNote, error) {
	notes := []models.SubcategoryNote{}
	err := s.db.WithContext(ctx).
		Where("subcategory_id = ?", subcategoryID).
		Order("priority DESC").Order("created_at").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// CreateNote adds a note; notes are active unless isActive is false
func (s *NoteService) CreateNote(ctx context.Context, subcategoryID string, in CreateNoteInput) (*models.SubcategoryNote, error) {
	if subcategoryID == "" {
		return nil, models.NewValidationError("subcategoryId", "subcategoryId is required")
	}
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	note := models.SubcategoryNote{
		SubcategoryID: subcategoryID,
		Title:         in.Title,
		Content:       in.Content,
		Priority:      in.Priority,
		IsActive:      active,
	}
	// gorm skips zero values that have a default tag, so is_active=false is written explicitly
	if err := s.db.WithContext(ctx).Select("*").Create(&note).Error; err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return &note, nil
}
