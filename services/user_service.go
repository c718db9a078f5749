package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"gorm.io/gorm"
)

// ErrUserExists is returned when a profile already exists for the Auth0 ID or email
var ErrUserExists = errors.New("user already exists")

// UserService looks up and provisions user profiles
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// FindByAuth0ID loads the user behind a token subject, with permission grants
func (s *UserService) FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	return s.find(ctx, "auth0_id = ?", auth0ID)
}

// FindByID loads a user with permission grants
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.find(ctx, "id = ?", id)
}

func (s *UserService) find(ctx context.Context, cond string, arg string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Permissions").Where(cond, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// CreateProfile provisions a customer or driver profile for a new Auth0 identity
func (s *UserService) CreateProfile(ctx context.Context, auth0ID, name, email, role string) (*models.User, error) {
	if role != models.RoleCustomer && role != models.RoleDriver {
		role = models.RoleCustomer
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   email,
		Role:    role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// duplicate detection that works with both PostgreSQL and SQLite
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// ProfileUpdate carries optional profile changes
type ProfileUpdate struct {
	Name  string `json:"name" validate:"omitempty,max=255"`
	Email string `json:"email" validate:"omitempty,email"`
}

var profileValidator = newValidator()

// UpdateProfile changes the name and/or email of a user; empty fields are left as they are
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.User, error) {
	if err := validateStruct(profileValidator, in); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if in.Name != "" {
		updates["name"] = in.Name
	}
	if in.Email != "" {
		updates["email"] = in.Email
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			msg := strings.ToLower(res.Error.Error())
			if strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique") {
				return nil, ErrUserExists
			}
			return nil, fmt.Errorf("failed to update user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, models.ErrNotFound
		}
	}
	return s.FindByID(ctx, id)
}
