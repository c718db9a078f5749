package services

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/policy"
	"gorm.io/gorm"
)

// NotificationPayload is the content written for every recipient of a fan-out
type NotificationPayload struct {
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
	Type    string `json:"type" validate:"omitempty,oneof=order_status system"`
}

var payloadValidator = newValidator()

// Validate checks the payload against its field rules
func (p NotificationPayload) Validate() error {
	return validateStruct(payloadValidator, p)
}

// FanoutResult summarises a best-effort fan-out. Writes are independent:
// a failure part way through leaves the earlier notifications in place.
type FanoutResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (r *FanoutResult) add(o FanoutResult) {
	r.Sent += o.Sent
	r.Failed += o.Failed
}

// NotificationService writes notifications and serves them back to their recipients
type NotificationService struct {
	db    *gorm.DB
	log   logger.Logger
	email EmailSender
}

// NewNotificationService creates a notification service without an email mirror
func NewNotificationService(db *gorm.DB, log logger.Logger) *NotificationService {
	return &NotificationService{db: db, log: log}
}

// WithEmail mirrors every written notification to the recipient's email address
func (s *NotificationService) WithEmail(sender EmailSender) *NotificationService {
	s.email = sender
	return s
}

// SendToUser writes one notification for userID
func (s *NotificationService) SendToUser(ctx context.Context, userID string, p NotificationPayload) (FanoutResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return FanoutResult{}, fmt.Errorf("recipient %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return FanoutResult{}, fmt.Errorf("failed to load recipient: %w", err)
	}
	return s.deliver(ctx, []models.User{user}, p), nil
}

// SendToRole writes one notification per user holding role, skipping excludeUserID
func (s *NotificationService) SendToRole(ctx context.Context, role string, p NotificationPayload, excludeUserID string) (FanoutResult, error) {
	users, err := s.recipients(ctx, s.db.WithContext(ctx).Where("role = ?", role))
	if err != nil {
		return FanoutResult{}, err
	}
	return s.deliver(ctx, without(users, excludeUserID), p), nil
}

// SendToAll writes one notification per user, skipping excludeUserID
func (s *NotificationService) SendToAll(ctx context.Context, p NotificationPayload, excludeUserID string) (FanoutResult, error) {
	users, err := s.recipients(ctx, s.db.WithContext(ctx))
	if err != nil {
		return FanoutResult{}, err
	}
	return s.deliver(ctx, without(users, excludeUserID), p), nil
}

// SendToAllExceptRoles writes one notification per user whose role is not listed
func (s *NotificationService) SendToAllExceptRoles(ctx context.Context, roles []string, p NotificationPayload) (FanoutResult, error) {
	query := s.db.WithContext(ctx)
	if len(roles) > 0 {
		query = query.Where("role NOT IN ?", roles)
	}
	users, err := s.recipients(ctx, query)
	if err != nil {
		return FanoutResult{}, err
	}
	return s.deliver(ctx, users, p), nil
}

// SendToFilteredUsers writes one notification per user accepted by keep
func (s *NotificationService) SendToFilteredUsers(ctx context.Context, keep func(models.User) bool, p NotificationPayload) (FanoutResult, error) {
	users, err := s.recipients(ctx, s.db.WithContext(ctx))
	if err != nil {
		return FanoutResult{}, err
	}

	selected := users[:0]
	for _, u := range users {
		if keep(u) {
			selected = append(selected, u)
		}
	}
	return s.deliver(ctx, selected, p), nil
}

func (s *NotificationService) recipients(ctx context.Context, query *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := query.Order("created_at").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	return users, nil
}

func without(users []models.User, excludeUserID string) []models.User {
	if excludeUserID == "" {
		return users
	}
	out := users[:0]
	for _, u := range users {
		if u.ID != excludeUserID {
			out = append(out, u)
		}
	}
	return out
}

func (s *NotificationService) deliver(ctx context.Context, users []models.User, p NotificationPayload) FanoutResult {
	kind := p.Type
	if kind == "" {
		kind = models.NotificationTypeSystem
	}

	var result FanoutResult
	for _, u := range users {
		n := models.Notification{UserID: u.ID, Title: p.Title, Message: p.Message, Type: kind}
		if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
			s.log.Warn("notification write failed",
				logger.String("user_id", u.ID),
				logger.String("title", p.Title),
				logger.Error(err),
			)
			result.Failed++
			continue
		}
		result.Sent++
		s.mirror(ctx, u, p)
	}
	return result
}

func (s *NotificationService) mirror(ctx context.Context, u models.User, p NotificationPayload) {
	if s.email == nil || u.Email == "" {
		return
	}
	body := "<p>" + html.EscapeString(p.Message) + "</p>"
	if err := s.email.SendEmail(ctx, u.Email, p.Title, p.Message, body); err != nil {
		s.log.Warn("notification email failed",
			logger.String("user_id", u.ID),
			logger.Error(err),
		)
	}
}

// ListForUser returns the user's notifications, newest first
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	notifications := []models.Notification{}
	if err := query.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount counts the user's unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read.
// Notifications of other users are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&n).Update("read", true).Error; err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n.Read = true
	return &n, nil
}

// MarkAllRead marks every unread notification of the user as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes a notification owned by the caller, or any notification
// when the caller manages notifications
func (s *NotificationService) Delete(ctx context.Context, caller policy.Caller, id string) error {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}

	if n.UserID != caller.UserID && !caller.Can(policy.NotificationsManage) {
		return models.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(&n).Error; err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}
