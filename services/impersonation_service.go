package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/policy"
	"gorm.io/gorm"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 500
)

// RequestMeta identifies where an impersonation request came from
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// IdentitySummary is the id/role pair reported by status checks
type IdentitySummary struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// ImpersonationStatus describes the override held by a session
type ImpersonationStatus struct {
	IsImpersonating bool             `json:"isImpersonating"`
	OriginalUser    *IdentitySummary `json:"originalUser,omitempty"`
	TargetUser      *IdentitySummary `json:"targetUser,omitempty"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
}

// ImpersonationLogFilter narrows the audit trail listing
type ImpersonationLogFilter struct {
	AdminID      string
	TargetUserID string
	Limit        int
}

// ImpersonationService lets authorized staff act as another user for the rest of a session
type ImpersonationService struct {
	db       *gorm.DB
	sessions SessionStore
	log      logger.Logger
	now      func() time.Time
}

// NewImpersonationService creates an impersonation service
func NewImpersonationService(db *gorm.DB, sessions SessionStore, log logger.Logger) *ImpersonationService {
	return &ImpersonationService{
		db:       db,
		sessions: sessions,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ImpersonationService) loadUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Permissions").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// CanImpersonate reports whether the user may start impersonations.
// Unknown users cannot.
func (s *ImpersonationService) CanImpersonate(ctx context.Context, userID string) (bool, error) {
	user, err := s.loadUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return policy.ForUser(user).Has(policy.UsersImpersonate), nil
}

// Start makes the session act as targetUserID. The session's principal must be
// allowed to impersonate and must not already be impersonating.
func (s *ImpersonationService) Start(ctx context.Context, session *models.Session, targetUserID string, meta RequestMeta) (*models.User, error) {
	allowed, err := s.CanImpersonate(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.ErrForbidden
	}
	if session.Impersonating() {
		return nil, models.ErrAlreadyImpersonating
	}
	if targetUserID == session.UserID {
		return nil, models.NewValidationError("userId", "cannot impersonate yourself")
	}

	original, err := s.loadUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	target, err := s.loadUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	// staff accounts are only reachable by full admins
	if (target.Role == models.RoleAdmin || target.Role == models.RoleSubadmin) && original.Role != models.RoleAdmin {
		return nil, models.ErrForbidden
	}

	s.audit(ctx, models.ImpersonationLog{
		AdminID:        original.ID,
		TargetUserID:   target.ID,
		TargetUserRole: target.Role,
		Action:         models.ImpersonationActionStart,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})

	session.ActiveOverride = &models.ImpersonationOverride{
		OriginalUserID:   original.ID,
		OriginalUserRole: original.Role,
		TargetUserID:     target.ID,
		TargetUserRole:   target.Role,
		StartedAt:        s.now(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		session.ActiveOverride = nil
		return nil, err
	}

	s.log.Info("impersonation started",
		logger.String("admin_id", original.ID),
		logger.String("target_user_id", target.ID),
		logger.String("target_role", target.Role),
	)
	return target, nil
}

// Stop restores the session's original identity
func (s *ImpersonationService) Stop(ctx context.Context, session *models.Session, meta RequestMeta) (*models.User, error) {
	override := session.ActiveOverride
	if override == nil {
		return nil, models.ErrNotImpersonating
	}

	original, err := s.loadUser(ctx, override.OriginalUserID)
	if errors.Is(err, models.ErrNotFound) {
		s.log.Error("ALERT: original user of an impersonation session no longer exists",
			logger.String("session_id", session.ID),
			logger.String("original_user_id", override.OriginalUserID),
			logger.String("target_user_id", override.TargetUserID),
			logger.Time("started_at", override.StartedAt),
		)
		return nil, models.ErrOriginalUserMissing
	}
	if err != nil {
		return nil, err
	}

	s.audit(ctx, models.ImpersonationLog{
		AdminID:        override.OriginalUserID,
		TargetUserID:   override.TargetUserID,
		TargetUserRole: override.TargetUserRole,
		Action:         models.ImpersonationActionStop,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})

	session.ActiveOverride = nil
	if err := s.sessions.Save(ctx, session); err != nil {
		session.ActiveOverride = override
		return nil, err
	}

	s.log.Info("impersonation stopped",
		logger.String("admin_id", override.OriginalUserID),
		logger.String("target_user_id", override.TargetUserID),
		logger.Duration("duration", s.now().Sub(override.StartedAt)),
	)
	return original, nil
}

// Status reports the session's override, if any
func (s *ImpersonationService) Status(session *models.Session) ImpersonationStatus {
	o := session.ActiveOverride
	if o == nil {
		return ImpersonationStatus{IsImpersonating: false}
	}
	startedAt := o.StartedAt
	return ImpersonationStatus{
		IsImpersonating: true,
		OriginalUser:    &IdentitySummary{ID: o.OriginalUserID, Role: o.OriginalUserRole},
		TargetUser:      &IdentitySummary{ID: o.TargetUserID, Role: o.TargetUserRole},
		StartedAt:       &startedAt,
	}
}

// ListLogs returns the audit trail, newest first
func (s *ImpersonationService) ListLogs(ctx context.Context, filter ImpersonationLogFilter) ([]models.ImpersonationLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	query := s.db.WithContext(ctx)
	if filter.AdminID != "" {
		query = query.Where("admin_id = ?", filter.AdminID)
	}
	if filter.TargetUserID != "" {
		query = query.Where("target_user_id = ?", filter.TargetUserID)
	}

	logs := []models.ImpersonationLog{}
	if err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list impersonation logs: %w", err)
	}
	return logs, nil
}

// audit appends a log entry. A failed write must not block start/stop,
// it is reported at error level for operators instead.
func (s *ImpersonationService) audit(ctx context.Context, entry models.ImpersonationLog) {
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Error("impersonation audit log write failed",
			logger.String("admin_id", entry.AdminID),
			logger.String("target_user_id", entry.TargetUserID),
			logger.String("action", entry.Action),
			logger.Error(err),
		)
	}
}
