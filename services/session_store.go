package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionStore persists per-caller session state between requests
type SessionStore interface {
	// Load returns principalID's session stored under id, or a fresh one.
	// Ids are scoped to the principal, so another principal's session is
	// never read or overwritten.
	Load(ctx context.Context, id, principalID string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
}

func freshSession(id, principalID string) *models.Session {
	return &models.Session{ID: id, UserID: principalID}
}

// GormSessionStore keeps sessions in the sessions table
type GormSessionStore struct {
	db *gorm.DB
}

// NewGormSessionStore creates a database-backed session store
func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

func (s *GormSessionStore) Load(ctx context.Context, id, principalID string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, principalID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return freshSession(id, principalID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

func (s *GormSessionStore) Save(ctx context.Context, session *models.Session) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}, {Name: "user_id"}}, UpdateAll: true}).
		Create(session).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

const sessionKeyFormat = "session:%s:%s"

// RedisSessionStore keeps sessions as JSON values with a sliding TTL
type RedisSessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: client, ttl: ttl}
}

func sessionKey(principalID, id string) string {
	return fmt.Sprintf(sessionKeyFormat, principalID, id)
}

func (s *RedisSessionStore) Load(ctx context.Context, id, principalID string) (*models.Session, error) {
	val, err := s.redis.Get(ctx, sessionKey(principalID, id)).Bytes()
	if err == redis.Nil {
		return freshSession(id, principalID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	val, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.UserID, session.ID), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
