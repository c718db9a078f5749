package testutil

import (
	"testing"
	"time"

	"github.com/kendall-kelly/delivery-marketplace-api/config"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB opens a migrated in-memory SQLite database
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.AutoMigrate(db), "Failed to migrate test database")
	return db
}

// SeedUser inserts a user whose Auth0 ID is "auth0|"+id
func SeedUser(t *testing.T, db *gorm.DB, id, role string, grants ...string) *models.User {
	t.Helper()

	user := models.User{ID: id, Auth0ID: "auth0|" + id, Name: id, Email: id + "@example.com", Role: role}
	for _, g := range grants {
		user.Permissions = append(user.Permissions, models.UserPermission{Permission: g})
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// TestConfig is a configuration suitable for routers under test
func TestConfig() *config.Config {
	return &config.Config{
		DatabaseURL:    "sqlite::memory:",
		Port:           "8080",
		GoEnv:          "test",
		Auth0Domain:    "test.auth0.com",
		Auth0Audience:  "https://api.test.com",
		AWSRegion:      "us-east-1",
		LogLevel:       "debug",
		SessionBackend: config.SessionBackendDatabase,
		SessionTTL:     24 * time.Hour,
		CORSOrigins:    []string{"http://localhost:5173"},
	}
}
