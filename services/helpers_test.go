package services

import (
	"errors"
	"testing"

	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")

	// every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserPermission{},
		&models.Order{},
		&models.SubcategoryNote{},
		&models.Notification{},
		&models.ImpersonationLog{},
		&models.Session{},
	), "Failed to migrate test database")

	return db
}

func newObservedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func createUser(t *testing.T, db *gorm.DB, id, role string, grants ...string) models.User {
	t.Helper()

	user := models.User{
		ID:      id,
		Auth0ID: "auth0|" + id,
		Name:    id,
		Email:   id + "@example.com",
		Role:    role,
	}
	for _, g := range grants {
		user.Permissions = append(user.Permissions, models.UserPermission{Permission: g})
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

var errInjected = errors.New("injected failure")

// failCreatesFor makes every insert into table fail while the test runs
func failCreatesFor(t *testing.T, db *gorm.DB, table string) {
	t.Helper()

	name := "test:fail_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errInjected)
		}
	}))
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove(name)
	})
}

// failCreatesWhen fails inserts into table for rows matching pred
func failCreatesWhen(t *testing.T, db *gorm.DB, table string, pred func(tx *gorm.DB) bool) {
	t.Helper()

	name := "test:fail_when_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table && pred(tx) {
			_ = tx.AddError(errInjected)
		}
	}))
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove(name)
	})
}

