package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/config"
	"github.com/kendall-kelly/delivery-marketplace-api/middleware"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.AutoMigrate(db), "Failed to migrate test database")
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, role string, grants ...string) *models.User {
	t.Helper()

	user := models.User{ID: id, Auth0ID: "auth0|" + id, Name: id, Email: id + "@example.com", Role: role}
	for _, g := range grants {
		user.Permissions = append(user.Permissions, models.UserPermission{Permission: g})
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// asUser installs user as both principal and effective identity, standing in
// for EnsureValidToken + LoadIdentity
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			middleware.SetIdentity(c, user, user, &models.Session{ID: user.ID, UserID: user.ID})
		}
		c.Next()
	}
}

func newTestRouter(identity gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(identity)
	return router
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Response should be valid JSON: %s", w.Body.String())
	return w, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}
