package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/middleware"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/policy"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// impersonationRouter runs the real identity middleware so that a started
// override changes who later requests act as
func impersonationRouter(db *gorm.DB, auth0ID string) *gin.Engine {
	log := logger.NewNop()
	sessions := services.NewGormSessionStore(db)
	ctl := NewImpersonationController(services.NewImpersonationService(db, sessions, log), log, false)
	users := NewUserController(services.NewUserService(db), nil, log, false)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Next()
	}, middleware.LoadIdentity(services.NewUserService(db), sessions, log))

	api := router.Group("/api")
	api.GET("/users/me", users.Me)
	imp := api.Group("/impersonate")
	imp.POST("/user/:userId", ctl.Start)
	imp.POST("/stop", ctl.Stop)
	imp.GET("/status", ctl.Status)
	imp.GET("/logs", middleware.RequireCapability(policy.ImpersonationLogs), ctl.Logs)
	return router
}

func sessionRequest(t *testing.T, router *gin.Engine, method, path, sessionID string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.SessionHeader, sessionID)
	req.Header.Set("User-Agent", "support-console/1.0")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestImpersonationFlow(t *testing.T) {
	db := setupTestDB(t)
	admin := seedUser(t, db, "admin-1", models.RoleAdmin)
	customer := seedUser(t, db, "cust-1", models.RoleCustomer)

	router := impersonationRouter(db, admin.Auth0ID)
	const session = "sess-1"

	w, env := sessionRequest(t, router, http.MethodGet, "/api/impersonate/status", session)
	require.Equal(t, http.StatusOK, w.Code)
	var status services.ImpersonationStatus
	decodeData(t, env, &status)
	assert.False(t, status.IsImpersonating)

	w, env = sessionRequest(t, router, http.MethodPost, "/api/impersonate/user/"+customer.ID, session)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var started struct {
		Message    string      `json:"message"`
		TargetUser models.User `json:"targetUser"`
	}
	decodeData(t, env, &started)
	assert.Equal(t, "Now impersonating cust-1", started.Message)
	assert.Equal(t, customer.ID, started.TargetUser.ID)

	// later requests on the same session act as the customer
	w, env = sessionRequest(t, router, http.MethodGet, "/api/users/me", session)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User          models.User  `json:"user"`
		Impersonating bool         `json:"impersonating"`
		OriginalUser  *models.User `json:"originalUser"`
	}
	decodeData(t, env, &me)
	assert.Equal(t, customer.ID, me.User.ID)
	assert.True(t, me.Impersonating)
	require.NotNil(t, me.OriginalUser)
	assert.Equal(t, admin.ID, me.OriginalUser.ID)

	// a second session is unaffected
	w, env = sessionRequest(t, router, http.MethodGet, "/api/users/me", "sess-2")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, env, &me)
	assert.Equal(t, admin.ID, me.User.ID)

	w, env = sessionRequest(t, router, http.MethodGet, "/api/impersonate/status", session)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, env, &status)
	assert.True(t, status.IsImpersonating)
	require.NotNil(t, status.TargetUser)
	assert.Equal(t, models.RoleCustomer, status.TargetUser.Role)

	w, env = sessionRequest(t, router, http.MethodPost, "/api/impersonate/user/"+customer.ID, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	w, env = sessionRequest(t, router, http.MethodPost, "/api/impersonate/stop", session)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stopped struct {
		OriginalUser models.User `json:"originalUser"`
	}
	decodeData(t, env, &stopped)
	assert.Equal(t, admin.ID, stopped.OriginalUser.ID)

	w, env = sessionRequest(t, router, http.MethodPost, "/api/impersonate/stop", session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	w, env = sessionRequest(t, router, http.MethodGet, "/api/impersonate/logs?targetUserId="+customer.ID, session)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.ImpersonationLog
	decodeData(t, env, &logs)
	require.Len(t, logs, 2)
	assert.Equal(t, "support-console/1.0", logs[0].UserAgent)
}

func TestImpersonationRejections(t *testing.T) {
	db := setupTestDB(t)
	customer := seedUser(t, db, "cust-1", models.RoleCustomer)
	other := seedUser(t, db, "cust-2", models.RoleCustomer)
	subadmin := seedUser(t, db, "sub-1", models.RoleSubadmin, models.PermissionUserImpersonation)
	admin := seedUser(t, db, "admin-1", models.RoleAdmin)

	tests := []struct {
		name           string
		actor          *models.User
		target         string
		expectedStatus int
		expectedError  string
	}{
		{name: "customers cannot impersonate", actor: customer, target: other.ID, expectedStatus: http.StatusForbidden, expectedError: "FORBIDDEN"},
		{name: "subadmin cannot impersonate an admin", actor: subadmin, target: admin.ID, expectedStatus: http.StatusForbidden, expectedError: "FORBIDDEN"},
		{name: "unknown target", actor: admin, target: "ghost", expectedStatus: http.StatusNotFound, expectedError: "NOT_FOUND"},
		{name: "self impersonation", actor: admin, target: admin.ID, expectedStatus: http.StatusBadRequest, expectedError: "VALIDATION_ERROR"},
		{name: "subadmin with the grant", actor: subadmin, target: customer.ID, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := impersonationRouter(db, tt.actor.Auth0ID)
			w, env := sessionRequest(t, router, http.MethodPost, "/api/impersonate/user/"+tt.target, "sess-"+tt.actor.ID)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, env.Error.Code)
			}
		})
	}

	// the audit trail is reserved for holders of the capability
	w, _ := sessionRequest(t, impersonationRouter(db, customer.Auth0ID), http.MethodGet, "/api/impersonate/logs", "sess-c")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
