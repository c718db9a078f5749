package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
	"github.com/kendall-kelly/delivery-marketplace-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	return Setup(Dependencies{
		Config:   testutil.TestConfig(),
		Log:      logger.NewNop(),
		DB:       db,
		Auth:     testutil.MockAuthMiddleware(),
		Sessions: services.NewGormSessionStore(db),
		Images:   services.NewMockS3Service(),
	})
}

// TestHealthCheck is a unit test for the HealthCheck handler function
func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HealthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status code 200")
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")
	assert.Len(t, response, 2, "Response should have exactly 2 fields")
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Delivery Marketplace API is running", response["message"])
}

// TestHealthEndpointMethod tests that only GET is routed
func TestHealthEndpointMethod(t *testing.T) {
	router := setupRouter(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s should not be allowed", method)
	}
}

// TestAPIPrefix tests that endpoints live under /api
func TestAPIPrefix(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "Endpoint should require /api prefix")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "Endpoint should work with /api prefix")
}

// TestHealthEndpointResponseTime tests that the endpoint responds quickly
func TestHealthEndpointResponseTime(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	start := time.Now()
	router.ServeHTTP(w, req)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Health endpoint should respond in less than 100ms")
}

func TestDatabaseStatus(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/database/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Success bool     `json:"success"`
		Tables  []string `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Contains(t, response.Tables, "orders")
	assert.Contains(t, response.Tables, "impersonation_logs")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := setupRouter(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/users/me"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/orders"},
		{http.MethodPost, "/api/impersonate/stop"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodGet, "/api/admin/subcategories/x/notes"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)
	}
}

func TestUnknownProfileIsNotFound(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set(testutil.AuthHeader, "auth0|stranger")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "USER_NOT_FOUND")
}

func TestCORSPreflight(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfigWithoutOrigins(t *testing.T) {
	c := corsConfig(nil)
	assert.True(t, c.AllowAllOrigins)
	assert.False(t, c.AllowCredentials)

	c = corsConfig([]string{"https://app.example.com"})
	assert.False(t, c.AllowAllOrigins)
	assert.True(t, c.AllowCredentials)
}
