package testutil

import (
	"net/http"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/middleware"
)

// AuthHeader is read by MockAuthMiddleware to pick the caller per request
const AuthHeader = "X-Test-Auth0-ID"

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Role: role,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID, issuer, role string) {
	c.Set("user_id", userID)
	c.Set("validated_claims", MockValidatedClaims(userID, issuer, role))
	c.Set("access_token", "test-token-"+userID)
}

// MockAuthMiddleware stands in for EnsureValidToken. The subject comes from
// the AuthHeader request header; requests without it are rejected with 401.
func MockAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth0ID := c.GetHeader(AuthHeader)
		if auth0ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Failed to validate JWT.",
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}
		SetMockAuthContext(c, auth0ID, "https://test.auth0.com/", c.GetHeader("X-Test-Role"))
		c.Next()
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
