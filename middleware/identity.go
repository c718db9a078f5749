package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/policy"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
)

// SessionHeader carries the client's session id; callers without one share
// a session keyed by their own user id
const SessionHeader = "X-Session-ID"

// Gin context keys set by LoadIdentity
const (
	principalKey = "principal"
	userKey      = "effective_user"
	sessionKey   = "session"
	callerKey    = "caller"
)

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// LoadIdentity resolves the authenticated principal, its session and the
// effective user. While impersonating, the effective user and capabilities
// are the target's; the principal never changes.
func LoadIdentity(users *services.UserService, sessions services.SessionStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth0ID, err := GetUserID(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}

		ctx := c.Request.Context()
		principal, err := users.FindByAuth0ID(ctx, auth0ID)
		if errors.Is(err, models.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
			return
		}
		if err != nil {
			log.Error("failed to load principal", logger.String("auth0_id", auth0ID), logger.Error(err))
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}

		sessionID := c.GetHeader(SessionHeader)
		if sessionID == "" {
			sessionID = principal.ID
		}
		session, err := sessions.Load(ctx, sessionID, principal.ID)
		if err != nil {
			log.Error("failed to load session", logger.String("session_id", sessionID), logger.Error(err))
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}

		effective := principal
		if session.Impersonating() {
			target, err := users.FindByID(ctx, session.EffectiveUserID())
			switch {
			case err == nil:
				effective = target
			case errors.Is(err, models.ErrNotFound):
				// the override is kept so the caller can still stop it
				log.Warn("impersonation target no longer exists, acting as principal",
					logger.String("session_id", session.ID),
					logger.String("target_user_id", session.EffectiveUserID()),
				)
			default:
				log.Error("failed to load impersonated user", logger.Error(err))
				abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}
		}

		c.Set(principalKey, principal)
		c.Set(userKey, effective)
		c.Set(sessionKey, session)
		c.Set(callerKey, policy.NewCaller(effective))
		c.Next()
	}
}

// CurrentPrincipal is the authenticated user, regardless of impersonation
func CurrentPrincipal(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// CurrentUser is the user the request acts as
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// CurrentSession is the session loaded for the request
func CurrentSession(c *gin.Context) (*models.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*models.Session)
	return s, ok
}

// CurrentCaller is the effective identity with its capabilities
func CurrentCaller(c *gin.Context) (policy.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return policy.Caller{}, false
	}
	caller, ok := v.(policy.Caller)
	return caller, ok
}

// SetIdentity installs an identity directly, for tests and internal callers
func SetIdentity(c *gin.Context, principal, effective *models.User, session *models.Session) {
	c.Set(principalKey, principal)
	c.Set(userKey, effective)
	c.Set(sessionKey, session)
	c.Set(callerKey, policy.NewCaller(effective))
}

// RequireCapability rejects callers lacking capability
func RequireCapability(capability policy.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CurrentCaller(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !caller.Can(capability) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions to access this resource")
			return
		}
		c.Next()
	}
}
