package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/middleware"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/policy"
)

// responder writes the JSON envelope shared by every controller
type responder struct {
	log           logger.Logger
	exposeDetails bool // outside production, 500s carry the underlying error
}

func newResponder(log logger.Logger, production bool) responder {
	return responder{log: log, exposeDetails: !production}
}

func (r responder) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func (r responder) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError maps service errors onto status codes
func (r responder) respondError(c *gin.Context, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", vErr.Message)
	case errors.Is(err, models.ErrForbidden):
		r.fail(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
	case errors.Is(err, models.ErrOriginalUserMissing):
		r.fail(c, http.StatusNotFound, "ORIGINAL_USER_NOT_FOUND", "The user who started this impersonation no longer exists")
	case errors.Is(err, models.ErrNotFound):
		r.fail(c, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, models.ErrInvalidState):
		r.fail(c, http.StatusBadRequest, "INVALID_STATE", err.Error())
	default:
		r.log.Error("request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Error(err),
		)
		body := gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "Internal server error",
		}
		if r.exposeDetails {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Internal server error",
			"error":   body,
		})
	}
}

func (r responder) badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Invalid request data",
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// caller returns the effective identity, answering 401 when it is missing
func (r responder) caller(c *gin.Context) (policy.Caller, bool) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		r.fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
	}
	return caller, ok
}

func (r responder) session(c *gin.Context) (*models.Session, bool) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		r.fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract session information")
	}
	return session, ok
}
