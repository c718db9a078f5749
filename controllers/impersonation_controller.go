package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
	"github.com/spf13/cast"
)

// ImpersonationController serves the impersonation endpoints
type ImpersonationController struct {
	responder
	impersonation *services.ImpersonationService
}

// NewImpersonationController creates an impersonation controller
func NewImpersonationController(impersonation *services.ImpersonationService, log logger.Logger, production bool) *ImpersonationController {
	return &ImpersonationController{responder: newResponder(log, production), impersonation: impersonation}
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// Start handles POST /api/impersonate/user/:userId
func (ctl *ImpersonationController) Start(c *gin.Context) {
	session, ok := ctl.session(c)
	if !ok {
		return
	}

	target, err := ctl.impersonation.Start(c.Request.Context(), session, c.Param("userId"), requestMeta(c))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, gin.H{
		"message":    fmt.Sprintf("Now impersonating %s", target.Name),
		"targetUser": target,
	})
}

// Stop handles POST /api/impersonate/stop
func (ctl *ImpersonationController) Stop(c *gin.Context) {
	session, ok := ctl.session(c)
	if !ok {
		return
	}

	original, err := ctl.impersonation.Stop(c.Request.Context(), session, requestMeta(c))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, gin.H{
		"message":      "Impersonation ended",
		"originalUser": original,
	})
}

// Status handles GET /api/impersonate/status
func (ctl *ImpersonationController) Status(c *gin.Context) {
	session, ok := ctl.session(c)
	if !ok {
		return
	}
	ctl.ok(c, http.StatusOK, ctl.impersonation.Status(session))
}

// Logs handles GET /api/impersonate/logs?adminId=&targetUserId=&limit=
func (ctl *ImpersonationController) Logs(c *gin.Context) {
	filter := services.ImpersonationLogFilter{
		AdminID:      c.Query("adminId"),
		TargetUserID: c.Query("targetUserId"),
		Limit:        cast.ToInt(c.Query("limit")),
	}

	logs, err := ctl.impersonation.ListLogs(c.Request.Context(), filter)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, logs)
}
