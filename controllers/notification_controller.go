package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
	"github.com/spf13/cast"
)

// SendNotificationRequest is the body of POST /api/notifications. Exactly one
// target must be given: userId, userIds, role, exceptRoles or all.
type SendNotificationRequest struct {
	services.NotificationPayload
	UserID        string   `json:"userId"`
	UserIDs       []string `json:"userIds"`
	Role          string   `json:"role"`
	ExceptRoles   []string `json:"exceptRoles"`
	All           bool     `json:"all"`
	ExcludeUserID string   `json:"excludeUserId"`
}

func (r SendNotificationRequest) targets() int {
	n := 0
	if r.UserID != "" {
		n++
	}
	if len(r.UserIDs) > 0 {
		n++
	}
	if r.Role != "" {
		n++
	}
	if len(r.ExceptRoles) > 0 {
		n++
	}
	if r.All {
		n++
	}
	return n
}

var knownRoles = map[string]bool{
	models.RoleCustomer: true,
	models.RoleDriver:   true,
	models.RoleAdmin:    true,
	models.RoleSubadmin: true,
}

// NotificationController serves the inbox and fan-out endpoints
type NotificationController struct {
	responder
	notifications *services.NotificationService
}

// NewNotificationController creates a notification controller
func NewNotificationController(notifications *services.NotificationService, log logger.Logger, production bool) *NotificationController {
	return &NotificationController{responder: newResponder(log, production), notifications: notifications}
}

// List handles GET /api/notifications?unread=true
func (ctl *NotificationController) List(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	list, err := ctl.notifications.ListForUser(c.Request.Context(), caller.UserID, cast.ToBool(c.Query("unread")))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count
func (ctl *NotificationController) UnreadCount(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	count, err := ctl.notifications.UnreadCount(c.Request.Context(), caller.UserID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, gin.H{"count": count})
}

// MarkRead handles PATCH /api/notifications/:id/read
func (ctl *NotificationController) MarkRead(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	n, err := ctl.notifications.MarkRead(c.Request.Context(), caller.UserID, c.Param("id"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, n)
}

// MarkAllRead handles PATCH /api/notifications/read-all
func (ctl *NotificationController) MarkAllRead(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	updated, err := ctl.notifications.MarkAllRead(c.Request.Context(), caller.UserID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, gin.H{"updated": updated})
}

// Delete handles DELETE /api/notifications/:id
func (ctl *NotificationController) Delete(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	if err := ctl.notifications.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, gin.H{"deleted": true})
}

// Send handles POST /api/notifications - staff fan-out
func (ctl *NotificationController) Send(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.badBody(c, err)
		return
	}
	if err := req.NotificationPayload.Validate(); err != nil {
		ctl.respondError(c, err)
		return
	}
	if req.targets() != 1 {
		ctl.respondError(c, models.NewValidationError("target", "exactly one of userId, userIds, role, exceptRoles or all is required"))
		return
	}

	ctx := c.Request.Context()
	var (
		result services.FanoutResult
		err    error
	)
	switch {
	case req.UserID != "":
		result, err = ctl.notifications.SendToUser(ctx, req.UserID, req.NotificationPayload)
	case len(req.UserIDs) > 0:
		wanted := make(map[string]bool, len(req.UserIDs))
		for _, id := range req.UserIDs {
			wanted[id] = true
		}
		result, err = ctl.notifications.SendToFilteredUsers(ctx, func(u models.User) bool {
			return wanted[u.ID] && u.ID != req.ExcludeUserID
		}, req.NotificationPayload)
	case req.Role != "":
		if !knownRoles[req.Role] {
			ctl.respondError(c, models.NewValidationError("role", "role must be one of: customer, driver, admin, subadmin"))
			return
		}
		result, err = ctl.notifications.SendToRole(ctx, req.Role, req.NotificationPayload, req.ExcludeUserID)
	case len(req.ExceptRoles) > 0:
		result, err = ctl.notifications.SendToAllExceptRoles(ctx, req.ExceptRoles, req.NotificationPayload)
	default:
		result, err = ctl.notifications.SendToAll(ctx, req.NotificationPayload, req.ExcludeUserID)
	}
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusCreated, result)
}
