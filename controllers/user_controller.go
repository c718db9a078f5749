package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/middleware"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
)

// UserController serves profile provisioning and the current-user endpoints
type UserController struct {
	responder
	users    *services.UserService
	userInfo services.UserInfoProvider
}

// NewUserController creates a user controller
func NewUserController(users *services.UserService, userInfo services.UserInfoProvider, log logger.Logger, production bool) *UserController {
	return &UserController{
		responder: newResponder(log, production),
		users:     users,
		userInfo:  userInfo,
	}
}

// CreateProfile handles POST /api/users - creates a profile from Auth0 userinfo.
// Runs behind token validation only, since the profile does not exist yet.
func (ctl *UserController) CreateProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		ctl.fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		ctl.fail(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	info, err := ctl.userInfo.GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		ctl.log.Error("failed to fetch auth0 userinfo", logger.String("auth0_id", auth0ID), logger.Error(err))
		ctl.fail(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
		return
	}
	if info.Email == "" {
		ctl.fail(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0")
		return
	}
	if info.Name == "" {
		ctl.fail(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0")
		return
	}

	role := models.RoleCustomer
	if claims, err := middleware.GetCustomClaims(c); err == nil && claims.Role != "" {
		role = claims.Role
	}

	user, err := ctl.users.CreateProfile(c.Request.Context(), auth0ID, info.Name, info.Email, role)
	if errors.Is(err, services.ErrUserExists) {
		ctl.fail(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists")
		return
	}
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusCreated, user)
}

// Me handles GET /api/users/me. While impersonating this is the target user;
// the real identity is reported alongside.
func (ctl *UserController) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		ctl.fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	data := gin.H{
		"user":          user,
		"impersonating": false,
	}
	if principal, ok := middleware.CurrentPrincipal(c); ok && principal.ID != user.ID {
		data["impersonating"] = true
		data["originalUser"] = principal
	}
	ctl.ok(c, http.StatusOK, data)
}

// UpdateMe handles PUT /api/users/me
func (ctl *UserController) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		ctl.fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	var req services.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.badBody(c, err)
		return
	}

	updated, err := ctl.users.UpdateProfile(c.Request.Context(), user.ID, req)
	if errors.Is(err, services.ErrUserExists) {
		ctl.fail(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
		return
	}
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, updated)
}
