package policy

import (
	"testing"

	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/stretchr/testify/assert"
)

func TestResolveCustomer(t *testing.T) {
	caps := Resolve(models.RoleCustomer, nil)

	assert.True(t, caps.Has(OrdersReadOwn))
	assert.True(t, caps.Has(OrdersCreateOwn))
	assert.True(t, caps.Has(OrdersUpdateOwn))
	assert.True(t, caps.Has(OrdersCancelOwn))
	assert.False(t, caps.Has(OrdersReadAll))
	assert.False(t, caps.Has(OrdersAssign))
	assert.False(t, caps.Has(UsersImpersonate))
}

func TestResolveDriver(t *testing.T) {
	caps := Resolve(models.RoleDriver, nil)

	assert.Equal(t, []Capability{OrdersReadAssigned, OrdersStatusAssigned}, caps.List())
}

func TestResolveAdminHoldsEverything(t *testing.T) {
	caps := Resolve(models.RoleAdmin, nil)

	assert.Len(t, caps, len(all))
	for _, c := range all {
		assert.True(t, caps.Has(c), "admin should hold %s", c)
	}
}

func TestResolveSubadminGrants(t *testing.T) {
	tests := []struct {
		name          string
		grants        []string
		impersonate   bool
		notifications bool
	}{
		{name: "no grants", grants: nil},
		{name: "impersonation grant", grants: []string{models.PermissionUserImpersonation}, impersonate: true},
		{name: "notifications grant", grants: []string{models.PermissionNotificationsManage}, notifications: true},
		{name: "unknown grant is ignored", grants: []string{"launch_rockets"}},
		{
			name:          "both grants",
			grants:        []string{models.PermissionUserImpersonation, models.PermissionNotificationsManage},
			impersonate:   true,
			notifications: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := Resolve(models.RoleSubadmin, tt.grants)

			assert.True(t, caps.Has(OrdersReadAll))
			assert.True(t, caps.Has(OrdersAssign))
			assert.True(t, caps.Has(NotesManage))
			assert.False(t, caps.Has(OrdersCreateOwn))
			assert.Equal(t, tt.impersonate, caps.Has(UsersImpersonate))
			assert.Equal(t, tt.impersonate, caps.Has(ImpersonationLogs))
			assert.Equal(t, tt.notifications, caps.Has(NotificationsManage))
		})
	}
}

func TestResolveUnknownRole(t *testing.T) {
	assert.Empty(t, Resolve("dispatcher", []string{models.PermissionUserImpersonation}))
	assert.Empty(t, Resolve("", nil))
}

func TestNewCaller(t *testing.T) {
	user := &models.User{
		ID:          "sub-1",
		Role:        models.RoleSubadmin,
		Permissions: []models.UserPermission{{Permission: models.PermissionUserImpersonation}},
	}

	caller := NewCaller(user)

	assert.Equal(t, "sub-1", caller.UserID)
	assert.Equal(t, models.RoleSubadmin, caller.Role)
	assert.True(t, caller.Can(UsersImpersonate))
	assert.False(t, caller.Can(NotificationsManage))
}
