package services

import (
	"context"
	"testing"

	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserServiceLookups(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	createUser(t, db, "sub-1", models.RoleSubadmin, models.PermissionUserImpersonation)

	byAuth0, err := svc.FindByAuth0ID(ctx, "auth0|sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", byAuth0.ID)
	assert.Equal(t, []string{models.PermissionUserImpersonation}, byAuth0.PermissionNames())

	byID, err := svc.FindByID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, byAuth0.Auth0ID, byID.Auth0ID)

	_, err = svc.FindByAuth0ID(ctx, "auth0|nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateProfile(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.CreateProfile(ctx, "auth0|new", "New Driver", "driver@example.com", models.RoleDriver)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleDriver, user.Role)

	escalated, err := svc.CreateProfile(ctx, "auth0|sneaky", "Sneaky", "sneaky@example.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, escalated.Role, "staff roles are never self-provisioned")

	_, err = svc.CreateProfile(ctx, "auth0|new", "Again", "other@example.com", models.RoleCustomer)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUpdateProfile(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	createUser(t, db, "cust-1", models.RoleCustomer)
	createUser(t, db, "cust-2", models.RoleCustomer)

	updated, err := svc.UpdateProfile(ctx, "cust-1", ProfileUpdate{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "cust-1@example.com", updated.Email, "empty fields are left untouched")

	_, err = svc.UpdateProfile(ctx, "cust-1", ProfileUpdate{Email: "not-an-email"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.UpdateProfile(ctx, "cust-1", ProfileUpdate{Email: "cust-2@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.UpdateProfile(ctx, "ghost", ProfileUpdate{Name: "Nobody"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
