package service

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

func TestUserCreate(t *testing.T) {
	deps := newTestingDeps(t)
	svc := NewUserService(deps.db, deps.logger)

	user, err := svc.Create("Admin@Example.com", "Admin", "secret", db.RoleAdmin, true)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", user.Email)
	assert.Equal(t, db.RoleAdmin, user.Role)
	assert.True(t, user.IsAdmin())
	assert.NotEqual(t, "secret", user.Password)

	// Empty role falls back to USER.
	plain, err := svc.Create("plain@example.com", "Plain", "secret", "", true)
	require.NoError(t, err)
	assert.Equal(t, db.RoleUser, plain.Role)
	assert.False(t, plain.IsAdmin())

	_, err = svc.Create("admin@example.com", "Dup", "secret", db.RoleUser, true)
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = svc.Create("bad@example.com", "Bad", "secret", "SUPERUSER", true)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.Create("no-at-sign", "Bad", "secret", db.RoleUser, true)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.Create("nopass@example.com", "Bad", "", db.RoleUser, true)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUserUpdate(t *testing.T) {
	deps := newTestingDeps(t)
	svc := NewUserService(deps.db, deps.logger)
	user := newTestUser(t, deps.db, "member@example.com")
	taken := newTestUser(t, deps.db, "claimed@example.com")

	updated, err := svc.Update(user.ID, "member@example.com", "Renamed", db.RoleAdmin, false)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, db.RoleAdmin, updated.Role)
	assert.False(t, updated.Enabled)

	_, err = svc.Update(user.ID, taken.Email, "Renamed", db.RoleUser, true)
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = svc.Update(424242, "ghost@example.com", "Ghost", db.RoleUser, true)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUserDeleteRemovesAuthTokens(t *testing.T) {
	deps := newTestingDeps(t)
	svc := NewUserService(deps.db, deps.logger)
	user := newTestUser(t, deps.db, "leaving@example.com")

	require.NoError(t, deps.db.Create(&db.AuthToken{
		Selector:        "sel",
		HashedValidator: "hash",
		UserID:          user.ID,
	}).Error)

	require.NoError(t, svc.Delete(user.ID))

	var tokens int64
	require.NoError(t, deps.db.Model(&db.AuthToken{}).Where("user_id = ?", user.ID).Count(&tokens).Error)
	assert.Zero(t, tokens)

	_, err := svc.Read(user.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUsersOrderedByEmail(t *testing.T) {
	deps := newTestingDeps(t)
	svc := NewUserService(deps.db, deps.logger)
	newTestUser(t, deps.db, "zeta@example.com")
	newTestUser(t, deps.db, "alpha@example.com")

	users, err := svc.Users()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alpha@example.com", users[0].Email)
}
