package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvonchat/zvon/internal/store"
	"github.com/zvonchat/zvon/pkg/utils"
)

func seedUser(t *testing.T, users *store.UserStore, username, password string) string {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	user, err := users.Create(username, hash)
	require.NoError(t, err)
	return user.ID
}

func TestUserService_SearchExcludesRequester(t *testing.T) {
	users := store.NewUserStore()
	svc := NewUserService(users)

	aliceID := seedUser(t, users, "alice", "s3cret")
	seedUser(t, users, "alicia", "s3cret")
	seedUser(t, users, "bob", "s3cret")

	results := svc.Search("ali", aliceID)
	require.Len(t, results, 1)
	assert.Equal(t, "alicia", results[0].Username)

	assert.Len(t, svc.All(aliceID), 2)
}

func TestUserService_UpdatePassword(t *testing.T) {
	users := store.NewUserStore()
	svc := NewUserService(users)
	id := seedUser(t, users, "alice", "oldpass")

	err := svc.UpdatePassword(id, "wrong", "newpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.UpdatePassword(id, "oldpass", "abc")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	require.NoError(t, svc.UpdatePassword(id, "oldpass", "newpass"))

	user, err := users.GetByID(id)
	require.NoError(t, err)
	assert.True(t, utils.CheckPassword(user.PasswordHash, "newpass"))
}

func TestUserService_UpdateUsernameKeepsUniqueness(t *testing.T) {
	users := store.NewUserStore()
	svc := NewUserService(users)
	aliceID := seedUser(t, users, "alice", "s3cret")
	seedUser(t, users, "bob", "s3cret")

	err := svc.UpdateUsername(aliceID, "Bob")
	assert.ErrorIs(t, err, store.ErrUsernameTaken)

	require.NoError(t, svc.UpdateUsername(aliceID, "alice2"))
	profile, err := svc.Get(aliceID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", profile.Username)
}

func TestUserService_DeleteAccount(t *testing.T) {
	users := store.NewUserStore()
	svc := NewUserService(users)
	id := seedUser(t, users, "alice", "s3cret")

	svc.DeleteAccount(id)

	_, err := svc.Get(id)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
