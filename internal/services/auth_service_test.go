package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvonchat/zvon/internal/store"
	"github.com/zvonchat/zvon/pkg/utils"
)

func init() {
	utils.SetJWTSecret("test-secret")
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := NewAuthService(store.NewUserStore())

	resp, err := svc.Register(&RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)

	claims, err := utils.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	login, err := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := NewAuthService(store.NewUserStore())

	_, err := svc.Register(&RegisterRequest{Username: "a", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.Register(&RegisterRequest{Username: "alice", Password: "abc"})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestAuthService_DuplicateUsername(t *testing.T) {
	svc := NewAuthService(store.NewUserStore())

	_, err := svc.Register(&RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	_, err = svc.Register(&RegisterRequest{Username: "ALICE", Password: "s3cret"})
	assert.ErrorIs(t, err, store.ErrUsernameTaken, "uniqueness is case-insensitive")
}

func TestAuthService_LoginFailuresIndistinguishable(t *testing.T) {
	svc := NewAuthService(store.NewUserStore())

	_, err := svc.Register(&RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	_, wrongPass := svc.Login(&LoginRequest{Username: "alice", Password: "nope"})
	_, noUser := svc.Login(&LoginRequest{Username: "nobody", Password: "nope"})

	assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, noUser, ErrInvalidCredentials)
}
