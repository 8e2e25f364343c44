package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserName(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{"ascii", "alice", true},
		{"cyrillic", "Алиса", true},
		{"with digits and underscore", "user_42", true},
		{"too short", "a", false},
		{"too long", strings.Repeat("a", 33), false},
		{"spaces", "a b", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateUserName(tt.username))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.False(t, ValidatePassword("abc"))
	assert.True(t, ValidatePassword("abcd"))
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
