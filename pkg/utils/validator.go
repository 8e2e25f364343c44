package utils

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_а-яА-ЯёЁ.-]+$`)

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword compares a bcrypt hash against a plaintext password.
func CheckPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// ValidateUserName checks username format (2-32 characters, letters, digits,
// underscore, dot, dash).
func ValidateUserName(username string) bool {
	if len(username) < 2 || len(username) > 32 {
		return false
	}
	return usernamePattern.MatchString(username)
}

// ValidatePassword checks password strength (at least 4 characters, matching
// the reference client's requirement).
func ValidatePassword(password string) bool {
	return len(password) >= 4
}
