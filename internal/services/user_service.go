package services

import (
	"github.com/zvonchat/zvon/internal/models"
	"github.com/zvonchat/zvon/internal/store"
	"github.com/zvonchat/zvon/pkg/utils"
)

// UserService covers profile lookup, search, and the settings operations.
type UserService struct {
	users *store.UserStore
}

func NewUserService(users *store.UserStore) *UserService {
	return &UserService{users: users}
}

// Search returns profiles matching the query, excluding the requester.
func (s *UserService) Search(query, requesterID string) []models.PublicUser {
	return s.users.Search(query, requesterID)
}

// All returns every profile except the requester's.
func (s *UserService) All(requesterID string) []models.PublicUser {
	return s.users.All(requesterID)
}

// Get returns one public profile by id.
func (s *UserService) Get(id string) (*models.PublicUser, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// UpdateAvatar stores a new avatar reference.
func (s *UserService) UpdateAvatar(id, avatar string) error {
	return s.users.UpdateAvatar(id, avatar)
}

// UpdateUsername renames the account after validation.
func (s *UserService) UpdateUsername(id, newUsername string) error {
	if !utils.ValidateUserName(newUsername) {
		return ErrInvalidUsername
	}
	return s.users.UpdateUsername(id, newUsername)
}

// UpdatePassword re-verifies the current credential before replacing it.
func (s *UserService) UpdatePassword(id, currentPassword, newPassword string) error {
	if !utils.ValidatePassword(newPassword) {
		return ErrInvalidPassword
	}

	user, err := s.users.GetByID(id)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(id, hash)
}

// UpdateTheme stores the UI theme preference.
func (s *UserService) UpdateTheme(id, theme string) error {
	return s.users.UpdateTheme(id, theme)
}

// DeleteAccount removes the account. Conversation history referencing the
// user stays behind with a dangling sender id.
func (s *UserService) DeleteAccount(id string) {
	s.users.Delete(id)
}
