package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zvonchat/zvon/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// UserStore is the in-memory account registry. Unlike the conversation state,
// it is reached from HTTP handlers as well as the hub loop, so it carries its
// own lock. Usernames are unique case-insensitively.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*models.User),
	}
}

// Create registers a new user with an already-hashed credential.
func (s *UserStore) Create(username, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByNameLocked(username) != nil {
		return nil, ErrUsernameTaken
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Theme:        "light",
		CreatedAt:    time.Now(),
	}
	s.users[user.ID] = user
	return cloneUser(user), nil
}

// GetByID looks up a user by id.
func (s *UserStore) GetByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

// GetByUsername looks up a user by name, case-insensitively.
func (s *UserStore) GetByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := s.findByNameLocked(username)
	if user == nil {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

// Search returns public profiles whose username contains the query,
// excluding the requester.
func (s *UserStore) Search(query, excludeID string) []models.PublicUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	results := make([]models.PublicUser, 0)
	for _, user := range s.users {
		if user.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), query) {
			results = append(results, user.Public())
		}
	}
	return results
}

// All returns every public profile except the requester's.
func (s *UserStore) All(excludeID string) []models.PublicUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.PublicUser, 0, len(s.users))
	for _, user := range s.users {
		if user.ID == excludeID {
			continue
		}
		results = append(results, user.Public())
	}
	return results
}

// UpdateAvatar sets a user's avatar reference.
func (s *UserStore) UpdateAvatar(id, avatar string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Avatar = avatar
	return nil
}

// UpdateUsername renames a user, keeping the case-insensitive uniqueness
// invariant.
func (s *UserStore) UpdateUsername(id, newUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findByNameLocked(newUsername); existing != nil && existing.ID != id {
		return ErrUsernameTaken
	}

	user, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Username = newUsername
	return nil
}

// UpdatePasswordHash replaces a user's credential hash.
func (s *UserStore) UpdatePasswordHash(id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

// UpdateTheme sets a user's theme preference.
func (s *UserStore) UpdateTheme(id, theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Theme = theme
	return nil
}

// Delete removes an account. Conversations referencing the user are not
// cleaned up; their sender ids are left dangling, matching the reference
// behavior.
func (s *UserStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *UserStore) findByNameLocked(username string) *models.User {
	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			return user
		}
	}
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}
