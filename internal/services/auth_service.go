package services

import (
	"errors"

	"github.com/zvonchat/zvon/internal/models"
	"github.com/zvonchat/zvon/internal/store"
	"github.com/zvonchat/zvon/pkg/utils"
)

var (
	ErrInvalidUsername    = errors.New("invalid username format")
	ErrInvalidPassword    = errors.New("password too short")
	ErrInvalidCredentials = errors.New("username or password incorrect")
)

// AuthService handles registration and login against the in-memory registry.
type AuthService struct {
	users *store.UserStore
}

func NewAuthService(users *store.UserStore) *AuthService {
	return &AuthService{users: users}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string             `json:"token"`
	User  *models.PublicUser `json:"user"`
}

// Register creates an account and issues a session token.
func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	if !utils.ValidateUserName(req.Username) {
		return nil, ErrInvalidUsername
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, ErrInvalidPassword
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(req.Username, hash)
	if err != nil {
		return nil, err
	}

	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	public := user.Public()
	return &AuthResponse{Token: token, User: &public}, nil
}

// Login verifies credentials and issues a session token. Unknown-user and
// wrong-password failures are indistinguishable to the caller.
func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	user, err := s.users.GetByUsername(req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	public := user.Public()
	return &AuthResponse{Token: token, User: &public}, nil
}
