package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zvonchat/zvon/internal/services"
	"github.com/zvonchat/zvon/internal/store"
)

type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// Search handles GET /api/search?q=...
func (h *UserHandler) Search(c *gin.Context) {
	query := c.Query("q")
	requesterID := c.GetString("user_id")
	c.JSON(http.StatusOK, gin.H{"users": h.userService.Search(query, requesterID)})
}

// All handles GET /api/users/all.
func (h *UserHandler) All(c *gin.Context) {
	requesterID := c.GetString("user_id")
	c.JSON(http.StatusOK, gin.H{"users": h.userService.All(requesterID)})
}

// Get handles GET /api/user/:id.
func (h *UserHandler) Get(c *gin.Context) {
	profile, err := h.userService.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type avatarReq struct {
	Avatar string `json:"avatar" binding:"required"`
}

// UpdateAvatar handles POST /api/settings/avatar.
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	var req avatarReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.userService.UpdateAvatar(c.GetString("user_id"), req.Avatar); err != nil {
		h.respondUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar": req.Avatar})
}

type usernameReq struct {
	Username string `json:"username" binding:"required"`
}

// UpdateUsername handles POST /api/settings/username.
func (h *UserHandler) UpdateUsername(c *gin.Context) {
	var req usernameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.userService.UpdateUsername(c.GetString("user_id"), req.Username); err != nil {
		h.respondUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": req.Username})
}

type passwordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// UpdatePassword handles POST /api/settings/password.
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	var req passwordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.GetString("user_id")
	if err := h.userService.UpdatePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.respondUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

type themeReq struct {
	Theme string `json:"theme" binding:"required"`
}

// UpdateTheme handles POST /api/settings/theme.
func (h *UserHandler) UpdateTheme(c *gin.Context) {
	var req themeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.userService.UpdateTheme(c.GetString("user_id"), req.Theme); err != nil {
		h.respondUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

// DeleteAccount handles DELETE /api/account.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString("user_id")
	h.userService.DeleteAccount(userID)
	h.logger.Info("account deleted", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

func (h *UserHandler) respondUpdateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUsernameTaken),
		errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("settings update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
