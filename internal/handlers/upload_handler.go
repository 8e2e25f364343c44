package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zvonchat/zvon/config"
)

// Upload kinds map to subdirectories under the upload root.
var uploadKinds = map[string]string{
	"avatar": "avatars",
	"file":   "files",
	"voice":  "voice",
}

// UploadHandler stores media on local disk and hands back a public URL.
// Messages carry these URLs; file bytes never travel over the websocket.
type UploadHandler struct {
	cfg    *config.UploadConfig
	logger *zap.Logger
}

func NewUploadHandler(cfg *config.UploadConfig, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{cfg: cfg, logger: logger}
}

// Upload handles POST /api/upload. The multipart field is "file"; an optional
// "kind" field (avatar, file, voice) picks the target subdirectory.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	maxBytes := int64(h.cfg.MaxSizeMB) << 20
	if file.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds %d MB limit", h.cfg.MaxSizeMB),
		})
		return
	}

	subdir, ok := uploadKinds[c.DefaultPostForm("kind", "file")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown upload kind"})
		return
	}

	dir := filepath.Join(h.cfg.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Error("failed to create upload directory", zap.String("dir", dir), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Server-generated name; the client's filename is only kept as metadata.
	name := uuid.NewString() + filepath.Ext(file.Filename)
	dst := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.logger.Error("failed to save upload", zap.String("dst", dst), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":       path.Join(h.cfg.PublicPath, subdir, name),
		"file_name": file.Filename,
		"file_size": file.Size,
	})
}
