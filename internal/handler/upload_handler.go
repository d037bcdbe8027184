package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/response"
	"github.com/openshelf/openshelf/pkg/storage"
)

const maxImageSize = 5 << 20 // 5 MiB

type UploadHandler struct {
	storage  storage.ImageStorage
	userRepo repository.UserRepository
}

func NewUploadHandler(storage storage.ImageStorage, userRepo repository.UserRepository) *UploadHandler {
	return &UploadHandler{storage: storage, userRepo: userRepo}
}

// UploadImage stores a listing image and returns its URL. The client then
// passes the URL in the post payload.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	if _, err := response.GetUserID(c); err != nil {
		response.ResponseError(c, err)
		return
	}

	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage is not configured"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	defer file.Close()

	url, err := h.storage.UploadImage(c.Request.Context(), file, "listings", fileHeader.Filename)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *UploadHandler) UpdateAvatar(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage is not configured"})
		return
	}

	user, err := h.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	defer file.Close()

	url, err := h.storage.UploadImage(c.Request.Context(), file, "avatars", fileHeader.Filename)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if user.AvatarURL != nil && *user.AvatarURL != "" {
		_ = h.storage.DeleteImage(c.Request.Context(), *user.AvatarURL)
	}

	user.AvatarURL = &url
	if err := h.userRepo.Update(c.Request.Context(), user); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}
