package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	logicv1 "github.com/papayapulse/pulse-api/internal/logic/v1"
	"github.com/papayapulse/pulse-api/middleware"
)

// UserHandler handles HTTP requests for profile operations
type UserHandler struct {
	service *logicv1.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(service *logicv1.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUser handles POST /api/users. An existing profile is returned with 200.
func (h *UserHandler) CreateUser(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	// an existing user may re-post with no body at all
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	user, created, err := h.service.CreateOrFetch(ctx, userID, c.GetString(middleware.ContextEmail), req)
	if err != nil {
		respondError(c, span, logger, "Failed to create user", err)
		return
	}

	if !created {
		logger.Info("User already registered", zap.String("user_id", userID))
		c.JSON(http.StatusOK, user)
		return
	}
	logger.Info("User created", zap.String("user_id", userID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusCreated, user)
}

// GetMe handles GET /api/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	user, err := h.service.Get(ctx, userID)
	if err != nil {
		respondError(c, span, logger, "Failed to get profile", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	var req domain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	user, err := h.service.UpdateName(ctx, userID, req)
	if err != nil {
		respondError(c, span, logger, "Failed to update profile", err)
		return
	}

	logger.Info("Profile updated", zap.String("user_id", userID))
	c.JSON(http.StatusOK, user)
}

// UploadProfilePhoto handles POST /api/users/upload-profile-photo (multipart "profilePhoto").
func (h *UserHandler) UploadProfilePhoto(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	img, err := readUpload(c, domain.MaxProfilePhotoBytes, "profilePhoto")
	if err != nil {
		respondError(c, span, logger, "Invalid profile photo", err)
		return
	}

	photo, err := h.service.UploadPhoto(ctx, userID, img)
	if err != nil {
		respondError(c, span, logger, "Failed to upload profile photo", err)
		return
	}

	logger.Info("Profile photo uploaded", zap.String("user_id", userID), zap.Int("bytes", len(img.Data)))
	c.JSON(http.StatusOK, gin.H{
		"message":      "Profile photo uploaded successfully",
		"profilePhoto": photo,
	})
}
