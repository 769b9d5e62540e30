package v1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/internal/inference"
	"github.com/papayapulse/pulse-api/middleware"
)

// Image uploads are read from "file" first, then "image".
var imageFields = []string{"file", "image"}

// requestScope opens the web-layer span and returns the request logger.
func requestScope(c *gin.Context) (context.Context, trace.Span, *zap.Logger) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	return ctx, span, middleware.GetLoggerFromGinContext(c)
}

// requireUser returns the verified uid, or writes 401 and returns "".
func requireUser(c *gin.Context, logger *zap.Logger) string {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		logger.Warn("No user_id in context", zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return userID
}

// badRequest answers a binding failure.
func badRequest(c *gin.Context, span trace.Span, logger *zap.Logger, err error) {
	span.SetAttributes(attribute.Bool("request.valid", false))
	span.RecordError(err)
	logger.Warn("Invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
}

// respondError maps a service error onto a status and an {"error": ...} body.
// Raw internal errors are logged, never returned.
func respondError(c *gin.Context, span trace.Span, logger *zap.Logger, action string, err error) {
	span.RecordError(err)

	var (
		invalid     *domain.ValidationError
		unavailable *inference.UnavailableError
		upstream    *inference.UpstreamError
	)
	status := http.StatusInternalServerError
	body := gin.H{"error": "Internal server error"}

	switch {
	case errors.As(err, &invalid):
		status, body["error"] = http.StatusBadRequest, sanitizeValidationError(invalid)
	case errors.Is(err, domain.ErrValidation):
		status, body["error"] = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrUnauthenticated):
		status, body["error"] = http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrForbidden):
		status, body["error"] = http.StatusForbidden, "This feature is only available for farmers"
	case errors.Is(err, domain.ErrNotFound):
		status, body["error"] = http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrConflict):
		status, body["error"] = http.StatusConflict, "User already exists"
	case errors.As(err, &unavailable):
		status, body["error"] = http.StatusServiceUnavailable, "Service unavailable"
		body["hint"] = unavailable.Hint()
	case errors.Is(err, domain.ErrServiceUnavailable):
		status, body["error"] = http.StatusServiceUnavailable, "Service unavailable"
	case errors.As(err, &upstream):
		status = upstream.StatusCode
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusBadGateway
		}
		body["error"] = upstreamMessage(upstream)
		if details := upstream.PublicPayload(); len(details) > 0 {
			body["details"] = details
		}
	case errors.Is(err, domain.ErrUpstream):
		status, body["error"] = http.StatusBadGateway, "Invalid response from inference service"
	}

	if status >= http.StatusInternalServerError {
		logger.Error(action, zap.Int("status", status), zap.Error(err))
	} else {
		logger.Warn(action, zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, body)
}

func upstreamMessage(e *inference.UpstreamError) string {
	if e.Timeout {
		return fmt.Sprintf("%s service timed out", e.Service)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s service error", e.Service)
}

// readUpload reads the first present multipart file among fields. The part
// must be an image no larger than maxBytes.
func readUpload(c *gin.Context, maxBytes int, fields ...string) (domain.Image, error) {
	var (
		header *multipart.FileHeader
		err    error
	)
	for _, field := range fields {
		header, err = c.FormFile(field)
		if err == nil {
			break
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Image{}, domain.Invalid("image", "File too large. Maximum size is %dMB", maxBytes>>20)
		}
	}
	if header == nil {
		return domain.Image{}, domain.Invalid("image", "No image file provided")
	}
	if header.Size > int64(maxBytes) {
		return domain.Image{}, domain.Invalid("image", "File too large. Maximum size is %dMB", maxBytes>>20)
	}

	f, err := header.Open()
	if err != nil {
		return domain.Image{}, fmt.Errorf("open upload %q: %w", header.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("read upload %q: %w", header.Filename, err)
	}
	if len(data) == 0 {
		return domain.Image{}, domain.Invalid("image", "No image file provided")
	}
	if len(data) > maxBytes {
		return domain.Image{}, domain.Invalid("image", "File too large. Maximum size is %dMB", maxBytes>>20)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return domain.Image{}, domain.Invalid("image", "Only image files are allowed")
	}
	return domain.Image{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

func readImage(c *gin.Context) (domain.Image, error) {
	return readUpload(c, domain.MaxImageBytes, imageFields...)
}
