package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// Gin context keys set by AuthMiddleware.
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextName   = "name"
)

// FallbackUserID is used for every request when the unauthenticated fallback is on.
const FallbackUserID = "dev-user"

// AuthMiddleware verifies the Firebase ID token in "Authorization: Bearer <token>".
// It sets "user_id", "email" and "name" in the gin context if verification succeeds.
// When allowUnauthenticatedFallback is true (local development only), missing or
// invalid tokens fall back to user_id="dev-user".
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger, allowUnauthenticatedFallback bool) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := func(c *gin.Context) bool {
		if !allowUnauthenticatedFallback {
			return false
		}
		c.Set(ContextUserID, FallbackUserID)
		c.Next()
		return true
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if fallback(c) {
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - No token provided"})
			return
		}

		const bearerPrefix = "bearer "
		if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			if fallback(c) {
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - Invalid token"})
			return
		}
		token := strings.TrimSpace(authHeader[len(bearerPrefix):])

		if verifier == nil {
			if fallback(c) {
				return
			}
			logger.Error("Auth verifier not configured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if fallback(c) {
				return
			}
			if errors.Is(err, domain.ErrUnauthenticated) {
				logger.Debug("Token rejected", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - Invalid token"})
				return
			}
			logger.Error("Token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set(ContextUserID, identity.UID)
		c.Set(ContextEmail, identity.Email)
		c.Set(ContextName, identity.Name)
		AddSpanAttributes(c.Request.Context(), attribute.String("enduser.id", identity.UID))
		c.Next()
	}
}
