package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	logicv1 "github.com/papayapulse/pulse-api/internal/logic/v1"
)

type HistoryHandler struct {
	service *logicv1.HistoryService
}

func NewHistoryHandler(service *logicv1.HistoryService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// List returns a handler answering with the caller's newest log entries of
// the given types as a bare JSON array.
func (h *HistoryHandler) List(types ...domain.FeatureType) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span, logger := requestScope(c)
		defer span.End()

		userID := requireUser(c, logger)
		if userID == "" {
			return
		}

		entries, err := h.service.List(ctx, userID, types...)
		if err != nil {
			respondError(c, span, logger, "Failed to load history", err)
			return
		}
		span.SetAttributes(attribute.Int("history.count", len(entries)))
		c.JSON(http.StatusOK, entries)
	}
}
