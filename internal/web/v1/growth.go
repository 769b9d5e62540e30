package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	logicv1 "github.com/papayapulse/pulse-api/internal/logic/v1"
)

type GrowthHandler struct {
	service *logicv1.GrowthService
}

func NewGrowthHandler(service *logicv1.GrowthService) *GrowthHandler {
	return &GrowthHandler{service: service}
}

// Stage handles POST /api/growth/stage
func (h *GrowthHandler) Stage(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	img, err := readImage(c)
	if err != nil {
		respondError(c, span, logger, "Invalid growth stage upload", err)
		return
	}

	result, err := h.service.Stage(ctx, userID, img)
	if err != nil {
		respondError(c, span, logger, "Growth stage prediction failed", err)
		return
	}

	logger.Info("Growth stage predicted", zap.String("user_id", userID), zap.String("stage", result.Stage))
	c.JSON(http.StatusOK, result)
}

// Harvest handles POST /api/growth/harvest
func (h *GrowthHandler) Harvest(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	var req domain.HarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	result, err := h.service.Harvest(ctx, userID, req)
	if err != nil {
		respondError(c, span, logger, "Harvest prediction failed", err)
		return
	}

	logger.Info("Harvest predicted", zap.String("user_id", userID))
	c.JSON(http.StatusOK, result)
}
