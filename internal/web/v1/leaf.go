package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	logicv1 "github.com/papayapulse/pulse-api/internal/logic/v1"
)

type LeafHandler struct {
	service *logicv1.LeafService
}

func NewLeafHandler(service *logicv1.LeafService) *LeafHandler {
	return &LeafHandler{service: service}
}

// Predict handles POST /api/leaf/predict
func (h *LeafHandler) Predict(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	img, err := readImage(c)
	if err != nil {
		respondError(c, span, logger, "Invalid leaf upload", err)
		return
	}

	result, err := h.service.Predict(ctx, userID, img)
	if err != nil {
		respondError(c, span, logger, "Leaf disease prediction failed", err)
		return
	}

	logger.Info("Leaf disease predicted",
		zap.String("user_id", userID),
		zap.String("disease", result.Disease),
		zap.String("severity", result.Severity),
	)
	c.JSON(http.StatusOK, result)
}

// Recommend handles POST /api/leaf/recommend
func (h *LeafHandler) Recommend(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	if requireUser(c, logger) == "" {
		return
	}

	var req domain.LeafRecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	result, err := h.service.Recommend(ctx, req)
	if err != nil {
		respondError(c, span, logger, "Treatment recommendation failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Health handles GET /api/leaf/health by relaying the leaf service's probe.
func (h *LeafHandler) Health(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	raw, err := h.service.Health(ctx)
	if err != nil {
		respondError(c, span, logger, "Leaf service health check failed", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
