package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	logicv1 "github.com/papayapulse/pulse-api/internal/logic/v1"
)

type MarketHandler struct {
	service *logicv1.MarketService
}

func NewMarketHandler(service *logicv1.MarketService) *MarketHandler {
	return &MarketHandler{service: service}
}

// Predict handles POST /api/market/predict. Non-farmers get 403 even when the
// body is malformed.
func (h *MarketHandler) Predict(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	var req domain.MarketPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if authErr := h.service.Authorize(ctx, userID); authErr != nil {
			respondError(c, span, logger, "Market prediction refused", authErr)
			return
		}
		badRequest(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	result, err := h.service.Predict(ctx, userID, req)
	if err != nil {
		respondError(c, span, logger, "Market prediction failed", err)
		return
	}

	logger.Info("Market price predicted",
		zap.String("user_id", userID),
		zap.Float64("price_per_kg", result.PredictedPricePerKg),
	)
	c.JSON(http.StatusOK, result)
}
