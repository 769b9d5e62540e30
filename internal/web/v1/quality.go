package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	logicv1 "github.com/papayapulse/pulse-api/internal/logic/v1"
)

type QualityHandler struct {
	service *logicv1.QualityService
}

func NewQualityHandler(service *logicv1.QualityService) *QualityHandler {
	return &QualityHandler{service: service}
}

// Farmer handles POST /api/quality/farmer: a photo plus farm details as form fields.
func (h *QualityHandler) Farmer(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	img, err := readImage(c)
	if err != nil {
		respondError(c, span, logger, "Invalid quality upload", err)
		return
	}
	var req domain.FarmerQualityRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	result, err := h.service.Farmer(ctx, userID, img, req)
	if err != nil {
		respondError(c, span, logger, "Farmer quality grading failed", err)
		return
	}

	logger.Info("Fruit graded",
		zap.String("user_id", userID),
		zap.String("grade", string(result.Grade)),
		zap.String("quality_category", result.QualityCategory),
	)
	c.JSON(http.StatusOK, result)
}

// Customer handles POST /api/quality/customer
func (h *QualityHandler) Customer(c *gin.Context) {
	ctx, span, logger := requestScope(c)
	defer span.End()

	userID := requireUser(c, logger)
	if userID == "" {
		return
	}

	img, err := readImage(c)
	if err != nil {
		respondError(c, span, logger, "Invalid quality upload", err)
		return
	}
	var req domain.CustomerQualityRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}

	result, err := h.service.Customer(ctx, userID, img, req)
	if err != nil {
		respondError(c, span, logger, "Customer quality grading failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
