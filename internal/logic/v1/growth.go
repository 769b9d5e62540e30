package v1

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/internal/events"
	"github.com/papayapulse/pulse-api/internal/normalize"
	"github.com/papayapulse/pulse-api/middleware"
)

type GrowthService struct {
	client GrowthInference
	rec    *recorder
}

func NewGrowthService(client GrowthInference, logs domain.PredictionLogRepository, publisher events.Publisher, logger *zap.Logger) *GrowthService {
	return &GrowthService{client: client, rec: newRecorder(logs, publisher, logger)}
}

// Stage classifies the growth stage shown in a plant photo.
func (s *GrowthService) Stage(ctx context.Context, userID string, img domain.Image) (result *normalize.StageResult, err error) {
	defer observe(domain.FeatureGrowthStage, &err)
	ctx, span := middleware.StartSpan(ctx, "growth.stage", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := requireImage(img); err != nil {
		return nil, err
	}

	raw, err := s.client.ClassifyStage(ctx, img)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("classify growth stage: %w", err)
	}
	result, err = normalize.GrowthStage(raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("growth.stage", result.Stage))

	input := struct {
		HasImage bool       `json:"hasImage"`
		Image    imageInput `json:"image"`
	}{true, describeImage(img)}
	if err := s.rec.record(ctx, userID, domain.FeatureGrowthStage, input, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Harvest estimates yield per tree and days to harvest.
func (s *GrowthService) Harvest(ctx context.Context, userID string, req domain.HarvestRequest) (result *normalize.HarvestResult, err error) {
	defer observe(domain.FeatureHarvest, &err)
	ctx, span := middleware.StartSpan(ctx, "growth.harvest", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	district, ok := domain.ParseDistrict(req.District)
	if !ok {
		return nil, domain.Invalid("district", "district must be one of Hambanthota, Matara, Galle")
	}
	req.District = string(district)
	req.SoilType = strings.TrimSpace(req.SoilType)
	req.WateringMethod = strings.TrimSpace(req.WateringMethod)
	if req.SoilType == "" {
		return nil, domain.Invalid("soil_type", "soil_type is required")
	}
	if req.WateringMethod == "" {
		return nil, domain.Invalid("watering_method", "watering_method is required")
	}
	if req.PlantMonth < 1 || req.PlantMonth > 12 {
		return nil, domain.Invalid("plant_month", "plant_month must be between 1 and 12")
	}
	if req.TreesCount < 1 || req.WateringFrequency < 1 {
		return nil, domain.Invalid("trees_count", "trees_count and watering_frequency must be positive")
	}

	raw, err := s.client.PredictHarvest(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("predict harvest: %w", err)
	}
	result, err = normalize.Harvest(raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Float64("harvest.yield_per_tree", result.Predictions.YieldPerTree))

	if err := s.rec.record(ctx, userID, domain.FeatureHarvest, req, result); err != nil {
		return nil, err
	}
	return result, nil
}
