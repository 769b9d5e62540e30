package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/internal/events"
	"github.com/papayapulse/pulse-api/internal/inference"
	"github.com/papayapulse/pulse-api/internal/normalize"
	"github.com/papayapulse/pulse-api/middleware"
)

type LeafService struct {
	client LeafInference
	rec    *recorder
}

func NewLeafService(client LeafInference, logs domain.PredictionLogRepository, publisher events.Publisher, logger *zap.Logger) *LeafService {
	return &LeafService{client: client, rec: newRecorder(logs, publisher, logger)}
}

// Predict detects disease and severity on a leaf photo.
func (s *LeafService) Predict(ctx context.Context, userID string, img domain.Image) (result *normalize.LeafResult, err error) {
	defer observe(domain.FeatureLeafDisease, &err)
	ctx, span := middleware.StartSpan(ctx, "leaf.predict", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := requireImage(img); err != nil {
		return nil, err
	}

	raw, err := s.client.Detect(ctx, img)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("detect leaf disease: %w", err)
	}
	result, err = normalize.Leaf(raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("leaf.disease", result.Disease),
		attribute.String("leaf.severity", result.Severity),
	)

	input := struct {
		Image imageInput `json:"image"`
	}{describeImage(img)}
	if err := s.rec.record(ctx, userID, domain.FeatureLeafDisease, input, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Recommend asks for treatment advice. It is not written to the prediction log.
// Labels are translated to the recommendation service's vocabulary first.
func (s *LeafService) Recommend(ctx context.Context, req domain.LeafRecommendRequest) (*normalize.Recommendation, error) {
	ctx, span := middleware.StartSpan(ctx, "leaf.recommend", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if strings.TrimSpace(req.Disease) == "" {
		return nil, domain.Invalid("disease", "disease is required")
	}
	if strings.TrimSpace(req.Severity) == "" {
		return nil, domain.Invalid("severity", "severity is required")
	}

	upstreamReq := inference.RecommendRequest{
		Disease:         normalize.RecommendationDisease(req.Disease),
		Severity:        normalize.Severity(req.Severity),
		GrowthStage:     strings.TrimSpace(req.GrowthStage),
		SoilType:        strings.TrimSpace(req.SoilType),
		District:        strings.ToLower(strings.TrimSpace(req.District)),
		IncludeAIAdvice: true,
	}
	if req.IncludeAIAdvice != nil {
		upstreamReq.IncludeAIAdvice = *req.IncludeAIAdvice
	}
	span.SetAttributes(
		attribute.String("leaf.disease", upstreamReq.Disease),
		attribute.String("leaf.severity", upstreamReq.Severity),
	)

	raw, err := s.client.Recommend(ctx, upstreamReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("recommend treatment: %w", err)
	}
	rec, err := normalize.Recommend(raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rec, nil
}

// Health passes the leaf service's own health document through.
func (s *LeafService) Health(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaf service health: %w", err)
	}
	return raw, nil
}
