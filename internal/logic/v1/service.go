package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/internal/events"
	"github.com/papayapulse/pulse-api/internal/inference"
	"github.com/papayapulse/pulse-api/middleware"
)

// Gateway clients as seen by the services. The inference package provides
// the implementations.
type (
	GrowthInference interface {
		ClassifyStage(ctx context.Context, img domain.Image) (json.RawMessage, error)
		PredictHarvest(ctx context.Context, req domain.HarvestRequest) (json.RawMessage, error)
	}

	QualityInference interface {
		GradeBestQuality(ctx context.Context, img domain.Image, features inference.GradeFeatures) (json.RawMessage, error)
		ClassifyFactoryOutlet(ctx context.Context, img domain.Image) (json.RawMessage, error)
		GradeCustomer(ctx context.Context, img domain.Image, weightKg float64) (json.RawMessage, error)
	}

	MarketInference interface {
		PredictBestQuality(ctx context.Context, req inference.PriceRequest) (json.RawMessage, error)
		PredictFactoryOutlet(ctx context.Context, req inference.PriceRequest) (json.RawMessage, error)
	}

	LeafInference interface {
		Detect(ctx context.Context, img domain.Image) (json.RawMessage, error)
		Recommend(ctx context.Context, req inference.RecommendRequest) (json.RawMessage, error)
		Health(ctx context.Context) (json.RawMessage, error)
	}
)

// recorder writes the prediction log entry for a finished feature call and
// announces it on the event stream.
type recorder struct {
	logs      domain.PredictionLogRepository
	publisher events.Publisher
	logger    *zap.Logger
}

func newRecorder(logs domain.PredictionLogRepository, publisher events.Publisher, logger *zap.Logger) *recorder {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recorder{logs: logs, publisher: publisher, logger: logger}
}

// record fails only when the log write fails. A 2xx response always has a log entry;
// the event is best effort.
func (r *recorder) record(ctx context.Context, userID string, feature domain.FeatureType, input, output any) error {
	ctx, span := middleware.StartSpan(ctx, "prediction.record", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("prediction.type", string(feature)),
	))
	defer span.End()

	in, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode %s input: %w", feature, err)
	}
	out, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode %s output: %w", feature, err)
	}

	entry := &domain.PredictionLog{UserID: userID, Type: feature, Input: in, Output: out}
	if err := r.logs.Append(ctx, entry); err != nil {
		span.RecordError(err)
		return fmt.Errorf("record %s prediction: %w", feature, err)
	}
	span.SetAttributes(attribute.String("prediction.id", entry.ID))

	if err := r.publisher.PublishPrediction(ctx, events.NewPredictionEvent(entry)); err != nil {
		r.logger.Warn("Failed to publish prediction event",
			zap.String("log_id", entry.ID),
			zap.String("type", string(feature)),
			zap.Error(err),
		)
	}
	return nil
}

// imageInput is what a prediction log keeps of an uploaded picture.
type imageInput struct {
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
}

func describeImage(img domain.Image) imageInput {
	return imageInput{Filename: img.Filename, ContentType: img.ContentType, Size: len(img.Data)}
}

func requireImage(img domain.Image) error {
	if len(img.Data) == 0 {
		return domain.Invalid("image", "No image file provided")
	}
	return nil
}

// observe counts a finished feature call; use with a named error result.
func observe(feature domain.FeatureType, err *error) {
	middleware.RecordPrediction(string(feature), outcome(*err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream_error"
	}
	return "error"
}
