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

// Label encodings used when the grading model was trained. Categories were
// encoded in alphabetical order.
var (
	districtCodes = map[domain.District]int{
		domain.DistrictGalle:       0,
		domain.DistrictHambanthota: 1,
		domain.DistrictMatara:      2,
	}
	varietyCodes  = map[string]int{"RedLady": 0, "Solo": 1, "Tenim": 2}
	maturityCodes = map[string]int{"half-mature": 0, "mature": 1, "unmature": 2}
)

// parseVariety accepts "Red Lady", "redlady" and similar spellings.
func parseVariety(s string) (string, bool) {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
	switch key {
	case "redlady":
		return "RedLady", true
	case "solo":
		return "Solo", true
	case "tenim":
		return "Tenim", true
	}
	return "", false
}

func parseMaturity(s string) (string, bool) {
	key := strings.ToLower(strings.NewReplacer(" ", "-", "_", "-").Replace(strings.TrimSpace(s)))
	switch key {
	case "half-mature", "halfmature", "half-ripe":
		return "half-mature", true
	case "mature", "ripe":
		return "mature", true
	case "unmature", "immature", "unripe":
		return "unmature", true
	}
	return "", false
}

// parseQualityCategory defaults to the best-quality tier.
func parseQualityCategory(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best quality", "best", "best_quality":
		return domain.QualityCategoryBest, true
	case "factory outlet", "factory", "factory_outlet":
		return domain.QualityCategoryFactory, true
	}
	return "", false
}

type QualityService struct {
	client QualityInference
	rec    *recorder
}

func NewQualityService(client QualityInference, logs domain.PredictionLogRepository, publisher events.Publisher, logger *zap.Logger) *QualityService {
	return &QualityService{client: client, rec: newRecorder(logs, publisher, logger)}
}

type farmerQualityInput struct {
	domain.FarmerQualityRequest
	Image imageInput `json:"image"`
}

// Farmer grades a harvested fruit. The quality category picks the model:
// the best-quality grader takes the encoded farm details, the factory outlet
// classifier only the photo.
func (s *QualityService) Farmer(ctx context.Context, userID string, img domain.Image, req domain.FarmerQualityRequest) (result *normalize.FarmerQualityResult, err error) {
	defer observe(domain.FeatureFarmerQuality, &err)
	ctx, span := middleware.StartSpan(ctx, "quality.farmer", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := requireImage(img); err != nil {
		return nil, err
	}
	category, ok := parseQualityCategory(req.QualityCategory)
	if !ok {
		return nil, domain.Invalid("quality_category", "quality_category must be 'Best Quality' or 'factory outlet'")
	}
	req.QualityCategory = category
	span.SetAttributes(attribute.String("quality.category", category))

	var features inference.GradeFeatures
	if category == domain.QualityCategoryBest {
		district, ok := domain.ParseDistrict(req.District)
		if !ok {
			return nil, domain.Invalid("district", "district must be one of Hambanthota, Matara, Galle")
		}
		variety, ok := parseVariety(req.Variety)
		if !ok {
			return nil, domain.Invalid("variety", "variety must be one of RedLady, Solo, Tenim")
		}
		maturity, ok := parseMaturity(req.Maturity)
		if !ok {
			return nil, domain.Invalid("maturity", "maturity must be one of unmature, half-mature, mature")
		}
		if req.DaysSincePicked < 0 {
			return nil, domain.Invalid("days_since_picked", "days_since_picked must not be negative")
		}
		req.District, req.Variety, req.Maturity = string(district), variety, maturity
		features = inference.GradeFeatures{
			District:         districtCodes[district],
			Variety:          varietyCodes[variety],
			Maturity:         maturityCodes[maturity],
			DaysSincePlucked: req.DaysSincePicked,
		}
	}

	raw, err := s.grade(ctx, category, img, features)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("grade fruit (%s): %w", category, err)
	}
	result, err = normalize.FarmerQuality(raw, category)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("quality.grade", string(result.Grade)))

	input := farmerQualityInput{FarmerQualityRequest: req, Image: describeImage(img)}
	if err := s.rec.record(ctx, userID, domain.FeatureFarmerQuality, input, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *QualityService) grade(ctx context.Context, category string, img domain.Image, features inference.GradeFeatures) (json.RawMessage, error) {
	if category == domain.QualityCategoryFactory {
		return s.client.ClassifyFactoryOutlet(ctx, img)
	}
	return s.client.GradeBestQuality(ctx, img, features)
}

// Customer grades a fruit photographed by a shopper. weight is optional.
func (s *QualityService) Customer(ctx context.Context, userID string, img domain.Image, req domain.CustomerQualityRequest) (result *normalize.CustomerQualityResult, err error) {
	defer observe(domain.FeatureCustomerQuality, &err)
	ctx, span := middleware.StartSpan(ctx, "quality.customer", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := requireImage(img); err != nil {
		return nil, err
	}
	if req.Weight < 0 {
		return nil, domain.Invalid("weight", "weight must not be negative")
	}

	raw, err := s.client.GradeCustomer(ctx, img, req.Weight)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("grade fruit for customer: %w", err)
	}
	result, err = normalize.CustomerQuality(raw, req.Weight)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("quality.grade", string(result.Grade)))

	input := struct {
		Weight float64    `json:"weight,omitempty"`
		Image  imageInput `json:"image"`
	}{req.Weight, describeImage(img)}
	if err := s.rec.record(ctx, userID, domain.FeatureCustomerQuality, input, result); err != nil {
		return nil, err
	}
	return result, nil
}
