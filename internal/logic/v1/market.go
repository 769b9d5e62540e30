package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
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

// maxSellingDays bounds expected_selling_date.
const maxSellingDays = 30

type MarketService struct {
	client MarketInference
	users  domain.UserRepository
	rec    *recorder
}

func NewMarketService(client MarketInference, users domain.UserRepository, logs domain.PredictionLogRepository, publisher events.Publisher, logger *zap.Logger) *MarketService {
	return &MarketService{client: client, users: users, rec: newRecorder(logs, publisher, logger)}
}

// Predict forecasts the selling price. Only farmers may call it; the role is
// checked before the payload, so other callers always get ErrForbidden.
func (s *MarketService) Predict(ctx context.Context, userID string, req domain.MarketPriceRequest) (result *normalize.MarketResult, err error) {
	defer observe(domain.FeatureMarketPrice, &err)
	ctx, span := middleware.StartSpan(ctx, "market.predict", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := s.Authorize(ctx, userID); err != nil {
		span.SetAttributes(attribute.Bool("market.allowed", false))
		return nil, err
	}

	category, priceReq, err := buildPriceRequest(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("quality.category", category),
		attribute.String("market.quality", priceReq.Quality),
	)

	var raw json.RawMessage
	if category == domain.QualityCategoryFactory {
		raw, err = s.client.PredictFactoryOutlet(ctx, priceReq)
	} else {
		raw, err = s.client.PredictBestQuality(ctx, priceReq)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("predict market price (%s): %w", category, err)
	}
	result, err = normalize.Market(raw, category)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	req.QualityCategory = category
	if err := s.rec.record(ctx, userID, domain.FeatureMarketPrice, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Authorize returns ErrForbidden unless userID has a farmer profile.
func (s *MarketService) Authorize(ctx context.Context, userID string) error {
	user, err := s.users.GetByUID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("market prediction without a profile: %w", domain.ErrForbidden)
		}
		return err
	}
	if user.Role != domain.RoleFarmer {
		return fmt.Errorf("market prediction for role %q: %w", user.Role, domain.ErrForbidden)
	}
	return nil
}

func buildPriceRequest(req domain.MarketPriceRequest) (string, inference.PriceRequest, error) {
	var out inference.PriceRequest

	category, ok := parseQualityCategory(req.QualityCategory)
	if !ok {
		return "", out, domain.Invalid("quality_category", "quality_category must be 'Best Quality' or 'factory outlet'")
	}
	district, ok := domain.ParseDistrict(req.District)
	if !ok {
		return "", out, domain.Invalid("district", "district must be one of Hambanthota, Matara, Galle")
	}
	variety, ok := parseVariety(req.Variety)
	if !ok {
		return "", out, domain.Invalid("variety", "variety must be one of RedLady, Solo, Tenim")
	}
	method, ok := parseCultivationMethod(req.CultivationMethod)
	if !ok {
		return "", out, domain.Invalid("cultivation_method", "cultivation_method must be Organic or Inorganic")
	}
	if strings.TrimSpace(req.QualityGrade) == "" {
		return "", out, domain.Invalid("quality_grade", "quality_grade is required")
	}
	if req.TotalHarvestCount <= 0 {
		return "", out, domain.Invalid("total_harvest_count", "total_harvest_count must be positive")
	}
	if req.AvgWeightPerFruit <= 0 {
		return "", out, domain.Invalid("avg_weight_per_fruit", "avg_weight_per_fruit must be positive")
	}
	days, ok := parseSellingDays(req.ExpectedSellingDate)
	if !ok {
		return "", out, domain.Invalid("expected_selling_date", "expected_selling_date must be 'today' or '<n>day'")
	}

	grade := normalize.GradeOf(req.QualityGrade)
	quality := grade.Roman()
	if category == domain.QualityCategoryFactory {
		quality = grade.Letter()
	}

	out = inference.PriceRequest{
		District:                     string(district),
		Variety:                      variety,
		Quality:                      quality,
		CultivationMethode:           method,
		TotalHarvestPapayaUnitsCount: req.TotalHarvestCount,
		AvgWeightKg:                  req.AvgWeightPerFruit,
		ExpectSellingWeek:            days,
	}
	return category, out, nil
}

func parseCultivationMethod(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "organic":
		return "Organic", true
	case "inorganic", "conventional":
		return "Inorganic", true
	}
	return "", false
}

// parseSellingDays reads "today", "1day", "3 days" or a bare day count.
func parseSellingDays(s string) (int, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "today" {
		return 0, true
	}
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(v, "s"), "day"))
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > maxSellingDays {
		return 0, false
	}
	return n, true
}
