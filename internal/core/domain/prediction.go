package domain

import (
	"encoding/json"
	"time"
)

// FeatureType identifies which inference feature produced a prediction log entry.
type FeatureType string

const (
	FeatureGrowthStage     FeatureType = "growth_stage"
	FeatureHarvest         FeatureType = "harvest"
	FeatureFarmerQuality   FeatureType = "farmer_quality"
	FeatureCustomerQuality FeatureType = "customer_quality"
	FeatureMarketPrice     FeatureType = "market_price"
	FeatureLeafDisease     FeatureType = "leaf_disease"
)

// Valid reports whether f is one of the known feature types.
func (f FeatureType) Valid() bool {
	switch f {
	case FeatureGrowthStage, FeatureHarvest, FeatureFarmerQuality,
		FeatureCustomerQuality, FeatureMarketPrice, FeatureLeafDisease:
		return true
	}
	return false
}

// MaxHistoryEntries caps every history query.
const MaxHistoryEntries = 50

// PredictionLog is one append-only record of a successful feature call.
// Input and Output are stored verbatim.
type PredictionLog struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      FeatureType     `json:"type"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MaxImageBytes caps a picture forwarded to an inference service.
const MaxImageBytes = 10 << 20

// Image is an uploaded picture forwarded to an inference service.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

type HarvestRequest struct {
	District          string `json:"district"`
	SoilType          string `json:"soil_type" binding:"required"`
	WateringMethod    string `json:"watering_method" binding:"required"`
	WateringFrequency int    `json:"watering_frequency" binding:"required,min=1"`
	TreesCount        int    `json:"trees_count" binding:"required,min=1"`
	PlantMonth        int    `json:"plant_month" binding:"required,min=1,max=12"`
}

// Quality tiers selectable on the farmer grading and market screens.
const (
	QualityCategoryBest    = "Best Quality"
	QualityCategoryFactory = "factory outlet"
)

// FarmerQualityRequest fields are checked by the service: the factory outlet
// tier needs only the photo.
type FarmerQualityRequest struct {
	FarmerID        string   `form:"farmer_id" json:"farmer_id,omitempty"`
	District        string   `form:"district" json:"district"`
	Variety         string   `form:"variety" json:"variety"`
	Maturity        string   `form:"maturity" json:"maturity"`
	DaysSincePicked int      `form:"days_since_picked" json:"days_since_picked" binding:"min=0"`
	Temperature     *float64 `form:"temperature" json:"temperature,omitempty"`
	QualityCategory string   `form:"quality_category" json:"quality_category"`
}

type CustomerQualityRequest struct {
	Weight float64 `form:"weight" json:"weight" binding:"min=0"`
}

// MarketPriceRequest carries no binding tags: the farmer-only role check
// runs before field validation.
type MarketPriceRequest struct {
	District            string  `json:"district"`
	Variety             string  `json:"variety"`
	CultivationMethod   string  `json:"cultivation_method"`
	QualityGrade        string  `json:"quality_grade"`
	TotalHarvestCount   int     `json:"total_harvest_count"`
	AvgWeightPerFruit   float64 `json:"avg_weight_per_fruit"`
	ExpectedSellingDate string  `json:"expected_selling_date"`
	QualityCategory     string  `json:"quality_category"`
}

type LeafRecommendRequest struct {
	Disease         string `json:"disease"`
	Severity        string `json:"severity"`
	GrowthStage     string `json:"growth_stage,omitempty"`
	SoilType        string `json:"soil_type,omitempty"`
	District        string `json:"district,omitempty"`
	IncludeAIAdvice *bool  `json:"include_ai_advice,omitempty"`
}
