package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestHarvest(t *testing.T) {
	t.Run("v2", func(t *testing.T) {
		body := raw(`{
			"farmer_explanation": ["Drip irrigation helps", "Sandy loam drains well"],
			"predictions": {"yield_per_tree": 42.5, "harvest_days_total": 270, "harvest_days_remaining": 120, "days_since_planting": 150}
		}`)
		assert.Equal(t, HarvestV2, DetectHarvestVariant(body))

		got, err := Harvest(body)
		require.NoError(t, err)
		assert.Equal(t, []string{"Drip irrigation helps", "Sandy loam drains well"}, got.FarmerExplanation)
		assert.InDelta(t, 42.5, got.Predictions.YieldPerTree, 1e-9)
		assert.Equal(t, 270, got.Predictions.HarvestDaysTotal)
		assert.Equal(t, 120, got.Predictions.HarvestDaysRemaining)
		assert.Equal(t, 150, got.Predictions.DaysSincePlanting)
	})

	t.Run("v2 without days since planting", func(t *testing.T) {
		got, err := Harvest(raw(`{"farmer_explanation": [], "predictions": {"yield_per_tree": 30, "harvest_days_total": 300, "harvest_days_remaining": 100}}`))
		require.NoError(t, err)
		assert.Equal(t, 200, got.Predictions.DaysSincePlanting)
	})

	t.Run("legacy", func(t *testing.T) {
		body := raw(`{"yield_per_tree": "18.2", "harvest_days_total": 240, "harvest_days_remaining": 40, "explanation": "Looks good"}`)
		assert.Equal(t, HarvestLegacy, DetectHarvestVariant(body))

		got, err := Harvest(body)
		require.NoError(t, err)
		assert.Equal(t, []string{"Looks good"}, got.FarmerExplanation)
		assert.InDelta(t, 18.2, got.Predictions.YieldPerTree, 1e-9)
		assert.Equal(t, 200, got.Predictions.DaysSincePlanting)
	})

	t.Run("unrecognized", func(t *testing.T) {
		for _, body := range []string{`{"foo": 1}`, `not json`, `null`, `[1,2]`} {
			_, err := Harvest(raw(body))
			require.Error(t, err, body)
			assert.True(t, IsUnrecognized(err), body)
			assert.True(t, errors.Is(err, domain.ErrUpstream), body)
		}
		assert.Equal(t, HarvestUnknown, DetectHarvestVariant(raw(`{}`)))
	})
}

func TestGrowthStage(t *testing.T) {
	t.Run("advice variant", func(t *testing.T) {
		got, err := GrowthStage(raw(`{"stage": "B", "advice": ["one", "two"]}`))
		require.NoError(t, err)
		assert.Equal(t, "B", got.Stage)
		assert.InDelta(t, 1.0, got.Confidence, 1e-9)
		assert.Equal(t, []string{"one", "two"}, got.Advice)
	})

	t.Run("classifier variant", func(t *testing.T) {
		got, err := GrowthStage(raw(`{"predicted_stage": "stage_3", "confidence": "88%"}`))
		require.NoError(t, err)
		assert.Equal(t, "C", got.Stage)
		assert.InDelta(t, 0.88, got.Confidence, 1e-9)
		assert.Len(t, got.Advice, 5)
		assert.Contains(t, got.Advice[0], "stage C")
	})

	t.Run("numeric class", func(t *testing.T) {
		got, err := GrowthStage(raw(`{"class": 4, "confidence": 0.7}`))
		require.NoError(t, err)
		assert.Equal(t, "D", got.Stage)
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := GrowthStage(raw(`{"stage": "Z"}`))
		assert.True(t, IsUnrecognized(err))

		_, err = GrowthStage(raw(`{"other": true}`))
		assert.True(t, IsUnrecognized(err))
	})
}

func TestFarmerQuality(t *testing.T) {
	t.Run("grade model", func(t *testing.T) {
		body := raw(`{
			"predicted_grade": "2",
			"confidence": 0.81,
			"all_probabilities": {"1": 0.1, "2": 0.81, "3": 0.09},
			"extracted_color": "#e39b2f",
			"explanation": {
				"base_value": 1.2,
				"feature_contributions": [],
				"top_features": [
					{"feature": "district", "value": 1, "contribution": 0.05, "abs_contribution": 0.05},
					{"feature": "maturity", "value": 2, "contribution": -0.4, "abs_contribution": 0.4}
				],
				"explanation": "Maturity lowered the grade."
			}
		}`)
		assert.Equal(t, QualityGradeML, DetectQualityVariant(body))

		got, err := FarmerQuality(body, "Best Quality")
		require.NoError(t, err)
		assert.Equal(t, GradeB, got.Grade)
		assert.Equal(t, "Best Quality", got.QualityCategory)
		assert.InDelta(t, 0.81, got.Confidence, 1e-9)
		assert.True(t, got.IsPapaya)
		assert.Equal(t, "#e39b2f", got.ExtractedColor)
		assert.InDelta(t, 0.81, got.AllProbabilities["2"], 1e-9)
		require.Len(t, got.TopFeatures, 2)
		assert.Equal(t, "maturity", got.TopFeatures[0].Feature)
		assert.Equal(t, []string{"Maturity lowered the grade."}, got.Explanation)
		assert.Nil(t, got.DamageProbability)
	})

	t.Run("image classifier", func(t *testing.T) {
		body := raw(`{"prediction": "Type B", "confidence": "93.20%", "explanation": "Uneven skin colour."}`)
		assert.Equal(t, QualityTypeIM, DetectQualityVariant(body))

		got, err := FarmerQuality(body, "factory outlet")
		require.NoError(t, err)
		assert.Equal(t, GradeB, got.Grade)
		assert.InDelta(t, 0.932, got.Confidence, 1e-9)
		assert.True(t, got.IsPapaya)
		assert.Equal(t, []string{"Uneven skin colour."}, got.Explanation)
	})

	t.Run("not a papaya", func(t *testing.T) {
		got, err := FarmerQuality(raw(`{"prediction": "Not a papaya", "confidence": "99%", "explanation": "The uploaded image was classified as not a papaya."}`), "factory outlet")
		require.NoError(t, err)
		assert.False(t, got.IsPapaya)
		assert.Equal(t, LowestGrade, got.Grade)
	})

	t.Run("legacy", func(t *testing.T) {
		body := raw(`{"grade": "A", "damage_probability": 0.1, "explanation": ["Good colour", "No bruises"]}`)
		assert.Equal(t, QualityLegacy, DetectQualityVariant(body))

		got, err := FarmerQuality(body, "")
		require.NoError(t, err)
		assert.Equal(t, GradeA, got.Grade)
		require.NotNil(t, got.DamageProbability)
		assert.InDelta(t, 0.1, *got.DamageProbability, 1e-9)
		assert.InDelta(t, 0.9, got.Confidence, 1e-9)
		assert.Len(t, got.Explanation, 2)
	})

	t.Run("unrecognized", func(t *testing.T) {
		_, err := FarmerQuality(raw(`{"error": "bad"}`), "")
		assert.True(t, IsUnrecognized(err))
	})
}

func TestCustomerQuality(t *testing.T) {
	got, err := CustomerQuality(raw(`{"color": "yellow", "variety": "RedLady", "ripen_days": 3, "grade": "B", "average_temperature": 28}`), 1.25)
	require.NoError(t, err)
	assert.Equal(t, GradeB, got.Grade)
	assert.Equal(t, "yellow", got.Color)
	assert.Equal(t, "RedLady", got.Variety)
	require.NotNil(t, got.RipenDays)
	assert.Equal(t, 3, *got.RipenDays)
	assert.InDelta(t, 1.25, got.WeightKg, 1e-9)
	assert.NotNil(t, got.Explanation)

	got, err = CustomerQuality(raw(`{"prediction": "Type A", "confidence": "75%", "explanation": "Smooth skin."}`), 0)
	require.NoError(t, err)
	assert.Equal(t, GradeA, got.Grade)
	assert.Nil(t, got.RipenDays)
}

func TestMarket(t *testing.T) {
	t.Run("v2", func(t *testing.T) {
		body := raw(`{
			"success": true,
			"predictions": {"best_selling_day": "in_3_days", "price_per_kg": 182.5, "total_harvest_value": 45625},
			"summary": "Prices look strong this week.",
			"xai_factors": [{"feature": "rainfall_impact_score", "impact": -4.2}, {"feature": "festival_demand", "impact": 9.1}],
			"timestamp": "2026-01-01T00:00:00"
		}`)
		assert.Equal(t, MarketV2, DetectMarketVariant(body))

		got, err := Market(body, "Best Quality")
		require.NoError(t, err)
		assert.Equal(t, "Best Quality", got.QualityCategory)
		assert.InDelta(t, 182.5, got.PredictedPricePerKg, 1e-9)
		assert.InDelta(t, 45625, got.PredictedTotalIncome, 1e-9)
		assert.Equal(t, "in 3 days", got.SuggestedSellingDay)
		assert.Equal(t, "Prices look strong this week.", got.Summary)
		require.Len(t, got.Factors, 2)
		require.Len(t, got.Explanation, 3)
		assert.Equal(t, "Rainfall impact score lowered the price by 4.20", got.Explanation[1])
		assert.Equal(t, "Festival demand raised the price by 9.10", got.Explanation[2])
	})

	t.Run("legacy", func(t *testing.T) {
		body := raw(`{"predicted_price_per_kg": 150, "predicted_total_income": 30000, "suggested_selling_day": "Monday", "explanation": ["Demand is high"]}`)
		assert.Equal(t, MarketLegacy, DetectMarketVariant(body))

		got, err := Market(body, "factory outlet")
		require.NoError(t, err)
		assert.InDelta(t, 150, got.PredictedPricePerKg, 1e-9)
		assert.Equal(t, "Monday", got.SuggestedSellingDay)
		assert.Equal(t, []string{"Demand is high"}, got.Explanation)
		assert.Empty(t, got.Factors)
	})

	t.Run("in-band failure", func(t *testing.T) {
		_, err := Market(raw(`{"success": false, "error": "Traceback (most recent call last):\n  File ..."}`), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstreamRejected)
		assert.ErrorIs(t, err, domain.ErrUpstream)
		assert.NotContains(t, err.Error(), "File ...")
	})

	t.Run("unrecognized", func(t *testing.T) {
		_, err := Market(raw(`{"price": 1}`), "")
		assert.True(t, IsUnrecognized(err))
	})
}

func TestLeaf(t *testing.T) {
	t.Run("not a leaf", func(t *testing.T) {
		body := raw(`{"is_leaf": false, "leaf_prob": "3.00%", "not_leaf_prob": "97.00%", "message": "Not a papaya leaf"}`)
		assert.Equal(t, LeafPipeline, DetectLeafVariant(body))

		got, err := Leaf(body)
		require.NoError(t, err)
		assert.Equal(t, DiseaseNotPapaya, got.Disease)
		assert.Equal(t, SeverityUnknown, got.Severity)
		assert.Zero(t, got.SeverityConfidence)
		assert.False(t, got.IsLeaf)
		assert.InDelta(t, 0.97, got.NotLeafConfidence, 1e-9)
		assert.Equal(t, "Not a papaya leaf", got.Message)
	})

	t.Run("diseased leaf", func(t *testing.T) {
		got, err := Leaf(raw(`{"is_leaf": true, "leaf_prob": "99.10%", "not_leaf_prob": "0.90%", "disease": "anthracnose", "disease_prob": "91.00%", "stage": "stage_2", "stage_prob": "80.00%"}`))
		require.NoError(t, err)
		assert.Equal(t, DiseaseAnthracnose, got.Disease)
		assert.InDelta(t, 0.91, got.DiseaseConfidence, 1e-9)
		assert.Equal(t, SeverityModerate, got.Severity)
		assert.Equal(t, "stage_2", got.StageLabel)
		assert.InDelta(t, 0.8, got.SeverityConfidence, 1e-9)
		assert.True(t, got.IsLeaf)
	})

	t.Run("healthy leaf", func(t *testing.T) {
		got, err := Leaf(raw(`{"is_leaf": true, "leaf_prob": "98%", "disease": "healthy", "disease_prob": "95%", "stage": "healthy", "stage_prob": "90%"}`))
		require.NoError(t, err)
		assert.Equal(t, DiseaseHealthy, got.Disease)
		assert.Equal(t, SeverityUnknown, got.Severity)
		assert.Zero(t, got.SeverityConfidence)
		assert.InDelta(t, 0.02, got.NotLeafConfidence, 1e-9)
	})

	t.Run("analysis", func(t *testing.T) {
		body := raw(`{"is_leaf": true, "prediction": {"disease": "Papaya_Leaf_Curl", "disease_confidence": "77%", "severity": "severe", "severity_confidence": "66%", "leaf_confidence": "99%"}, "severity": "severe"}`)
		assert.Equal(t, LeafAnalysis, DetectLeafVariant(body))

		got, err := Leaf(body)
		require.NoError(t, err)
		assert.Equal(t, DiseaseCurl, got.Disease)
		assert.Equal(t, SeveritySevere, got.Severity)
		assert.InDelta(t, 0.66, got.SeverityConfidence, 1e-9)
	})

	t.Run("legacy", func(t *testing.T) {
		body := raw(`{"disease": "Mite disease", "disease_confidence": 0.8, "severity": "mild", "severity_confidence": 0.6}`)
		assert.Equal(t, LeafLegacy, DetectLeafVariant(body))

		got, err := Leaf(body)
		require.NoError(t, err)
		assert.Equal(t, DiseaseMite, got.Disease)
		assert.Equal(t, SeverityMild, got.Severity)
		assert.True(t, got.IsLeaf)
	})

	t.Run("legacy not a leaf", func(t *testing.T) {
		body := raw(`{"is_leaf": false, "disease": "Anthracnose", "disease_confidence": 0.9, "severity": "early", "severity_confidence": 0.8}`)
		assert.Equal(t, LeafLegacy, DetectLeafVariant(body))

		got, err := Leaf(body)
		require.NoError(t, err)
		assert.Equal(t, DiseaseNotPapaya, got.Disease)
		assert.Equal(t, SeverityUnknown, got.Severity)
		assert.Zero(t, got.SeverityConfidence)
		assert.Zero(t, got.DiseaseConfidence)
		assert.False(t, got.IsLeaf)
	})

	t.Run("unrecognized", func(t *testing.T) {
		_, err := Leaf(raw(`{"error": "Image missing"}`))
		assert.True(t, IsUnrecognized(err))
	})
}

func TestRecommend(t *testing.T) {
	body := raw(`{
		"disease": "anthracnose",
		"severity": "Moderate",
		"growth_stage": "flowering",
		"soil_type": "sandy_loam",
		"fertilizer": {"action": "REDUCE_N_INCREASE_K", "confidence": 0.873, "advice_en": "Reduce nitrogen", "advice_si": "..."},
		"prevention": {"pack": ["REMOVE_LEAVES", "COPPER_SPRAY"], "steps_en": ["Remove infected leaves", "Spray copper"], "steps_si": ["a", "b"]},
		"weather_risk": null,
		"ai_advice": {"advice_en": "Spray in the morning", "confidence": 0.75, "ai_enriched": true}
	}`)

	got, err := Recommend(body)
	require.NoError(t, err)
	assert.Equal(t, "anthracnose", got.Disease)
	assert.Equal(t, "moderate", got.Severity)
	assert.InDelta(t, 0.873, got.Fertilizer.Confidence, 1e-9)
	assert.Equal(t, []string{"REMOVE_LEAVES", "COPPER_SPRAY"}, got.Prevention.Pack)
	assert.Nil(t, got.WeatherRisk)
	assert.JSONEq(t, `{"advice_en": "Spray in the morning", "confidence": 0.75, "ai_enriched": true}`, string(got.AIAdvice))

	_, err = Recommend(raw(`{"disease": "x"}`))
	assert.True(t, IsUnrecognized(err))
}
