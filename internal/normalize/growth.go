package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HarvestVariant identifies one historical response shape of the harvest service.
type HarvestVariant int

const (
	HarvestUnknown HarvestVariant = iota
	// HarvestV2 nests the numbers under "predictions".
	HarvestV2
	// HarvestLegacy returns flat numbers and an "explanation" list.
	HarvestLegacy
)

type HarvestPredictions struct {
	YieldPerTree         float64 `json:"yield_per_tree"`
	HarvestDaysTotal     int     `json:"harvest_days_total"`
	HarvestDaysRemaining int     `json:"harvest_days_remaining"`
	DaysSincePlanting    int     `json:"days_since_planting"`
}

type HarvestResult struct {
	FarmerExplanation []string           `json:"farmer_explanation"`
	Predictions       HarvestPredictions `json:"predictions"`
}

func detectHarvestVariant(doc document) HarvestVariant {
	switch {
	case doc.obj("predictions") != nil:
		return HarvestV2
	case doc.has("yield_per_tree"):
		return HarvestLegacy
	}
	return HarvestUnknown
}

// DetectHarvestVariant probes a raw harvest response.
func DetectHarvestVariant(raw json.RawMessage) HarvestVariant {
	doc, err := decode(raw)
	if err != nil {
		return HarvestUnknown
	}
	return detectHarvestVariant(doc)
}

// Harvest normalizes any known harvest response variant.
func Harvest(raw json.RawMessage) (*HarvestResult, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}
	switch detectHarvestVariant(doc) {
	case HarvestV2:
		return harvestFromPredictions(doc.lines("farmer_explanation"), doc.obj("predictions")), nil
	case HarvestLegacy:
		return harvestFromPredictions(doc.lines("explanation"), doc), nil
	}
	return nil, unrecognized("harvest response has neither predictions nor yield_per_tree")
}

func harvestFromPredictions(explanation []string, p document) *HarvestResult {
	if explanation == nil {
		explanation = []string{}
	}
	yield, _ := p.num("yield_per_tree")
	total := p.integer("harvest_days_total")
	remaining := p.integer("harvest_days_remaining")
	since := p.integer("days_since_planting")
	if since == 0 && total > 0 && remaining > 0 && remaining <= total {
		since = total - remaining
	}
	return &HarvestResult{
		FarmerExplanation: explanation,
		Predictions: HarvestPredictions{
			YieldPerTree:         yield,
			HarvestDaysTotal:     total,
			HarvestDaysRemaining: remaining,
			DaysSincePlanting:    since,
		},
	}
}

// StageVariant identifies one response shape of the growth-stage classifier.
type StageVariant int

const (
	StageUnknown StageVariant = iota
	// StageAdvice returns a stage letter together with advice lines.
	StageAdvice
	// StageClassifier returns a raw class label and a confidence.
	StageClassifier
)

type StageResult struct {
	Stage      string   `json:"stage"`
	Confidence float64  `json:"confidence"`
	Advice     []string `json:"advice"`
}

var stageLetters = []string{"A", "B", "C", "D"}

func detectStageVariant(doc document) StageVariant {
	switch {
	case doc.has("stage") && doc.has("advice"):
		return StageAdvice
	case doc.has("predicted_stage"), doc.has("class"), doc.has("stage"), doc.has("prediction"):
		return StageClassifier
	}
	return StageUnknown
}

// GrowthStage normalizes any known growth-stage response variant.
func GrowthStage(raw json.RawMessage) (*StageResult, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var label string
	var advice []string
	switch detectStageVariant(doc) {
	case StageAdvice:
		label = doc.str("stage")
		advice = doc.lines("advice")
	case StageClassifier:
		label = doc.str("predicted_stage", "class", "stage", "prediction")
	default:
		return nil, unrecognized("growth stage response has no stage field")
	}

	stage, ok := stageLetter(label)
	if !ok {
		return nil, unrecognized(fmt.Sprintf("growth stage %q", label))
	}
	if len(advice) == 0 {
		advice = defaultStageAdvice(stage)
	}
	conf := 1.0
	if _, present := doc["confidence"]; present {
		conf = Confidence(doc["confidence"])
	}
	return &StageResult{Stage: stage, Confidence: conf, Advice: advice}, nil
}

// stageLetter accepts "A".."D", "stage_b", "Stage C" or 1..4.
func stageLetter(label string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	s = strings.TrimLeft(strings.TrimPrefix(s, "STAGE"), " _-:")
	for i, letter := range stageLetters {
		if s == letter || s == fmt.Sprint(i+1) {
			return letter, true
		}
	}
	return "", false
}

func defaultStageAdvice(stage string) []string {
	return []string{
		fmt.Sprintf("Your plant is on stage %s.", stage),
		"To reach the next stage: water consistently, add fertilizer every 1½ weeks.",
		"Ensure adequate sunlight (6-8 hours daily).",
		"Monitor for pests and diseases regularly.",
		"Maintain soil pH between 6.0-6.5 for optimal growth.",
	}
}
