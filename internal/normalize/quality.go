package normalize

import (
	"encoding/json"
	"sort"
	"strings"
)

// QualityVariant identifies one historical response shape of the grading services.
type QualityVariant int

const (
	QualityUnknown QualityVariant = iota
	// QualityGradeML is the tabular model: predicted_grade, probabilities and SHAP factors.
	QualityGradeML
	// QualityTypeIM is the image classifier: "Type A" / "Type B" / "Not a papaya".
	QualityTypeIM
	// QualityLegacy is the original grade + damage_probability shape.
	QualityLegacy
)

// FeatureContribution is one explained model input.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

type FarmerQualityResult struct {
	Grade             Grade                 `json:"grade"`
	QualityCategory   string                `json:"quality_category,omitempty"`
	Confidence        float64               `json:"confidence"`
	IsPapaya          bool                  `json:"is_papaya"`
	DamageProbability *float64              `json:"damage_probability,omitempty"`
	AllProbabilities  map[string]float64    `json:"all_probabilities,omitempty"`
	ExtractedColor    string                `json:"extracted_color,omitempty"`
	TopFeatures       []FeatureContribution `json:"top_features,omitempty"`
	Explanation       []string              `json:"explanation"`
}

type CustomerQualityResult struct {
	Grade       Grade    `json:"grade"`
	Confidence  float64  `json:"confidence"`
	IsPapaya    bool     `json:"is_papaya"`
	WeightKg    float64  `json:"weight_kg,omitempty"`
	Color       string   `json:"color,omitempty"`
	Variety     string   `json:"variety,omitempty"`
	RipenDays   *int     `json:"ripen_days,omitempty"`
	Explanation []string `json:"explanation"`
}

func detectQualityVariant(doc document) QualityVariant {
	switch {
	case doc.has("predicted_grade"):
		return QualityGradeML
	case doc.has("prediction"):
		return QualityTypeIM
	case doc.has("grade"):
		return QualityLegacy
	}
	return QualityUnknown
}

// DetectQualityVariant probes a raw grading response.
func DetectQualityVariant(raw json.RawMessage) QualityVariant {
	doc, err := decode(raw)
	if err != nil {
		return QualityUnknown
	}
	return detectQualityVariant(doc)
}

// FarmerQuality normalizes any known grading response for the farmer screen.
func FarmerQuality(raw json.RawMessage, category string) (*FarmerQualityResult, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var out *FarmerQualityResult
	switch detectQualityVariant(doc) {
	case QualityGradeML:
		out = qualityFromGradeML(doc)
	case QualityTypeIM:
		out = qualityFromTypeIM(doc)
	case QualityLegacy:
		out = qualityFromLegacy(doc)
	default:
		return nil, unrecognized("quality response has no grade or prediction")
	}
	out.QualityCategory = category
	return out, nil
}

// CustomerQuality normalizes any known grading response for the customer screen.
func CustomerQuality(raw json.RawMessage, weightKg float64) (*CustomerQualityResult, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var base *FarmerQualityResult
	switch detectQualityVariant(doc) {
	case QualityGradeML:
		base = qualityFromGradeML(doc)
	case QualityTypeIM:
		base = qualityFromTypeIM(doc)
	case QualityLegacy:
		base = qualityFromLegacy(doc)
	default:
		return nil, unrecognized("quality response has no grade or prediction")
	}

	out := &CustomerQualityResult{
		Grade:       base.Grade,
		Confidence:  base.Confidence,
		IsPapaya:    base.IsPapaya,
		WeightKg:    weightKg,
		Color:       doc.str("color", "extracted_color"),
		Variety:     doc.str("variety"),
		Explanation: base.Explanation,
	}
	if doc.has("ripen_days") {
		days := doc.integer("ripen_days")
		out.RipenDays = &days
	}
	return out, nil
}

func qualityFromGradeML(doc document) *FarmerQualityResult {
	out := &FarmerQualityResult{
		Grade:            GradeOf(doc["predicted_grade"]),
		Confidence:       Confidence(doc["confidence"]),
		IsPapaya:         true,
		AllProbabilities: doc.probabilities("all_probabilities"),
		ExtractedColor:   doc.str("extracted_color"),
		Explanation:      []string{},
	}

	// explanation is either the SHAP object or a plain string/list.
	if exp := doc.obj("explanation"); exp != nil {
		if text := exp.str("explanation"); text != "" {
			out.Explanation = append(out.Explanation, text)
		}
		out.TopFeatures = contributions(exp["top_features"])
	} else {
		out.Explanation = append(out.Explanation, doc.lines("explanation")...)
	}
	return out
}

func qualityFromTypeIM(doc document) *FarmerQualityResult {
	label := doc.str("prediction")
	lower := strings.ToLower(label)
	isPapaya := !strings.Contains(lower, "not")

	out := &FarmerQualityResult{
		Grade:       GradeOf(label),
		Confidence:  Confidence(doc["confidence"]),
		IsPapaya:    isPapaya,
		Explanation: doc.lines("explanation"),
	}
	if !isPapaya {
		out.Grade = LowestGrade
	}
	if out.Explanation == nil {
		out.Explanation = []string{}
	}
	return out
}

func qualityFromLegacy(doc document) *FarmerQualityResult {
	out := &FarmerQualityResult{
		Grade:       GradeOf(doc["grade"]),
		IsPapaya:    true,
		Explanation: doc.lines("explanation"),
	}
	if doc.has("confidence") {
		out.Confidence = Confidence(doc["confidence"])
	}
	if doc.has("damage_probability") {
		p := Confidence(doc["damage_probability"])
		out.DamageProbability = &p
		if !doc.has("confidence") {
			out.Confidence = 1 - p
		}
	}
	if out.Explanation == nil {
		out.Explanation = []string{}
	}
	return out
}

// contributions reads a SHAP factor list, largest absolute contribution first.
func contributions(v any) []FeatureContribution {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]FeatureContribution, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := document(m)
		value, _ := d.num("value")
		contribution, _ := d.num("contribution", "impact")
		out = append(out, FeatureContribution{
			Feature:      d.str("feature"),
			Value:        value,
			Contribution: contribution,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return abs(out[i].Contribution) > abs(out[j].Contribution)
	})
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
