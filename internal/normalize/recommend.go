package normalize

import (
	"encoding/json"
	"strings"
)

type Fertilizer struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	AdviceEN   string  `json:"advice_en"`
	AdviceSI   string  `json:"advice_si"`
}

type Prevention struct {
	Pack    []string `json:"pack"`
	StepsEN []string `json:"steps_en"`
	StepsSI []string `json:"steps_si"`
}

// Recommendation is the treatment plan; weather and AI advice pass through untouched.
type Recommendation struct {
	Disease     string          `json:"disease"`
	Severity    string          `json:"severity"`
	GrowthStage string          `json:"growth_stage,omitempty"`
	SoilType    string          `json:"soil_type,omitempty"`
	Fertilizer  Fertilizer      `json:"fertilizer"`
	Prevention  Prevention      `json:"prevention"`
	WeatherRisk json.RawMessage `json:"weather_risk,omitempty"`
	AIAdvice    json.RawMessage `json:"ai_advice,omitempty"`
}

// Recommend normalizes a treatment recommendation response.
func Recommend(raw json.RawMessage) (*Recommendation, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}
	fert := doc.obj("fertilizer")
	if fert == nil && !doc.has("prevention") {
		return nil, unrecognized("recommendation has neither fertilizer nor prevention")
	}

	out := &Recommendation{
		Disease:     doc.str("disease"),
		Severity:    strings.ToLower(doc.str("severity")),
		GrowthStage: doc.str("growth_stage"),
		SoilType:    doc.str("soil_type"),
		WeatherRisk: doc.raw("weather_risk"),
		AIAdvice:    doc.raw("ai_advice"),
	}
	if fert != nil {
		out.Fertilizer = Fertilizer{
			Action:     fert.str("action"),
			Confidence: Confidence(fert["confidence"]),
			AdviceEN:   fert.str("advice_en"),
			AdviceSI:   fert.str("advice_si"),
		}
	}
	prev := doc.obj("prevention")
	out.Prevention = Prevention{
		Pack:    orEmpty(prev.lines("pack")),
		StepsEN: orEmpty(prev.lines("steps_en")),
		StepsSI: orEmpty(prev.lines("steps_si")),
	}
	return out, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
