package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarketVariant identifies one response shape of the price services.
type MarketVariant int

const (
	MarketUnknown MarketVariant = iota
	// MarketV2 nests numbers under "predictions" and explains them with "xai_factors".
	MarketV2
	// MarketLegacy is the flat predicted_price_per_kg shape.
	MarketLegacy
)

// Factor is one explained price driver.
type Factor struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"`
}

type MarketResult struct {
	QualityCategory      string   `json:"quality_category,omitempty"`
	PredictedPricePerKg  float64  `json:"predicted_price_per_kg"`
	PredictedTotalIncome float64  `json:"predicted_total_income"`
	SuggestedSellingDay  string   `json:"suggested_selling_day"`
	Summary              string   `json:"summary,omitempty"`
	Explanation          []string `json:"explanation"`
	Factors              []Factor `json:"factors,omitempty"`
}

func detectMarketVariant(doc document) MarketVariant {
	switch {
	case doc.has("success") || doc.obj("predictions") != nil:
		return MarketV2
	case doc.has("predicted_price_per_kg"):
		return MarketLegacy
	}
	return MarketUnknown
}

// DetectMarketVariant probes a raw price response.
func DetectMarketVariant(raw json.RawMessage) MarketVariant {
	doc, err := decode(raw)
	if err != nil {
		return MarketUnknown
	}
	return detectMarketVariant(doc)
}

// Market normalizes any known price response for the given quality tier.
func Market(raw json.RawMessage, category string) (*MarketResult, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var out *MarketResult
	switch detectMarketVariant(doc) {
	case MarketV2:
		if ok, present := doc.boolean("success"); present && !ok {
			msg := doc.str("error", "message")
			if msg == "" {
				msg = "prediction failed"
			}
			return nil, fmt.Errorf("%w: %s", ErrUpstreamRejected, firstLine(msg))
		}
		p := doc.obj("predictions")
		if p == nil {
			return nil, unrecognized("price response has no predictions")
		}
		out = marketFromV2(doc, p)
	case MarketLegacy:
		out = marketFromLegacy(doc)
	default:
		return nil, unrecognized("price response has neither predictions nor predicted_price_per_kg")
	}
	out.QualityCategory = category
	return out, nil
}

func marketFromV2(doc, p document) *MarketResult {
	price, _ := p.num("price_per_kg", "predicted_price_per_kg")
	total, _ := p.num("total_harvest_value", "predicted_total_income")
	out := &MarketResult{
		PredictedPricePerKg:  price,
		PredictedTotalIncome: total,
		SuggestedSellingDay:  sellingDay(p.str("best_selling_day", "suggested_selling_day")),
		Summary:              doc.str("summary"),
		Factors:              factors(doc["xai_factors"]),
		Explanation:          []string{},
	}
	if out.Summary != "" {
		out.Explanation = append(out.Explanation, out.Summary)
	}
	for _, f := range out.Factors {
		direction := "raised"
		if f.Impact < 0 {
			direction = "lowered"
		}
		out.Explanation = append(out.Explanation,
			fmt.Sprintf("%s %s the price by %.2f", humanize(f.Feature), direction, abs(f.Impact)))
	}
	return out
}

func marketFromLegacy(doc document) *MarketResult {
	price, _ := doc.num("predicted_price_per_kg")
	total, _ := doc.num("predicted_total_income")
	out := &MarketResult{
		PredictedPricePerKg:  price,
		PredictedTotalIncome: total,
		SuggestedSellingDay:  sellingDay(doc.str("suggested_selling_day")),
		Summary:              doc.str("summary"),
		Explanation:          doc.lines("explanation"),
	}
	if out.Explanation == nil {
		out.Explanation = []string{}
	}
	return out
}

func factors(v any) []Factor {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Factor, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := document(m)
		impact, _ := d.num("impact", "contribution")
		out = append(out, Factor{Feature: d.str("feature"), Impact: impact})
	}
	return out
}

// sellingDay renders encoder labels such as "in_3_days" as "in 3 days".
func sellingDay(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func humanize(feature string) string {
	s := strings.ReplaceAll(feature, "_", " ")
	if s == "" {
		return "Unknown factor"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
