package normalize

import "encoding/json"

// LeafVariant identifies one response shape of the leaf-disease service.
type LeafVariant int

const (
	LeafUnknown LeafVariant = iota
	// LeafPipeline is the flat is_leaf / disease / stage shape of /predict.
	LeafPipeline
	// LeafAnalysis nests the detection under "prediction".
	LeafAnalysis
	// LeafLegacy already reports disease_confidence and severity.
	LeafLegacy
)

type LeafResult struct {
	Disease            string  `json:"disease"`
	DiseaseConfidence  float64 `json:"disease_confidence"`
	Severity           string  `json:"severity"`
	SeverityConfidence float64 `json:"severity_confidence"`
	IsLeaf             bool    `json:"is_leaf"`
	LeafConfidence     float64 `json:"leaf_confidence"`
	NotLeafConfidence  float64 `json:"not_leaf_confidence"`
	StageLabel         string  `json:"stage_label,omitempty"`
	Message            string  `json:"message,omitempty"`
}

func detectLeafVariant(doc document) LeafVariant {
	switch {
	case doc.obj("prediction") != nil:
		return LeafAnalysis
	case doc.has("disease_confidence") || doc.has("severity_confidence"):
		return LeafLegacy
	case doc.has("is_leaf") || doc.has("disease_prob") || doc.has("leaf_prob"):
		return LeafPipeline
	}
	return LeafUnknown
}

// DetectLeafVariant probes a raw leaf-disease response.
func DetectLeafVariant(raw json.RawMessage) LeafVariant {
	doc, err := decode(raw)
	if err != nil {
		return LeafUnknown
	}
	return detectLeafVariant(doc)
}

// Leaf normalizes any known leaf-disease response.
func Leaf(raw json.RawMessage) (*LeafResult, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var out *LeafResult
	switch detectLeafVariant(doc) {
	case LeafPipeline:
		out = leafFromPipeline(doc)
	case LeafAnalysis:
		out = leafFromPipeline(doc.obj("prediction"))
		if leaf, ok := doc.boolean("is_leaf"); ok {
			out.IsLeaf = leaf
		}
		if msg := doc.str("message"); msg != "" {
			out.Message = msg
		}
	case LeafLegacy:
		out = leafFromLegacy(doc)
	default:
		return nil, unrecognized("leaf response has no is_leaf, disease or prediction")
	}
	return finishLeaf(out), nil
}

func leafFromPipeline(doc document) *LeafResult {
	out := &LeafResult{
		Disease:            DiseaseLabel(doc.str("disease")),
		DiseaseConfidence:  Confidence(first(doc, "disease_prob", "disease_confidence")),
		StageLabel:         doc.str("stage", "severity"),
		SeverityConfidence: Confidence(first(doc, "stage_prob", "severity_confidence")),
		LeafConfidence:     Confidence(first(doc, "leaf_prob", "leaf_confidence")),
		NotLeafConfidence:  Confidence(doc["not_leaf_prob"]),
		Message:            doc.str("message"),
		IsLeaf:             true,
	}
	out.Severity = Severity(out.StageLabel)
	if leaf, ok := doc.boolean("is_leaf"); ok {
		out.IsLeaf = leaf
	}
	return out
}

func leafFromLegacy(doc document) *LeafResult {
	out := &LeafResult{
		Disease:            DiseaseLabel(doc.str("disease")),
		DiseaseConfidence:  Confidence(doc["disease_confidence"]),
		StageLabel:         doc.str("severity"),
		SeverityConfidence: Confidence(doc["severity_confidence"]),
		LeafConfidence:     Confidence(doc["leaf_confidence"]),
		Message:            doc.str("message"),
		IsLeaf:             true,
	}
	out.Severity = Severity(out.StageLabel)
	if leaf, ok := doc.boolean("is_leaf"); ok {
		out.IsLeaf = leaf
	}
	return out
}

// finishLeaf applies the rules that hold for every variant.
func finishLeaf(out *LeafResult) *LeafResult {
	if !out.IsLeaf || out.Disease == DiseaseNotPapaya {
		out.IsLeaf = false
		out.Disease = DiseaseNotPapaya
		out.DiseaseConfidence = 0
		if out.NotLeafConfidence == 0 && out.LeafConfidence > 0 {
			out.NotLeafConfidence = 1 - out.LeafConfidence
		}
		if out.Message == "" {
			out.Message = "Not a papaya leaf"
		}
	}
	if !HasSeverity(out.Disease) {
		out.Severity = SeverityUnknown
		out.SeverityConfidence = 0
	}
	if out.IsLeaf && out.NotLeafConfidence == 0 && out.LeafConfidence > 0 {
		out.NotLeafConfidence = 1 - out.LeafConfidence
	}
	return out
}

func first(doc document, keys ...string) any {
	for _, k := range keys {
		if doc.has(k) {
			return doc[k]
		}
	}
	return nil
}
