package normalize

import "strings"

// Canonical disease labels exposed to the app.
const (
	DiseaseAnthracnose = "Anthracnose"
	DiseaseCurl        = "Curl"
	DiseaseMite        = "Mite disease"
	DiseaseMosaic      = "Mosaic virus"
	DiseaseHealthy     = "Healthy"
	DiseaseNotPapaya   = "NotPapaya"

	// DefaultDisease is returned for empty or unmatched labels.
	DefaultDisease = DiseaseHealthy
)

// diseaseTable is matched in order against the lower-cased label.
// Non-papaya markers come first so "not papaya" never matches a disease.
var diseaseTable = []struct {
	needle string
	label  string
}{
	{"notpapaya", DiseaseNotPapaya},
	{"not_papaya", DiseaseNotPapaya},
	{"not papaya", DiseaseNotPapaya},
	{"not a papaya", DiseaseNotPapaya},
	{"not_leaf", DiseaseNotPapaya},
	{"not leaf", DiseaseNotPapaya},
	{"anth", DiseaseAnthracnose},
	{"curl", DiseaseCurl},
	{"mite", DiseaseMite},
	{"mosaic", DiseaseMosaic},
	{"ringspot", DiseaseMosaic},
	{"virus", DiseaseMosaic},
	{"healthy", DiseaseHealthy},
}

// DiseaseLabel maps a free-text upstream label onto a canonical disease label.
// This is a best-effort substring match, not a verified classification.
func DiseaseLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "none" {
		return DefaultDisease
	}
	for _, row := range diseaseTable {
		if strings.Contains(s, row.needle) {
			return row.label
		}
	}
	return DefaultDisease
}

// HasSeverity reports whether a canonical disease carries a severity stage.
func HasSeverity(disease string) bool {
	return disease != DiseaseHealthy && disease != DiseaseNotPapaya
}

// RecommendationDisease renders a canonical label in the recommendation
// service's vocabulary.
func RecommendationDisease(raw string) string {
	switch DiseaseLabel(raw) {
	case DiseaseAnthracnose:
		return "anthracnose"
	case DiseaseCurl:
		return "leaf_curl"
	case DiseaseMite:
		return "mites"
	case DiseaseMosaic:
		return "mosaic"
	case DiseaseNotPapaya:
		return "not_papaya"
	}
	return "healthy"
}

// Canonical severity stages.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
	SeverityUnknown  = "unknown"
)

// stageTokens take precedence over the word groups below, so a label that
// names a numbered stage always resolves to that stage.
var stageTokens = []struct {
	needles []string
	label   string
}{
	{[]string{"stage_2", "stage 2", "stage2", "stage-2"}, SeverityModerate},
	{[]string{"stage_1", "stage 1", "stage1", "stage-1"}, SeverityMild},
	{[]string{"stage_3", "stage 3", "stage3", "stage-3"}, SeveritySevere},
}

var severityGroups = []struct {
	needles []string
	label   string
}{
	{[]string{"mild", "early", "initial"}, SeverityMild},
	{[]string{"moderate", "medium", "mid"}, SeverityModerate},
	{[]string{"severe", "late", "advanced"}, SeveritySevere},
}

// Severity maps a free-text stage label onto mild, moderate, severe or unknown.
func Severity(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return SeverityUnknown
	}
	for _, group := range stageTokens {
		if containsAny(s, group.needles) {
			return group.label
		}
	}
	for _, group := range severityGroups {
		if containsAny(s, group.needles) {
			return group.label
		}
	}
	return SeverityUnknown
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
