package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"fraction", 0.5, 0.5},
		{"percent number", 150, 1},
		{"percent string", "42%", 0.42},
		{"percent string with decimals", "97.10%", 0.971},
		{"bare percent string", "93.2", 0.932},
		{"json number", json.Number("0.25"), 0.25},
		{"json percent number", json.Number("88"), 0.88},
		{"zero", 0, 0},
		{"one", 1, 1},
		{"negative", -5, 0},
		{"not a number", "not a number", 0},
		{"empty string", "", 0},
		{"nil", nil, 0},
		{"NaN", math.NaN(), 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.in), 1e-9)
		})
	}
}

func TestConfidence_AlwaysInUnitRange(t *testing.T) {
	inputs := []any{-1e9, -1, 0, 0.3, 1, 1.5, 99.9, 100, 1e9, "250%", "-3%", "abc", json.Number("1e5")}
	for _, in := range inputs {
		got := Confidence(in)
		assert.GreaterOrEqual(t, got, 0.0, "input %v", in)
		assert.LessOrEqual(t, got, 1.0, "input %v", in)
	}
}

func TestDiseaseLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Anthracnose", DiseaseAnthracnose},
		{"anthracnose_stage", DiseaseAnthracnose},
		{"CURL", DiseaseCurl},
		{"leaf_curl", DiseaseCurl},
		{"Papaya Leaf Curl Virus", DiseaseCurl},
		{"mites", DiseaseMite},
		{"Mite disease", DiseaseMite},
		{"Mosaic", DiseaseMosaic},
		{"Ringspot", DiseaseMosaic},
		{"healthy", DiseaseHealthy},
		{"not_papaya", DiseaseNotPapaya},
		{"NotPapaya", DiseaseNotPapaya},
		{"Not a papaya", DiseaseNotPapaya},
		{"", DefaultDisease},
		{"none", DefaultDisease},
		{"something else", DefaultDisease},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DiseaseLabel(tt.in))
		})
	}
}

func TestDiseaseLabel_AnyCurlIsCurl(t *testing.T) {
	for _, in := range []string{"curl", "CURL", "Curl", "xcUrLy", "leaf-curl-severe", "CURL_mosaic"} {
		assert.Equal(t, DiseaseCurl, DiseaseLabel(in), in)
	}
}

func TestRecommendationDisease(t *testing.T) {
	assert.Equal(t, "anthracnose", RecommendationDisease("Anthracnose"))
	assert.Equal(t, "leaf_curl", RecommendationDisease("Curl"))
	assert.Equal(t, "mites", RecommendationDisease("Mite disease"))
	assert.Equal(t, "mosaic", RecommendationDisease("Mosaic virus"))
	assert.Equal(t, "healthy", RecommendationDisease(""))
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mild", SeverityMild},
		{"Early", SeverityMild},
		{"initial spots", SeverityMild},
		{"stage_1", SeverityMild},
		{"moderate", SeverityModerate},
		{"Medium", SeverityModerate},
		{"mid", SeverityModerate},
		{"stage_2", SeverityModerate},
		{"severe", SeveritySevere},
		{"late", SeveritySevere},
		{"Advanced", SeveritySevere},
		{"stage_3", SeveritySevere},
		{"", SeverityUnknown},
		{"unknown", SeverityUnknown},
		{"purple", SeverityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Severity(tt.in))
		})
	}
}

func TestSeverity_Stage2IsAlwaysModerate(t *testing.T) {
	for _, in := range []string{"stage_2", "STAGE_2", "early_stage_2", "late stage_2", "stage_2_severe", "mild-stage_2"} {
		assert.Equal(t, SeverityModerate, Severity(in), in)
	}
}

func TestGradeOf(t *testing.T) {
	tests := []struct {
		in   any
		want Grade
	}{
		{"A", GradeA},
		{"b", GradeB},
		{"Grade C", GradeC},
		{"Type A", GradeA},
		{"type_b", GradeB},
		{"gradeA", GradeA},
		{"I", GradeA},
		{"II", GradeB},
		{"iii", GradeC},
		{1, GradeA},
		{2.4, GradeB},
		{3, GradeC},
		{json.Number("1"), GradeA},
		{"2", GradeB},
		{"excellent", GradeA},
		{"Best Quality", GradeA},
		{"good", GradeB},
		{"Medium", GradeB},
		{"poor", GradeC},
		{"yellowish good", GradeB},
		{"", LowestGrade},
		{nil, LowestGrade},
		{"Not a papaya", LowestGrade},
		{7, LowestGrade},
		{Grade("B"), GradeB},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, GradeOf(tt.in))
		})
	}
}

func TestGradeOf_IsTotal(t *testing.T) {
	valid := []Grade{GradeA, GradeB, GradeC}
	inputs := []any{"", " ", "zzz", "grade", "type type", "%%%", -1, 0, 1e12, []int{1}, struct{}{}, false, "yellow"}
	for _, in := range inputs {
		assert.Contains(t, valid, GradeOf(in), "input %v", in)
	}
	assert.Equal(t, LowestGrade, GradeOf("yellow"))
}

func TestGradeRendering(t *testing.T) {
	assert.Equal(t, "I", GradeA.Roman())
	assert.Equal(t, "II", GradeB.Roman())
	assert.Equal(t, "III", GradeC.Roman())
	assert.Equal(t, "III", Grade("").Roman())
	assert.Equal(t, "B", GradeB.Letter())
	assert.Equal(t, "C", Grade("Z").Letter())
}
