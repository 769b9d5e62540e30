package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Grade is the canonical three-level quality grade. A is the best.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"

	// LowestGrade is the fallback for input that matches nothing.
	LowestGrade = GradeC
)

// Roman renders the grade the way the best-quality price model expects it.
func (g Grade) Roman() string {
	switch g {
	case GradeA:
		return "I"
	case GradeB:
		return "II"
	}
	return "III"
}

// Letter renders the grade as a plain letter.
func (g Grade) Letter() string {
	switch g {
	case GradeA, GradeB, GradeC:
		return string(g)
	}
	return string(LowestGrade)
}

var gradeAliases = map[string]Grade{
	"a": GradeA, "i": GradeA, "1": GradeA, "one": GradeA, "first": GradeA,
	"b": GradeB, "ii": GradeB, "2": GradeB, "two": GradeB, "second": GradeB,
	"c": GradeC, "iii": GradeC, "3": GradeC, "three": GradeC, "third": GradeC,
}

// gradeWords is scanned in order; the first word present in the input wins.
var gradeWords = []struct {
	word  string
	grade Grade
}{
	{"excellent", GradeA},
	{"premium", GradeA},
	{"best", GradeA},
	{"high", GradeA},
	{"good", GradeB},
	{"medium", GradeB},
	{"average", GradeB},
	{"standard", GradeB},
	{"moderate", GradeB},
	{"fair", GradeC},
	{"poor", GradeC},
	{"low", GradeC},
	{"bad", GradeC},
	{"reject", GradeC},
	{"damaged", GradeC},
}

var gradePrefixes = []string{"grade", "type", "class", "quality"}

// GradeOf maps numeric grades, roman numerals, letters or quality words onto a Grade.
// The mapping is total: unmatched input, including "", returns LowestGrade.
// This is a heuristic, not a verified classification.
func GradeOf(raw any) Grade {
	switch x := raw.(type) {
	case nil:
		return LowestGrade
	case string:
		return gradeFromString(x)
	case Grade:
		return gradeFromString(string(x))
	case float64, float32, int, int64, json.Number:
		f, _, ok := number(x)
		if !ok {
			return LowestGrade
		}
		return gradeFromNumber(f)
	}
	return gradeFromString(fmt.Sprint(raw))
}

func gradeFromNumber(f float64) Grade {
	switch math.Round(f) {
	case 1:
		return GradeA
	case 2:
		return GradeB
	}
	return LowestGrade
}

func gradeFromString(raw string) Grade {
	s := strings.ToLower(strings.TrimSpace(raw))
	for stripped := true; stripped; {
		stripped = false
		for _, p := range gradePrefixes {
			if strings.HasPrefix(s, p) {
				s = strings.TrimLeft(strings.TrimPrefix(s, p), " _-:")
				stripped = true
			}
		}
	}
	if s == "" {
		return LowestGrade
	}
	if g, ok := gradeAliases[s]; ok {
		return g
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return gradeFromNumber(f)
	}
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range gradeWords {
		if slices.Contains(words, w.word) {
			return w.grade
		}
	}
	return LowestGrade
}
