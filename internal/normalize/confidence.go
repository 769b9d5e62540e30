// Package normalize maps the response shapes of the upstream ML services onto the
// stable JSON the app consumes. Every function here is pure.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Confidence coerces a probability to a fraction in [0,1].
//
// Accepted inputs are a 0-1 fraction, a 0-100 percentage, or either one encoded as a
// string with an optional trailing "%". A "%" suffix always means percent; a bare number
// above 1 is read as percent too. Anything non-numeric yields 0.
func Confidence(v any) float64 {
	f, percent, ok := number(v)
	if !ok || math.IsNaN(f) {
		return 0
	}
	if percent || f > 1 {
		f /= 100
	}
	return clamp01(f)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// number extracts a float from the JSON scalar kinds the upstreams emit.
// percent reports an explicit "%" suffix.
func number(v any) (f float64, percent bool, ok bool) {
	switch x := v.(type) {
	case float64:
		return x, false, true
	case float32:
		return float64(x), false, true
	case int:
		return float64(x), false, true
	case int64:
		return float64(x), false, true
	case json.Number:
		f, err := x.Float64()
		return f, false, err == nil
	case string:
		s := strings.TrimSpace(x)
		if strings.HasSuffix(s, "%") {
			percent = true
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, false
		}
		return f, percent, true
	}
	return 0, false, false
}
