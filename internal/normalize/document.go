package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// ErrUnrecognizedResponse marks an upstream body that matches no known variant.
var ErrUnrecognizedResponse = fmt.Errorf("unrecognized upstream response: %w", domain.ErrUpstream)

// ErrUpstreamRejected marks a 2xx body that reports failure in-band.
var ErrUpstreamRejected = fmt.Errorf("upstream reported failure: %w", domain.ErrUpstream)

func unrecognized(detail string) error {
	return fmt.Errorf("%w: %s", ErrUnrecognizedResponse, detail)
}

// document is a decoded JSON object with numbers kept as json.Number.
type document map[string]any

func decode(raw json.RawMessage) (document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, unrecognized("body is not a JSON object")
	}
	if doc == nil {
		return nil, unrecognized("body is null")
	}
	return document(doc), nil
}

func (d document) has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// str returns the first present key rendered as a string.
func (d document) str(keys ...string) string {
	for _, k := range keys {
		switch v := d[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// num returns the first present key that parses as a number.
func (d document) num(keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, _, ok := number(d[k]); ok && !math.IsNaN(f) {
			return f, true
		}
	}
	return 0, false
}

func (d document) integer(keys ...string) int {
	f, _ := d.num(keys...)
	return int(math.Round(f))
}

func (d document) obj(key string) document {
	if m, ok := d[key].(map[string]any); ok {
		return document(m)
	}
	return nil
}

// boolean accepts JSON booleans and their common string spellings.
func (d document) boolean(key string) (bool, bool) {
	switch v := d[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// lines returns a list of strings; a lone string becomes a one-element list.
func (d document) lines(key string) []string {
	switch v := d[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case json.Number:
				out = append(out, s.String())
			}
		}
		return out
	}
	return nil
}

// raw re-encodes a nested value for opaque passthrough fields.
func (d document) raw(key string) json.RawMessage {
	v, ok := d[key]
	if !ok || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// probabilities reads a label->probability object, normalizing each value.
func (d document) probabilities(key string) map[string]float64 {
	m := d.obj(key)
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = Confidence(v)
	}
	return out
}

// IsUnrecognized reports whether err came from a failed shape probe.
func IsUnrecognized(err error) bool {
	return errors.Is(err, ErrUnrecognizedResponse)
}
