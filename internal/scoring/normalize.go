// Package scoring turns raw questionnaire answers into 0-100 scores and
// rolls them up into category, chapter and overall health scores.
package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"AssessmentPipeline/internal/domain"
)

const (
	MinScore     = 0.0
	MaxScore     = 100.0
	NeutralScore = 50.0

	defaultScaleMax = 5.0
)

// Band is one point of a piecewise-linear curve. Scores are interpolated
// linearly between the previous point (starting at 0,0) and Upper.
type Band struct {
	Upper float64 `yaml:"upper"`
	Score float64 `yaml:"score"`
}

// Bands is a piecewise-linear curve ordered by Upper.
type Bands []Band

// Score evaluates the curve at x. Values beyond the last band take the last
// band's score.
func (b Bands) Score(x float64) float64 {
	if x <= 0 || len(b) == 0 {
		return MinScore
	}
	prevUpper, prevScore := 0.0, 0.0
	for _, band := range b {
		if x <= band.Upper {
			span := band.Upper - prevUpper
			if span <= 0 {
				return band.Score
			}
			return prevScore + (x-prevUpper)/span*(band.Score-prevScore)
		}
		prevUpper, prevScore = band.Upper, band.Score
	}
	return prevScore
}

var (
	// DefaultRatioBands score a currency value relative to revenue.
	DefaultRatioBands = Bands{
		{Upper: 0.01, Score: 20},
		{Upper: 0.05, Score: 50},
		{Upper: 0.15, Score: 80},
		{Upper: 0.30, Score: 100},
	}
	// DefaultAbsoluteBands score a currency value when no revenue is known.
	DefaultAbsoluteBands = Bands{
		{Upper: 10_000, Score: 20},
		{Upper: 100_000, Score: 50},
		{Upper: 1_000_000, Score: 80},
		{Upper: 10_000_000, Score: 100},
	}
)

// ResponseSpec carries everything Normalize needs to know about a question.
type ResponseSpec struct {
	Type     domain.ResponseType
	ScaleMax float64
	// Context is the reference magnitude for currency answers; zero means unknown.
	Context float64
}

// Normalize maps a raw answer to [0,100]. Out-of-domain input is clamped,
// never rejected.
func (a *Aggregator) Normalize(raw domain.RawValue, spec ResponseSpec) float64 {
	if raw.IsMissing() {
		return MinScore
	}
	switch spec.Type {
	case domain.ResponseOrdinal:
		v, ok := numeric(raw)
		if !ok {
			return MinScore
		}
		scaleMax := spec.ScaleMax
		if scaleMax <= 1 {
			scaleMax = defaultScaleMax
		}
		return clamp((v - 1) / (scaleMax - 1) * 100)
	case domain.ResponsePercentage:
		if raw.Kind == domain.ValueBoolean {
			return boolScore(raw.Bool)
		}
		v, ok := numeric(raw)
		if !ok {
			return MinScore
		}
		return clamp(v)
	case domain.ResponseBoolean:
		return boolScore(truthy(raw))
	case domain.ResponseCurrency:
		v, ok := numeric(raw)
		if !ok || v <= 0 {
			return MinScore
		}
		if spec.Context > 0 {
			return clamp(a.ratioBands.Score(v / spec.Context))
		}
		return clamp(a.absoluteBands.Score(v))
	case domain.ResponseText, domain.ResponseMultiSelect:
		return NeutralScore
	}
	return MinScore
}

// RawFromAnswer converts a decoded answer (JSON or spreadsheet cell) into a
// tagged RawValue for the given response type. Empty answers are missing.
func RawFromAnswer(v any, t domain.ResponseType) domain.RawValue {
	if v == nil {
		return domain.MissingValue()
	}
	switch t {
	case domain.ResponseOrdinal, domain.ResponseCurrency:
		if n, ok := toNumber(v); ok {
			return domain.NumberValue(n)
		}
	case domain.ResponsePercentage:
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return domain.PercentValue(n)
			}
			return domain.MissingValue()
		}
		if n, ok := toNumber(v); ok {
			return domain.PercentValue(n)
		}
	case domain.ResponseBoolean:
		switch x := v.(type) {
		case bool:
			return domain.BoolValue(x)
		case string:
			if strings.TrimSpace(x) == "" {
				return domain.MissingValue()
			}
			return domain.BoolValue(truthyString(x))
		}
		if n, ok := toNumber(v); ok {
			return domain.BoolValue(n == 1)
		}
	case domain.ResponseText:
		s := strings.TrimSpace(toString(v))
		if s == "" {
			return domain.MissingValue()
		}
		return domain.TextValue(s)
	case domain.ResponseMultiSelect:
		items := toItems(v)
		if len(items) == 0 {
			return domain.MissingValue()
		}
		return domain.MultiValue(items)
	}
	return domain.MissingValue()
}

func numeric(raw domain.RawValue) (float64, bool) {
	switch raw.Kind {
	case domain.ValueNumeric, domain.ValuePercentage:
		if math.IsNaN(raw.Number) {
			return 0, false
		}
		return raw.Number, true
	case domain.ValueText:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw.Text), 64)
		return n, err == nil && !math.IsNaN(n)
	}
	return 0, false
}

func truthy(raw domain.RawValue) bool {
	switch raw.Kind {
	case domain.ValueBoolean:
		return raw.Bool
	case domain.ValueNumeric, domain.ValuePercentage:
		return raw.Number == 1
	case domain.ValueText:
		return truthyString(raw.Text)
	}
	return false
}

func truthyString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func boolScore(b bool) float64 {
	if b {
		return MaxScore
	}
	return MinScore
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		n, err := x.Float64()
		return n, err == nil
	case string:
		s := strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(x))
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any, []string:
		return strings.Join(toItems(x), ", ")
	}
	return ""
}

func toItems(v any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch x := v.(type) {
	case []string:
		for _, s := range x {
			add(s)
		}
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(x, ",") {
			add(s)
		}
	}
	return out
}
