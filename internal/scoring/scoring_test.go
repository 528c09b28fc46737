package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AssessmentPipeline/internal/catalog"
	"AssessmentPipeline/internal/domain"
)

func TestNormalizeOrdinalExactAndMonotone(t *testing.T) {
	a := NewAggregator()
	spec := ResponseSpec{Type: domain.ResponseOrdinal, ScaleMax: 5}

	want := map[float64]float64{1: 0, 2: 25, 3: 50, 4: 75, 5: 100}
	for v, expected := range want {
		assert.Equal(t, expected, a.Normalize(domain.NumberValue(v), spec), "value %v", v)
	}

	prev := -1.0
	for v := 1.0; v <= 5.0; v += 0.1 {
		got := a.Normalize(domain.NumberValue(v), spec)
		require.GreaterOrEqual(t, got, prev, "value %v", v)
		prev = got
	}

	assert.Equal(t, 0.0, a.Normalize(domain.NumberValue(-3), spec))
	assert.Equal(t, 100.0, a.Normalize(domain.NumberValue(9), spec))
	assert.Equal(t, 50.0, a.Normalize(domain.NumberValue(3), ResponseSpec{Type: domain.ResponseOrdinal}))
}

func TestNormalizePercentageAndBoolean(t *testing.T) {
	a := NewAggregator()
	pct := ResponseSpec{Type: domain.ResponsePercentage}
	assert.Equal(t, 45.0, a.Normalize(domain.PercentValue(45), pct))
	assert.Equal(t, 0.0, a.Normalize(domain.PercentValue(-5), pct))
	assert.Equal(t, 100.0, a.Normalize(domain.PercentValue(150), pct))

	boolean := ResponseSpec{Type: domain.ResponseBoolean}
	for _, raw := range []domain.RawValue{
		domain.BoolValue(true), domain.TextValue("Yes"), domain.TextValue("y"),
		domain.TextValue("true"), domain.NumberValue(1),
	} {
		assert.Equal(t, 100.0, a.Normalize(raw, boolean), "%+v", raw)
	}
	for _, raw := range []domain.RawValue{
		domain.BoolValue(false), domain.TextValue("no"), domain.TextValue("maybe"), domain.NumberValue(0),
	} {
		assert.Equal(t, 0.0, a.Normalize(raw, boolean), "%+v", raw)
	}
}

func TestNormalizeCurrencyBands(t *testing.T) {
	a := NewAggregator()

	withRevenue := ResponseSpec{Type: domain.ResponseCurrency, Context: 1_000_000}
	assert.InDelta(t, 35.0, a.Normalize(domain.NumberValue(30_000), withRevenue), 1e-9)
	assert.InDelta(t, 10.0, a.Normalize(domain.NumberValue(5_000), withRevenue), 1e-9)
	assert.Equal(t, 100.0, a.Normalize(domain.NumberValue(900_000), withRevenue))
	assert.Equal(t, 0.0, a.Normalize(domain.NumberValue(-10), withRevenue))

	absolute := ResponseSpec{Type: domain.ResponseCurrency}
	assert.InDelta(t, 35.0, a.Normalize(domain.NumberValue(55_000), absolute), 1e-9)
	assert.InDelta(t, 80.0, a.Normalize(domain.NumberValue(1_000_000), absolute), 1e-9)
	assert.Equal(t, 100.0, a.Normalize(domain.NumberValue(50_000_000), absolute))

	custom := NewAggregator(WithBands(Bands{{Upper: 1, Score: 100}}, nil))
	assert.InDelta(t, 50.0, custom.Normalize(domain.NumberValue(5), ResponseSpec{Type: domain.ResponseCurrency, Context: 10}), 1e-9)
}

func TestNormalizeNeutralAndMissing(t *testing.T) {
	a := NewAggregator()
	assert.Equal(t, NeutralScore, a.Normalize(domain.TextValue("anything"), ResponseSpec{Type: domain.ResponseText}))
	assert.Equal(t, NeutralScore, a.Normalize(domain.MultiValue([]string{"a", "b"}), ResponseSpec{Type: domain.ResponseMultiSelect}))

	for _, typ := range []domain.ResponseType{domain.ResponseOrdinal, domain.ResponseCurrency, domain.ResponsePercentage, domain.ResponseBoolean} {
		assert.Equal(t, 0.0, a.Normalize(domain.MissingValue(), ResponseSpec{Type: typ}), string(typ))
	}
	assert.Equal(t, 0.0, a.Normalize(domain.NumberValue(math.NaN()), ResponseSpec{Type: domain.ResponsePercentage}))
}

func TestRawFromAnswer(t *testing.T) {
	assert.Equal(t, domain.NumberValue(4), RawFromAnswer(float64(4), domain.ResponseOrdinal))
	assert.Equal(t, domain.NumberValue(12500), RawFromAnswer("$12,500", domain.ResponseCurrency))
	assert.Equal(t, domain.PercentValue(45), RawFromAnswer("45%", domain.ResponsePercentage))
	assert.Equal(t, domain.BoolValue(true), RawFromAnswer("yes", domain.ResponseBoolean))
	assert.Equal(t, domain.BoolValue(true), RawFromAnswer(1, domain.ResponseBoolean))
	assert.Equal(t, domain.MultiValue([]string{"seo", "events"}), RawFromAnswer([]any{"seo", " events ", 3}, domain.ResponseMultiSelect))
	assert.Equal(t, domain.MultiValue([]string{"seo", "ads"}), RawFromAnswer("seo, ads", domain.ResponseMultiSelect))

	assert.True(t, RawFromAnswer(nil, domain.ResponseOrdinal).IsMissing())
	assert.True(t, RawFromAnswer("", domain.ResponseCurrency).IsMissing())
	assert.True(t, RawFromAnswer("  ", domain.ResponseText).IsMissing())
	assert.True(t, RawFromAnswer("n/a", domain.ResponsePercentage).IsMissing())
}

func TestAggregateCategoryWeightedMean(t *testing.T) {
	responses := []domain.NormalizedResponse{
		{CategoryCode: "FIN", NormalizedScore: 80, Weight: 2},
		{CategoryCode: "FIN", NormalizedScore: 40, Weight: 1},
		{CategoryCode: "OPS", NormalizedScore: 10, Weight: 1},
	}

	score, ok := AggregateCategory(responses, "FIN")
	require.True(t, ok)
	assert.InDelta(t, 66.6667, score, 1e-4)
	assert.Equal(t, 67, domain.CategoryScore{Score: score}.Rounded())

	_, ok = AggregateCategory(responses, "HRS")
	assert.False(t, ok)
}

func TestAggregateChapterExcludesEmptyCategories(t *testing.T) {
	categories := []domain.CategoryScore{
		{Code: "A", Chapter: "CH", Score: 0, Responses: 0},
		{Code: "B", Chapter: "CH", Score: 80, Responses: 3},
	}
	score, ok := AggregateChapter(categories, "CH")
	require.True(t, ok)
	assert.Equal(t, 80.0, score)

	_, ok = AggregateChapter(categories, "OTHER")
	assert.False(t, ok)
}

func TestAggregateOverallRenormalizesMissingChapters(t *testing.T) {
	weights := map[string]float64{"GE": 0.35, "PH": 0.20, "PL": 0.20, "RS": 0.25}

	full := AggregateOverall(map[string]float64{"GE": 80, "PH": 60, "PL": 40, "RS": 100}, weights)
	assert.Equal(t, 73, full)

	partial := AggregateOverall(map[string]float64{"GE": 80, "PH": 60}, weights)
	assert.Equal(t, 73, partial)

	assert.Equal(t, 0, AggregateOverall(nil, weights))
	assert.Equal(t, 100, AggregateOverall(map[string]float64{"GE": 250}, weights))
}

func TestNormalizeCategory(t *testing.T) {
	a := NewAggregator()
	cat := catalog.Default()
	revenue := 2_000_000.0
	sub := domain.Submission{
		ID:        "sub-1",
		Revenue:   &revenue,
		Answers:   map[string]any{"str_01": 5, "mkt_02": 60_000},
		Estimates: map[string]bool{"mkt_02": true},
	}

	assert.Nil(t, a.NormalizeCategory(sub, cat, "CMP"))

	str := a.NormalizeCategory(sub, cat, "STR")
	require.Len(t, str, 2, "unanswered text question is skipped")
	assert.Equal(t, "str_01", str[0].QuestionID)
	assert.Equal(t, 100.0, str[0].NormalizedScore)
	assert.Equal(t, "GE", str[0].ChapterCode)
	assert.Equal(t, "str_02", str[1].QuestionID)
	assert.True(t, str[1].Missing)
	assert.Equal(t, 0.0, str[1].NormalizedScore)

	mkt := a.NormalizeCategory(sub, cat, "MKT")
	require.Len(t, mkt, 2)
	assert.Equal(t, "mkt_02", mkt[0].QuestionID)
	assert.True(t, mkt[0].IsEstimate)
	assert.InDelta(t, 35.0, mkt[0].NormalizedScore, 1e-9)
}

func TestComputeSnapshot(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAggregator(WithClock(func() time.Time { return at }))
	cat, err := catalog.New(catalog.Definition{
		Chapters: []catalog.Chapter{{Code: "A", Weight: 1}, {Code: "B", Weight: 1}},
		Categories: []catalog.Category{
			{Code: "X", Chapter: "A"}, {Code: "Y", Chapter: "A"}, {Code: "Z", Chapter: "B"},
		},
		Questions: []catalog.Question{
			{ID: "x1", Category: "X", Type: domain.ResponseOrdinal, Weight: 2},
			{ID: "x2", Category: "X", Type: domain.ResponsePercentage, Weight: 1},
			{ID: "y1", Category: "Y", Type: domain.ResponseBoolean, Weight: 1},
			{ID: "z1", Category: "Z", Type: domain.ResponseText, Weight: 1},
		},
	})
	require.NoError(t, err)

	sub := domain.Submission{Answers: map[string]any{"x1": 5, "x2": 40, "z1": "steady"}}
	var responses []domain.NormalizedResponse
	for _, c := range cat.Categories() {
		responses = append(responses, a.NormalizeCategory(sub, cat, c.Code)...)
	}

	got := a.Compute(responses, cat, nil)
	want := domain.ScoreSnapshot{
		Categories: map[string]domain.CategoryScore{
			"X": {Code: "X", Chapter: "A", Score: 80, Responses: 2, TotalWeight: 3},
			"Z": {Code: "Z", Chapter: "B", Score: 50, Responses: 1, TotalWeight: 1},
		},
		Chapters: map[string]domain.ChapterScore{
			"A": {Code: "A", Score: 80, Categories: []string{"X"}, Excluded: []string{"Y"}},
			"B": {Code: "B", Score: 50, Categories: []string{"Z"}},
		},
		Overall:    65,
		HasData:    true,
		ComputedAt: at,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeWithoutResponses(t *testing.T) {
	a := NewAggregator()
	snap := a.Compute(nil, catalog.Default(), nil)
	assert.False(t, snap.HasData)
	assert.Equal(t, 0, snap.Overall)
	assert.Empty(t, snap.Categories)
}
