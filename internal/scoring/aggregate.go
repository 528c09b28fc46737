package scoring

import (
	"math"
	"sort"
	"time"

	"AssessmentPipeline/internal/catalog"
	"AssessmentPipeline/internal/domain"
)

// Aggregator normalizes answers and rolls scores up the taxonomy. It holds
// no per-run state and is safe for concurrent use.
type Aggregator struct {
	ratioBands    Bands
	absoluteBands Bands
	now           func() time.Time
}

type Option func(*Aggregator)

// WithBands overrides the currency bands. Nil keeps the default.
func WithBands(ratio, absolute Bands) Option {
	return func(a *Aggregator) {
		if ratio != nil {
			a.ratioBands = ratio
		}
		if absolute != nil {
			a.absoluteBands = absolute
		}
	}
}

// WithClock sets the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		ratioBands:    DefaultRatioBands,
		absoluteBands: DefaultAbsoluteBands,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NormalizeCategory normalizes the submission's answers for one category.
// It returns nil when the category has no answered question, so the category
// contributes nothing. Unanswered free-text and multi-select questions are
// skipped; other unanswered questions score 0.
func (a *Aggregator) NormalizeCategory(sub domain.Submission, cat *catalog.Catalog, code string) []domain.NormalizedResponse {
	category, ok := cat.Category(code)
	if !ok {
		return nil
	}
	context, _ := sub.RevenueContext()

	var answered, missing []domain.NormalizedResponse
	for _, q := range cat.QuestionsIn(code) {
		raw := RawFromAnswer(sub.Answers[q.ID], q.Type)
		resp := domain.NormalizedResponse{
			QuestionID:   q.ID,
			CategoryCode: code,
			ChapterCode:  category.Chapter,
			RawValue:     raw,
			Weight:       q.Weight,
			IsEstimate:   sub.Estimates[q.ID],
		}
		if raw.IsMissing() {
			if q.Type == domain.ResponseText || q.Type == domain.ResponseMultiSelect {
				continue
			}
			resp.Missing = true
			missing = append(missing, resp)
			continue
		}
		resp.NormalizedScore = a.Normalize(raw, ResponseSpec{Type: q.Type, ScaleMax: q.ScaleMax, Context: context})
		answered = append(answered, resp)
	}
	if len(answered) == 0 {
		return nil
	}
	return append(answered, missing...)
}

// AggregateCategory returns the weighted mean of the category's responses.
// ok is false when the category has no responses.
func AggregateCategory(responses []domain.NormalizedResponse, code string) (float64, bool) {
	var sum, weights float64
	for _, r := range responses {
		if r.CategoryCode != code || r.Weight <= 0 {
			continue
		}
		sum += clamp(r.NormalizedScore) * r.Weight
		weights += r.Weight
	}
	if weights == 0 {
		return 0, false
	}
	return clamp(sum / weights), true
}

// AggregateChapter returns the unweighted mean of the chapter's categories
// that have at least one response. ok is false when none do.
func AggregateChapter(categories []domain.CategoryScore, chapter string) (float64, bool) {
	var sum float64
	n := 0
	for _, c := range categories {
		if c.Chapter != chapter || c.Responses == 0 {
			continue
		}
		sum += c.Score
		n++
	}
	if n == 0 {
		return 0, false
	}
	return clamp(sum / float64(n)), true
}

// AggregateOverall returns the weighted sum of chapter scores, rounded and
// clamped. Weights of chapters without a score are dropped and the remaining
// weights renormalized.
func AggregateOverall(chapters map[string]float64, weights map[string]float64) int {
	var sum, total float64
	for code, score := range chapters {
		w := weights[code]
		if w <= 0 {
			continue
		}
		sum += clamp(score) * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return int(clamp(math.Round(sum / total)))
}

// Compute builds a fresh snapshot from a response set.
func (a *Aggregator) Compute(responses []domain.NormalizedResponse, cat *catalog.Catalog, weights map[string]float64) domain.ScoreSnapshot {
	if weights == nil {
		weights = cat.ChapterWeights()
	}
	snap := domain.ScoreSnapshot{
		Categories: map[string]domain.CategoryScore{},
		Chapters:   map[string]domain.ChapterScore{},
		ComputedAt: a.now(),
	}

	byCategory := map[string][]domain.NormalizedResponse{}
	for _, r := range responses {
		byCategory[r.CategoryCode] = append(byCategory[r.CategoryCode], r)
	}

	var categoryScores []domain.CategoryScore
	for _, c := range cat.Categories() {
		rs := byCategory[c.Code]
		score, ok := AggregateCategory(rs, c.Code)
		if !ok {
			continue
		}
		cs := domain.CategoryScore{Code: c.Code, Chapter: c.Chapter, Score: score, Responses: len(rs)}
		for _, r := range rs {
			cs.TotalWeight += r.Weight
			if r.IsEstimate {
				cs.Estimated++
			}
		}
		snap.Categories[c.Code] = cs
		categoryScores = append(categoryScores, cs)
	}

	chapterValues := map[string]float64{}
	for _, ch := range cat.Chapters() {
		score, ok := AggregateChapter(categoryScores, ch.Code)
		if !ok {
			continue
		}
		chs := domain.ChapterScore{Code: ch.Code, Score: score}
		for _, code := range cat.CategoriesOf(ch.Code) {
			if _, has := snap.Categories[code]; has {
				chs.Categories = append(chs.Categories, code)
			} else {
				chs.Excluded = append(chs.Excluded, code)
			}
		}
		sort.Strings(chs.Excluded)
		snap.Chapters[ch.Code] = chs
		chapterValues[ch.Code] = score
	}

	snap.HasData = len(snap.Chapters) > 0
	snap.Overall = AggregateOverall(chapterValues, weights)
	return snap
}
