package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"

	"AssessmentPipeline/internal/catalog"
	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/poller"
	"AssessmentPipeline/internal/scoring"
)

// runState is the consolidated output handed from one phase to the next.
// Only the orchestrating goroutine touches it; tasks receive copies.
type runState struct {
	sub        domain.Submission
	run        *domain.PipelineRun
	byCategory map[string][]domain.NormalizedResponse
}

// taskSpec describes one unit of phase work. Exactly one of local and
// remote is set.
type taskSpec struct {
	topic  string
	local  func(ctx context.Context) ([]domain.NormalizedResponse, error)
	remote *remoteSpec
}

type remoteSpec struct {
	kind   string
	input  any
	prompt string
}

type taskOutcome struct {
	task      domain.AnalysisTask
	responses []domain.NormalizedResponse
}

// phase is one fixed pipeline stage.
type phase interface {
	Name() domain.PhaseName
	Plan(st *runState) ([]taskSpec, error)
	Consolidate(st *runState, outcomes []taskOutcome) error
	Output(st *runState) any
}

// kindError tags an error with the kind recorded on the task or phase.
type kindError struct {
	kind domain.ErrorKind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

func withKind(kind domain.ErrorKind, err error) error {
	return &kindError{kind: kind, err: err}
}

func errorKind(err error) domain.ErrorKind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return poller.KindOf(err)
}

type normalizePhase struct {
	catalog *catalog.Catalog
	scorer  *scoring.Aggregator
	weights map[string]float64
}

func (normalizePhase) Name() domain.PhaseName { return domain.PhaseNormalize }

// Plan fans out one local task per category. A category nobody answered
// still succeeds with no responses; it is excluded later, not failed here.
func (p normalizePhase) Plan(st *runState) ([]taskSpec, error) {
	sub := st.sub
	categories := p.catalog.Categories()
	specs := make([]taskSpec, 0, len(categories))
	for _, c := range categories {
		code := c.Code
		specs = append(specs, taskSpec{
			topic: code,
			local: func(ctx context.Context) ([]domain.NormalizedResponse, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return p.scorer.NormalizeCategory(sub, p.catalog, code), nil
			},
		})
	}
	return specs, nil
}

func (p normalizePhase) Consolidate(st *runState, outcomes []taskOutcome) error {
	st.byCategory = map[string][]domain.NormalizedResponse{}
	var responses []domain.NormalizedResponse
	for _, o := range outcomes {
		if o.task.Status != domain.TaskSucceeded {
			continue
		}
		for _, r := range o.responses {
			if r.NormalizedScore < scoring.MinScore || r.NormalizedScore > scoring.MaxScore {
				return withKind(domain.ErrorValidation, eris.Errorf("response %s scored %.2f outside [0,100]", r.QuestionID, r.NormalizedScore))
			}
			if r.Weight < catalog.MinWeight || r.Weight > catalog.MaxWeight {
				return withKind(domain.ErrorValidation, eris.Errorf("response %s has weight %.2f outside bounds", r.QuestionID, r.Weight))
			}
		}
		if len(o.responses) > 0 {
			st.byCategory[o.task.Topic] = o.responses
		}
		responses = append(responses, o.responses...)
	}

	snap := p.scorer.Compute(responses, p.catalog, p.weights)
	if !snap.HasData {
		return withKind(domain.ErrorValidation, eris.New("submission has no answered questions"))
	}
	st.run.Responses = responses
	st.run.Scores = &snap
	return nil
}

func (normalizePhase) Output(st *runState) any {
	return struct {
		Responses []domain.NormalizedResponse `json:"responses"`
		Scores    *domain.ScoreSnapshot       `json:"scores"`
	}{st.run.Responses, st.run.Scores}
}

type analyzePhase struct {
	catalog *catalog.Catalog
	model   string
}

func (analyzePhase) Name() domain.PhaseName { return domain.PhaseAnalyze }

// Plan creates one analysis task per category. Categories without responses
// fail locally so the phase reports them without calling the service.
func (p analyzePhase) Plan(st *runState) ([]taskSpec, error) {
	if st.run.Scores == nil {
		return nil, withKind(domain.ErrorValidation, eris.New("analyze requires normalized scores"))
	}
	categories := p.catalog.Categories()
	specs := make([]taskSpec, 0, len(categories))
	for _, c := range categories {
		code := c.Code
		responses := st.byCategory[code]
		score, ok := st.run.Scores.Category(code)
		if len(responses) == 0 || !ok {
			specs = append(specs, taskSpec{
				topic: code,
				local: func(context.Context) ([]domain.NormalizedResponse, error) {
					return nil, withKind(domain.ErrorInsufficientData, eris.Errorf("category %s has no responses", code))
				},
			})
			continue
		}
		in := buildCategoryInput(p.model, st.sub.Company, p.catalog, c, score.Score, responses)
		specs = append(specs, taskSpec{
			topic:  code,
			remote: &remoteSpec{kind: kindCategoryAnalysis, input: in, prompt: in.prompt()},
		})
	}
	return specs, nil
}

func (analyzePhase) Consolidate(st *runState, outcomes []taskOutcome) error {
	analyses := map[string]domain.AnalysisResult{}
	for _, o := range outcomes {
		if o.task.Status != domain.TaskSucceeded || o.task.Result == nil {
			continue
		}
		if o.task.Result.Summary == "" {
			return withKind(domain.ErrorValidation, eris.Errorf("analysis for %s has no summary", o.task.Topic))
		}
		analyses[o.task.Topic] = *o.task.Result
	}
	st.run.Analyses = analyses
	return nil
}

func (analyzePhase) Output(st *runState) any {
	return st.run.Analyses
}

type synthesizePhase struct {
	catalog *catalog.Catalog
	model   string
	weights map[string]float64
}

func (synthesizePhase) Name() domain.PhaseName { return domain.PhaseSynthesize }

// Plan creates one summary task per chapter with data plus the executive
// summary. Tasks work from whatever analyses the previous phase produced.
func (p synthesizePhase) Plan(st *runState) ([]taskSpec, error) {
	if st.run.Scores == nil {
		return nil, withKind(domain.ErrorValidation, eris.New("synthesize requires normalized scores"))
	}
	scores := *st.run.Scores
	weights := p.weights
	if weights == nil {
		weights = p.catalog.ChapterWeights()
	}

	exec := executiveInput{Model: p.model, Company: st.sub.Company, Overall: scores.Overall}
	var specs []taskSpec
	for _, ch := range p.catalog.Chapters() {
		chs, ok := scores.Chapter(ch.Code)
		if !ok {
			exec.Missing = append(exec.Missing, ch.Code)
			continue
		}
		in := chapterInput{
			Model:    p.model,
			Company:  st.sub.Company,
			Chapter:  ch.Code,
			Name:     ch.Name,
			Score:    round2(chs.Score),
			Excluded: chs.Excluded,
		}
		for _, code := range chs.Categories {
			cs, _ := scores.Category(code)
			digest := categoryDigest{Code: code, Score: round2(cs.Score)}
			if a, ok := st.run.Analyses[code]; ok {
				digest.Summary = a.Summary
				exec.Highlights = append(exec.Highlights, digest)
			}
			in.Categories = append(in.Categories, digest)
		}
		specs = append(specs, taskSpec{
			topic:  ch.Code,
			remote: &remoteSpec{kind: kindChapterSynthesis, input: in, prompt: in.prompt()},
		})
		exec.Chapters = append(exec.Chapters, chapterDigest{Code: ch.Code, Name: ch.Name, Score: round2(chs.Score), Weight: weights[ch.Code]})
	}
	sort.Slice(exec.Highlights, func(i, j int) bool { return exec.Highlights[i].Code < exec.Highlights[j].Code })

	specs = append(specs, taskSpec{
		topic:  ExecutiveTopic,
		remote: &remoteSpec{kind: kindExecutiveSummary, input: exec, prompt: exec.prompt()},
	})
	return specs, nil
}

func (synthesizePhase) Consolidate(st *runState, outcomes []taskOutcome) error {
	summaries := map[string]domain.AnalysisResult{}
	for _, o := range outcomes {
		if o.task.Status != domain.TaskSucceeded || o.task.Result == nil {
			continue
		}
		summaries[o.task.Topic] = *o.task.Result
	}
	st.run.Summaries = summaries
	if exec, ok := summaries[ExecutiveTopic]; ok {
		st.run.Summary = exec.Summary
	}
	return nil
}

func (synthesizePhase) Output(st *runState) any {
	return st.run.Summaries
}
