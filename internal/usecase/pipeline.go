package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"AssessmentPipeline/internal/cache"
	"AssessmentPipeline/internal/catalog"
	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/poller"
	"AssessmentPipeline/internal/ports"
	"AssessmentPipeline/internal/scoring"
)

// RunArchivePhase is the pseudo-phase under which the final run snapshot is stored.
const RunArchivePhase = "run"

const (
	defaultMaxParallel  = 4
	defaultPollInterval = 2 * time.Second
	defaultMaxWait      = 2 * time.Minute
)

// JobRunner submits generation jobs and waits for their payloads.
type JobRunner interface {
	Submit(ctx context.Context, req poller.Request) (poller.JobHandle, error)
	AwaitCompletion(ctx context.Context, h poller.JobHandle, pollInterval, maxWait time.Duration) (poller.Result, error)
}

// ArtifactCache holds parsed analysis results keyed by fingerprint.
type ArtifactCache interface {
	Get(key string) (cache.Entry[domain.AnalysisResult], bool)
	Set(key, owner string, payload domain.AnalysisResult, ttl time.Duration)
}

var (
	_ JobRunner     = (*poller.Poller)(nil)
	_ ArtifactCache = (*cache.Cache[domain.AnalysisResult])(nil)
)

// Settings tunes phase execution.
type Settings struct {
	MaxParallel    int
	PollInterval   time.Duration
	MaxWait        time.Duration
	CacheTTL       time.Duration
	Model          ports.ModelConfig
	ChapterWeights map[string]float64
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Catalog  *catalog.Catalog
	Scorer   *scoring.Aggregator
	Jobs     JobRunner
	Parser   ports.AnalysisParser
	Cache    ArtifactCache
	Store    ports.PhaseStore
	Sink     ports.ReportSink
	Metrics  ports.MetricsSink
	Logger   *zap.Logger
	Settings Settings
	Now      func() time.Time
	NewID    func() string
}

// Pipeline runs a submission through the fixed normalize, analyze and
// synthesize phases. It is safe to run different submissions concurrently.
type Pipeline struct {
	catalog  *catalog.Catalog
	jobs     JobRunner
	parser   ports.AnalysisParser
	cache    ArtifactCache
	store    ports.PhaseStore
	sink     ports.ReportSink
	metrics  ports.MetricsSink
	logger   *zap.Logger
	settings Settings
	now      func() time.Time
	newID    func() string
	phases   []phase
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		catalog:  deps.Catalog,
		jobs:     deps.Jobs,
		parser:   deps.Parser,
		cache:    deps.Cache,
		store:    deps.Store,
		sink:     deps.Sink,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		settings: deps.Settings,
		now:      deps.Now,
		newID:    deps.NewID,
	}
	if p.catalog == nil {
		p.catalog = catalog.Default()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if p.settings.MaxParallel <= 0 {
		p.settings.MaxParallel = defaultMaxParallel
	}
	if p.settings.PollInterval <= 0 {
		p.settings.PollInterval = defaultPollInterval
	}
	if p.settings.MaxWait <= 0 {
		p.settings.MaxWait = defaultMaxWait
	}
	scorer := deps.Scorer
	if scorer == nil {
		scorer = scoring.NewAggregator(scoring.WithClock(p.now))
	}

	model := p.settings.Model.Model
	weights := p.settings.ChapterWeights
	p.phases = []phase{
		normalizePhase{catalog: p.catalog, scorer: scorer, weights: weights},
		analyzePhase{catalog: p.catalog, model: model},
		synthesizePhase{catalog: p.catalog, model: model, weights: weights},
	}
	return p
}

// Run executes every phase for sub and returns the resulting run. It never
// returns an error: failures are recorded on the run and its tasks.
func (p *Pipeline) Run(ctx context.Context, sub domain.Submission) (run *domain.PipelineRun) {
	run = &domain.PipelineRun{
		RunID:        p.newID(),
		SubmissionID: sub.ID,
		Company:      sub.Company,
		StartedAt:    p.now(),
		Metrics: domain.RunMetrics{
			TokensByPhase: map[domain.PhaseName]int{},
			TasksByStatus: map[domain.TaskStatus]int{},
		},
	}
	log := p.logger.With(zap.String("run_id", run.RunID), zap.String("submission_id", sub.ID))
	log.Info("pipeline: run started", zap.Int("answers", len(sub.Answers)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: run panicked", zap.Any("panic", r), zap.Stack("stack"))
			run.OverallStatus = domain.StatusFailed
			run.ErrorKind = domain.ErrorInternal
			run.Summary = fmt.Sprintf("internal error: %v", r)
		}
		p.finish(ctx, run, log)
	}()

	if err := p.validate(ctx, sub); err != nil {
		kind := errorKind(err)
		log.Warn("pipeline: submission rejected", zap.String("error_kind", string(kind)), zap.Error(err))
		run.OverallStatus = domain.StatusFailed
		run.ErrorKind = kind
		run.Summary = fmt.Sprintf("submission rejected (%s): %v", kind, err)
		return run
	}

	st := &runState{sub: sub, run: run}
	for _, ph := range p.phases {
		rec, proceed := p.runPhase(ctx, st, ph, log)
		p.recordPhase(run, &rec)
		run.Phases = append(run.Phases, rec)
		run.OverallStatus = rec.Status

		if !proceed {
			run.ErrorKind = rec.ErrorKind
			run.Summary = fmt.Sprintf("%s phase failed (%s): %s", rec.Name, rec.ErrorKind, rec.Error)
			log.Warn("pipeline: phase failed",
				zap.String("phase", string(rec.Name)),
				zap.String("error_kind", string(rec.ErrorKind)),
				zap.Int("attempts", rec.Attempts),
				zap.String("error", rec.Error))
			break
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", string(rec.Name)),
			zap.String("status", string(rec.Status)),
			zap.Int("succeeded", rec.Succeeded),
			zap.Int("failed", rec.Failed),
			zap.Int("cache_hits", rec.CacheHits),
			zap.Int("tokens", rec.TokensUsed),
			zap.Int64("duration_ms", rec.Duration.Milliseconds()))
	}
	return run
}

func (p *Pipeline) validate(ctx context.Context, sub domain.Submission) error {
	if sub.ID == "" {
		return withKind(domain.ErrorValidation, eris.New("submission id is required"))
	}
	if err := p.catalog.ValidateAnswers(sub.Answers); err != nil {
		return withKind(domain.ErrorConfiguration, err)
	}
	if err := ctx.Err(); err != nil {
		return withKind(domain.ErrorCanceled, err)
	}
	return nil
}

// runPhase plans and resolves one phase, retrying it once when policy allows
// and nothing succeeded. The returned flag reports whether the run may continue.
func (p *Pipeline) runPhase(ctx context.Context, st *runState, ph phase, log *zap.Logger) (domain.PhaseRecord, bool) {
	name := ph.Name()
	policy := PolicyFor(name)
	rec := domain.PhaseRecord{Name: name, StartedAt: p.now()}

	var outcomes []taskOutcome
	for attempt := 1; ; attempt++ {
		specs, err := ph.Plan(st)
		if err != nil {
			return failPhase(rec, errorKind(err), err), false
		}
		rec.Attempts = attempt
		outcomes = p.resolveAll(ctx, st.sub.ID, name, specs, log)
		for _, o := range outcomes {
			rec.TokensUsed += o.task.TokensUsed
		}
		rec.Status = domain.StatusOf(tasksOf(outcomes))
		if rec.Status != domain.StatusFailed || !policy.Retryable || attempt > 1 || ctx.Err() != nil {
			break
		}
		log.Warn("pipeline: retrying phase",
			zap.String("phase", string(name)),
			zap.Int("tasks", len(outcomes)))
	}
	rec.Tasks = tasksOf(outcomes)

	if !rec.Status.AtLeast(policy.MinimumStatus) {
		err := eris.Errorf("%d of %d tasks failed, phase ended %s but requires %s",
			countStatus(rec.Tasks, domain.TaskFailed), len(rec.Tasks), rec.Status, policy.MinimumStatus)
		return failPhase(rec, dominantKind(rec.Tasks), err), false
	}
	if err := ph.Consolidate(st, outcomes); err != nil {
		kind := errorKind(err)
		if kind == domain.ErrorInternal {
			kind = domain.ErrorValidation
		}
		return failPhase(rec, kind, err), false
	}

	p.persist(context.WithoutCancel(ctx), st.sub.ID, string(name), ph.Output(st), log)
	return rec, true
}

func failPhase(rec domain.PhaseRecord, kind domain.ErrorKind, err error) domain.PhaseRecord {
	rec.Status = domain.StatusFailed
	rec.ErrorKind = kind
	rec.Error = err.Error()
	return rec
}

// resolveAll runs every task concurrently and waits for all of them. A
// failing task never cancels its siblings; each goroutine writes only its
// own slot.
func (p *Pipeline) resolveAll(ctx context.Context, owner string, name domain.PhaseName, specs []taskSpec, log *zap.Logger) []taskOutcome {
	outcomes := make([]taskOutcome, len(specs))
	g := new(errgroup.Group)
	g.SetLimit(p.settings.MaxParallel)
	for i, spec := range specs {
		g.Go(func() error {
			outcomes[i] = p.resolveTask(ctx, owner, name, spec, log)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) resolveTask(ctx context.Context, owner string, name domain.PhaseName, spec taskSpec, log *zap.Logger) (out taskOutcome) {
	out.task = domain.NewTask(p.newID(), name, spec.topic)
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: task panicked",
				zap.String("phase", string(name)),
				zap.String("topic", spec.topic),
				zap.Any("panic", r))
			out.responses = nil
			p.failTask(&out.task, domain.ErrorInternal, fmt.Sprintf("panic: %v", r))
		}
	}()

	switch {
	case spec.local != nil:
		responses, err := spec.local(ctx)
		if err != nil {
			p.failTask(&out.task, errorKind(err), err.Error())
			return out
		}
		out.responses = responses
		_ = out.task.Advance(domain.TaskSucceeded, p.now())
	case spec.remote != nil:
		p.resolveRemote(ctx, owner, &out.task, spec.remote, log)
	default:
		p.failTask(&out.task, domain.ErrorInternal, "task has no work")
	}
	return out
}

// resolveRemote serves the task from the cache when possible, otherwise
// submits it and polls it to completion, caching a parsed result.
func (p *Pipeline) resolveRemote(ctx context.Context, owner string, task *domain.AnalysisTask, spec *remoteSpec, log *zap.Logger) {
	key := fingerprint(spec, owner, log)
	if result, ok := p.lookup(key, log); ok {
		task.CacheHit = true
		_ = task.Succeed(result, 0, p.now())
		return
	}
	if p.jobs == nil || p.parser == nil {
		p.failTask(task, domain.ErrorConfiguration, "no generative service configured")
		return
	}
	if err := ctx.Err(); err != nil {
		p.failTask(task, domain.ErrorCanceled, err.Error())
		return
	}

	handle, err := p.jobs.Submit(ctx, poller.Request{Prompt: spec.prompt, Model: p.settings.Model})
	if err != nil {
		p.failTask(task, errorKind(err), err.Error())
		return
	}
	_ = task.Advance(domain.TaskSubmitted, handle.SubmittedAt)
	_ = task.Advance(domain.TaskPolling, p.now())

	res, err := p.jobs.AwaitCompletion(ctx, handle, p.settings.PollInterval, p.settings.MaxWait)
	if err != nil {
		p.failTask(task, errorKind(err), err.Error())
		return
	}
	task.TokensUsed = res.TokensUsed

	result, err := p.parser.Parse(task.Topic, res.Payload)
	if err != nil {
		p.failTask(task, domain.ErrorInvalidResponse, err.Error())
		return
	}
	_ = task.Succeed(result, 0, p.now())
	p.remember(key, owner, result, log)
}

func (p *Pipeline) failTask(task *domain.AnalysisTask, kind domain.ErrorKind, detail string) {
	if kind == domain.ErrorNone {
		kind = domain.ErrorInternal
	}
	_ = task.Fail(kind, detail, p.now())
}

func fingerprint(spec *remoteSpec, owner string, log *zap.Logger) string {
	hash, err := cache.HashInput(spec.input)
	if err != nil {
		log.Debug("pipeline: cannot fingerprint task input", zap.String("kind", spec.kind), zap.Error(err))
		return ""
	}
	return cache.Fingerprint(spec.kind, owner, hash)
}

// lookup and remember treat the cache as best effort: any failure is a miss.
func (p *Pipeline) lookup(key string, log *zap.Logger) (result domain.AnalysisResult, ok bool) {
	if p.cache == nil || key == "" {
		return result, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("pipeline: cache lookup failed", zap.String("key", key), zap.Any("panic", r))
			result, ok = domain.AnalysisResult{}, false
		}
	}()
	entry, hit := p.cache.Get(key)
	if !hit {
		return result, false
	}
	return entry.Payload, true
}

func (p *Pipeline) remember(key, owner string, result domain.AnalysisResult, log *zap.Logger) {
	if p.cache == nil || key == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("pipeline: cache store failed", zap.String("key", key), zap.Any("panic", r))
		}
	}()
	p.cache.Set(key, owner, result, p.settings.CacheTTL)
}

func (p *Pipeline) persist(ctx context.Context, submissionID, phase string, payload any, log *zap.Logger) {
	if p.store == nil || submissionID == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn("pipeline: failed to encode phase output", zap.String("phase", phase), zap.Error(err))
		return
	}
	if err := p.store.SavePhaseOutput(ctx, submissionID, phase, body); err != nil {
		log.Warn("pipeline: failed to save phase output", zap.String("phase", phase), zap.Error(err))
	}
}

func (p *Pipeline) recordPhase(run *domain.PipelineRun, rec *domain.PhaseRecord) {
	rec.FinishedAt = p.now()
	rec.Duration = rec.FinishedAt.Sub(rec.StartedAt)
	for _, t := range rec.Tasks {
		switch t.Status {
		case domain.TaskSucceeded:
			rec.Succeeded++
		case domain.TaskFailed:
			rec.Failed++
		}
		if t.CacheHit {
			rec.CacheHits++
		}
		run.Metrics.TasksByStatus[t.Status]++
	}
	run.Metrics.TokensByPhase[rec.Name] += rec.TokensUsed
	run.Metrics.TokensTotal += rec.TokensUsed
	if p.metrics != nil {
		p.metrics.RecordPhase(run.MetricsFor(*rec))
	}
}

// finish stamps the run, archives it and hands it to the report sink. Both
// hand-offs outlive cancellation of the run's context.
func (p *Pipeline) finish(ctx context.Context, run *domain.PipelineRun, log *zap.Logger) {
	run.FinishedAt = p.now()
	run.Metrics.Duration = run.FinishedAt.Sub(run.StartedAt)
	if run.Summary == "" {
		run.Summary = fallbackSummary(run)
	}

	bg := context.WithoutCancel(ctx)
	p.persist(bg, run.SubmissionID, RunArchivePhase, run, log)
	if p.sink != nil {
		if err := p.sink.Publish(bg, *run); err != nil {
			log.Warn("pipeline: failed to publish run", zap.Error(err))
		}
	}

	overall := -1
	if run.Scores != nil {
		overall = run.Scores.Overall
	}
	log.Info("pipeline: run finished",
		zap.String("status", string(run.OverallStatus)),
		zap.Int("overall_score", overall),
		zap.Int("tokens", run.Metrics.TokensTotal),
		zap.Int("failed_tasks", len(run.FailedTasks())),
		zap.Duration("duration", run.Metrics.Duration))
}

func fallbackSummary(run *domain.PipelineRun) string {
	if run.Scores == nil {
		return ""
	}
	return fmt.Sprintf("Overall score %d/100 across %d chapters; %d categories analyzed.",
		run.Scores.Overall, len(run.Scores.Chapters), len(run.Analyses))
}

func tasksOf(outcomes []taskOutcome) []domain.AnalysisTask {
	tasks := make([]domain.AnalysisTask, len(outcomes))
	for i, o := range outcomes {
		tasks[i] = o.task
	}
	return tasks
}

func countStatus(tasks []domain.AnalysisTask, status domain.TaskStatus) int {
	n := 0
	for _, t := range tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// dominantKind picks the most frequent failure kind among tasks.
func dominantKind(tasks []domain.AnalysisTask) domain.ErrorKind {
	counts := map[domain.ErrorKind]int{}
	best := domain.ErrorNone
	for _, t := range tasks {
		if t.Status != domain.TaskFailed {
			continue
		}
		counts[t.ErrorKind]++
		if best == domain.ErrorNone || counts[t.ErrorKind] > counts[best] {
			best = t.ErrorKind
		}
	}
	if best == domain.ErrorNone {
		return domain.ErrorInternal
	}
	return best
}
