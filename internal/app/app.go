package app

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"AssessmentPipeline/internal/api"
	"AssessmentPipeline/internal/cache"
	"AssessmentPipeline/internal/catalog"
	"AssessmentPipeline/internal/config"
	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/infrastructure/intake"
	"AssessmentPipeline/internal/infrastructure/llm"
	"AssessmentPipeline/internal/infrastructure/metrics"
	"AssessmentPipeline/internal/infrastructure/parser"
	"AssessmentPipeline/internal/infrastructure/render"
	"AssessmentPipeline/internal/infrastructure/scheduler"
	"AssessmentPipeline/internal/infrastructure/storage"
	"AssessmentPipeline/internal/logging"
	"AssessmentPipeline/internal/poller"
	"AssessmentPipeline/internal/ports"
	"AssessmentPipeline/internal/retry"
	"AssessmentPipeline/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *zap.Logger
	cache     *cache.Cache[domain.AnalysisResult]
	store     *storage.PhaseStore
	recorder  *metrics.Recorder
	source    *intake.FileSource
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
}

// New builds the application. It fails on configuration problems, including
// an invalid catalog or chapter weights naming unknown chapters.
func New(cfg config.Config, baseLogger *zap.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	weights, err := chapterWeights(cat, cfg.Pipeline.ChapterWeights)
	if err != nil {
		return nil, err
	}

	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		recorder: metrics.NewRecorder(),
		cache:    cache.New[domain.AnalysisResult](cfg.Cache.Capacity, cache.WithDefaultTTL[domain.AnalysisResult](cfg.Cache.TTL)),
		source:   intake.NewFileSource(intake.NewDefaultRegistry(), baseLogger.With(zap.String("component", "intake"))),
	}

	var store ports.PhaseStore
	if cfg.Database.Driver != config.DriverNone {
		a.store, err = storage.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, eris.Wrap(err, "open phase store")
		}
		store = a.store
	}

	var sink ports.ReportSink
	if cfg.Render.WebhookURL != "" {
		sink = render.NewWebhookSink(cfg.Render.WebhookURL, cfg.Render.Timeout)
	}

	var jobs usecase.JobRunner
	if cfg.GenAI.Endpoint != "" {
		jobs = poller.New(llm.NewJobClient(cfg.GenAI),
			poller.WithRetry(retry.Config{
				MaxRetries:      cfg.Poller.MaxRetries,
				BaseDelay:       cfg.Poller.BaseDelay,
				MaxDelay:        cfg.Poller.MaxDelay,
				BackoffMultiple: retry.DefaultConfig().BackoffMultiple,
			}),
			poller.WithLogger(baseLogger.With(zap.String("component", "poller"))),
		)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Catalog: cat,
		Jobs:    jobs,
		Parser:  parser.NewAnalysisParser(),
		Cache:   a.cache,
		Store:   store,
		Sink:    sink,
		Metrics: metrics.Fanout{
			metrics.NewLogSink(baseLogger.With(zap.String("component", "metrics"))),
			a.recorder,
		},
		Logger: baseLogger.With(zap.String("component", "pipeline")),
		Settings: usecase.Settings{
			MaxParallel:  cfg.Pipeline.MaxParallel,
			PollInterval: cfg.Poller.PollInterval,
			MaxWait:      cfg.Poller.MaxWait,
			CacheTTL:     cfg.Cache.TTL,
			Model: ports.ModelConfig{
				Model:        cfg.GenAI.Model,
				Temperature:  cfg.GenAI.Temperature,
				MaxTokens:    cfg.GenAI.MaxTokens,
				SystemPrompt: cfg.GenAI.SystemPrompt,
			},
			ChapterWeights: weights,
		},
	})

	var driver ports.Scheduler
	if cfg.Cache.PruneInterval > 0 {
		driver = scheduler.NewTickerScheduler(cfg.Cache.PruneInterval)
	}
	a.scheduler = usecase.NewScheduler(driver, a.cache, baseLogger.With(zap.String("component", "maintenance")))

	return a, nil
}

// chapterWeights validates an override against the catalog. Nil means the
// catalog's own weights apply.
func chapterWeights(cat *catalog.Catalog, override map[string]float64) (map[string]float64, error) {
	if len(override) == 0 {
		return nil, nil
	}
	var problems []string
	for code, w := range override {
		if _, ok := cat.Chapter(code); !ok {
			problems = append(problems, "chapter weight for unknown chapter "+code)
		} else if w <= 0 {
			problems = append(problems, "chapter weight for "+code+" must be positive")
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &config.ValidationError{Problems: problems}
	}
	return override, nil
}

// Run executes a single submission.
func (a *Application) Run(ctx context.Context, sub domain.Submission) *domain.PipelineRun {
	return a.pipeline.Run(ctx, sub)
}

// RunFiles loads submissions from paths and runs them one after another.
func (a *Application) RunFiles(ctx context.Context, paths ...string) ([]*domain.PipelineRun, error) {
	subs, err := a.source.Load(ctx, paths...)
	if err != nil {
		return nil, err
	}
	runs := make([]*domain.PipelineRun, 0, len(subs))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		runs = append(runs, a.pipeline.Run(ctx, sub))
	}
	return runs, nil
}

// Handler builds the HTTP API.
func (a *Application) Handler() http.Handler {
	deps := api.Deps{
		Runner:  a.pipeline,
		Cache:   a.cache,
		Metrics: a.recorder,
		Logger:  a.logger.With(zap.String("component", "api")),
	}
	if a.store != nil {
		deps.Store = a.store
		deps.Phases = a.store
		deps.Health = a.store
	}
	return api.NewRouter(api.NewHandler(deps))
}

// Serve runs the HTTP API and cache maintenance until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	if err := a.scheduler.Start(ctx); err != nil {
		return eris.Wrap(err, "start maintenance")
	}

	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: a.Handler()}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("app: http listening", zap.String("addr", a.cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("app: http shutdown", zap.Error(err))
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("app: stop maintenance", zap.Error(err))
	}
	if serveErr != nil {
		return eris.Wrap(serveErr, "serve http")
	}
	return nil
}

// Close releases the phase store and flushes logs.
func (a *Application) Close() error {
	_ = a.logger.Sync()
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
