package metrics

import (
	"sync"

	"go.uber.org/zap"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/ports"
)

// LogSink writes one structured log line per phase.
type LogSink struct {
	logger *zap.Logger
}

var _ ports.MetricsSink = (*LogSink)(nil)

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) RecordPhase(m domain.PhaseMetrics) {
	s.logger.Info("pipeline: phase metrics",
		zap.String("run_id", m.RunID),
		zap.String("submission_id", m.SubmissionID),
		zap.String("phase", string(m.Phase)),
		zap.String("status", string(m.Status)),
		zap.Int("attempts", m.Attempts),
		zap.Duration("duration", m.Duration),
		zap.Int("tokens", m.TokensUsed),
		zap.Int("succeeded", m.Succeeded),
		zap.Int("failed", m.Failed),
		zap.Int("cache_hits", m.CacheHits),
	)
}

// Recorder keeps phase metrics in memory and totals them per phase.
type Recorder struct {
	mu      sync.Mutex
	records []domain.PhaseMetrics
}

var _ ports.MetricsSink = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordPhase(m domain.PhaseMetrics) {
	r.mu.Lock()
	r.records = append(r.records, m)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []domain.PhaseMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PhaseMetrics(nil), r.records...)
}

// PhaseTotals aggregates every recorded execution of one phase.
type PhaseTotals struct {
	Runs      int `json:"runs"`
	Tokens    int `json:"tokens"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	CacheHits int `json:"cacheHits"`
}

func (r *Recorder) Totals() map[domain.PhaseName]PhaseTotals {
	r.mu.Lock()
	defer r.mu.Unlock()

	totals := map[domain.PhaseName]PhaseTotals{}
	for _, m := range r.records {
		t := totals[m.Phase]
		t.Runs++
		t.Tokens += m.TokensUsed
		t.Succeeded += m.Succeeded
		t.Failed += m.Failed
		t.CacheHits += m.CacheHits
		totals[m.Phase] = t
	}
	return totals
}

// Fanout forwards every record to all sinks.
type Fanout []ports.MetricsSink

func (f Fanout) RecordPhase(m domain.PhaseMetrics) {
	for _, sink := range f {
		if sink != nil {
			sink.RecordPhase(m)
		}
	}
}
