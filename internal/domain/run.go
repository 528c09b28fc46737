package domain

import "time"

// PhaseName identifies one of the fixed pipeline phases.
type PhaseName string

const (
	PhaseNormalize  PhaseName = "normalize"
	PhaseAnalyze    PhaseName = "analyze"
	PhaseSynthesize PhaseName = "synthesize"
)

// RunStatus is the outcome of a phase or a whole run.
type RunStatus string

const (
	StatusComplete RunStatus = "complete"
	StatusPartial  RunStatus = "partial"
	StatusFailed   RunStatus = "failed"
)

func (s RunStatus) rank() int {
	switch s {
	case StatusComplete:
		return 2
	case StatusPartial:
		return 1
	}
	return 0
}

// AtLeast reports whether s is as good as or better than min.
func (s RunStatus) AtLeast(min RunStatus) bool {
	return s.rank() >= min.rank()
}

// StatusOf derives a phase status from its tasks: Complete when every task
// succeeded, Partial when some did, Failed when none did (including an empty list).
func StatusOf(tasks []AnalysisTask) RunStatus {
	succeeded := 0
	for _, t := range tasks {
		if t.Status == TaskSucceeded {
			succeeded++
		}
	}
	switch {
	case succeeded == 0:
		return StatusFailed
	case succeeded == len(tasks):
		return StatusComplete
	default:
		return StatusPartial
	}
}

// PhaseRecord captures one phase's tasks and metrics.
type PhaseRecord struct {
	Name       PhaseName      `json:"name"`
	Status     RunStatus      `json:"status"`
	Attempts   int            `json:"attempts"`
	Tasks      []AnalysisTask `json:"tasks"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Duration   time.Duration  `json:"duration"`
	TokensUsed int            `json:"tokensUsed"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	CacheHits  int            `json:"cacheHits"`
	ErrorKind  ErrorKind      `json:"errorKind,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// RunMetrics aggregates run-wide accounting.
type RunMetrics struct {
	Duration      time.Duration      `json:"duration"`
	TokensTotal   int                `json:"tokensTotal"`
	TokensByPhase map[PhaseName]int  `json:"tokensByPhase"`
	TasksByStatus map[TaskStatus]int `json:"tasksByStatus"`
}

// PipelineRun is one submission's journey through all phases.
type PipelineRun struct {
	RunID         string                    `json:"runId"`
	SubmissionID  string                    `json:"submissionId"`
	Company       string                    `json:"company"`
	Phases        []PhaseRecord             `json:"phases"`
	OverallStatus RunStatus                 `json:"overallStatus"`
	ErrorKind     ErrorKind                 `json:"errorKind,omitempty"`
	Responses     []NormalizedResponse      `json:"responses,omitempty"`
	Scores        *ScoreSnapshot            `json:"scores,omitempty"`
	Analyses      map[string]AnalysisResult `json:"analyses,omitempty"`
	Summaries     map[string]AnalysisResult `json:"summaries,omitempty"`
	Metrics       RunMetrics                `json:"metrics"`
	Summary       string                    `json:"summary"`
	StartedAt     time.Time                 `json:"startedAt"`
	FinishedAt    time.Time                 `json:"finishedAt"`
}

// Phase returns the record for name, if the phase ran.
func (r *PipelineRun) Phase(name PhaseName) (*PhaseRecord, bool) {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i], true
		}
	}
	return nil, false
}

// CurrentPhase returns the most recently executed phase.
func (r *PipelineRun) CurrentPhase() (*PhaseRecord, bool) {
	if len(r.Phases) == 0 {
		return nil, false
	}
	return &r.Phases[len(r.Phases)-1], true
}

// FailedTasks lists failed tasks across all phases.
func (r *PipelineRun) FailedTasks() []AnalysisTask {
	var failed []AnalysisTask
	for _, p := range r.Phases {
		for _, t := range p.Tasks {
			if t.Status == TaskFailed {
				failed = append(failed, t)
			}
		}
	}
	return failed
}

// PhaseMetrics is emitted once per executed phase.
type PhaseMetrics struct {
	RunID        string        `json:"runId"`
	SubmissionID string        `json:"submissionId"`
	Phase        PhaseName     `json:"phase"`
	Status       RunStatus     `json:"status"`
	Attempts     int           `json:"attempts"`
	Duration     time.Duration `json:"duration"`
	TokensUsed   int           `json:"tokensUsed"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	CacheHits    int           `json:"cacheHits"`
}

// MetricsFor summarizes a phase record for a metrics sink.
func (r *PipelineRun) MetricsFor(p PhaseRecord) PhaseMetrics {
	return PhaseMetrics{
		RunID:        r.RunID,
		SubmissionID: r.SubmissionID,
		Phase:        p.Name,
		Status:       p.Status,
		Attempts:     p.Attempts,
		Duration:     p.Duration,
		TokensUsed:   p.TokensUsed,
		Succeeded:    p.Succeeded,
		Failed:       p.Failed,
		CacheHits:    p.CacheHits,
	}
}
