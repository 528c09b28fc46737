package ports

import (
	"context"
	"fmt"
	"time"

	"AssessmentPipeline/internal/domain"
)

// ModelConfig selects the model and sampling parameters for one generation job.
type ModelConfig struct {
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
}

// JobState is the remote state reported by the generative service.
type JobState string

const (
	JobPending  JobState = "pending"
	JobComplete JobState = "complete"
	JobError    JobState = "error"
)

// JobStatus is one poll response.
type JobStatus struct {
	State      JobState
	Payload    []byte
	TokensUsed int
	Error      string
}

// GenerativeService submits long-running generation jobs and reports their state.
type GenerativeService interface {
	SubmitJob(ctx context.Context, prompt string, cfg ModelConfig) (string, error)
	PollJob(ctx context.Context, jobID string) (JobStatus, error)
}

// ServiceError is returned by GenerativeService adapters when a call fails.
// Transient marks failures worth retrying (rate limits, 5xx, network).
type ServiceError struct {
	Op         string
	StatusCode int
	Transient  bool
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// AnalysisParser turns a generated payload into a structured analysis.
type AnalysisParser interface {
	Parse(topic string, payload []byte) (domain.AnalysisResult, error)
}

// PhaseStore is the write-once sink for consolidated phase outputs.
type PhaseStore interface {
	SavePhaseOutput(ctx context.Context, submissionID string, phase string, payload []byte) error
}

// ReportSink hands finished runs to the report renderer.
type ReportSink interface {
	Publish(ctx context.Context, run domain.PipelineRun) error
}

// MetricsSink receives per-phase metrics.
type MetricsSink interface {
	RecordPhase(m domain.PhaseMetrics)
}

// Scheduler controls when maintenance jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
