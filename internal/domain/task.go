package domain

import (
	"errors"
	"fmt"
	"time"
)

// TaskStatus tracks an AnalysisTask through its lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskSubmitted TaskStatus = "submitted"
	TaskPolling   TaskStatus = "polling"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

func (s TaskStatus) rank() int {
	switch s {
	case TaskPending:
		return 0
	case TaskSubmitted:
		return 1
	case TaskPolling:
		return 2
	case TaskSucceeded, TaskFailed:
		return 3
	}
	return -1
}

// ErrorKind classifies why a task or phase failed.
type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorRemoteUnavailable ErrorKind = "RemoteUnavailable"
	ErrorInvalidResponse   ErrorKind = "InvalidResponse"
	ErrorRemoteRejected    ErrorKind = "RemoteRejected"
	ErrorTimedOut          ErrorKind = "TimedOut"
	ErrorInsufficientData  ErrorKind = "InsufficientData"
	ErrorValidation        ErrorKind = "Validation"
	ErrorConfiguration     ErrorKind = "Configuration"
	ErrorCanceled          ErrorKind = "Canceled"
	ErrorInternal          ErrorKind = "Internal"
)

var (
	// ErrTaskTerminal is returned when a finished task is asked to change.
	ErrTaskTerminal = errors.New("task already terminal")
	// ErrInvalidTransition is returned for a status regression or unknown status.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// AnalysisTask is one independent unit of phase work. Each task is owned by
// exactly one run and written only by the goroutine resolving it.
type AnalysisTask struct {
	ID          string          `json:"id"`
	Phase       PhaseName       `json:"phase"`
	Topic       string          `json:"topic"`
	Status      TaskStatus      `json:"status"`
	Attempts    int             `json:"attempts"`
	SubmittedAt time.Time       `json:"submittedAt,omitempty"`
	ResolvedAt  time.Time       `json:"resolvedAt,omitempty"`
	TokensUsed  int             `json:"tokensUsed,omitempty"`
	CacheHit    bool            `json:"cacheHit,omitempty"`
	Result      *AnalysisResult `json:"result,omitempty"`
	ErrorKind   ErrorKind       `json:"errorKind,omitempty"`
	ErrorDetail string          `json:"errorDetail,omitempty"`
}

// NewTask returns a pending task.
func NewTask(id string, phase PhaseName, topic string) AnalysisTask {
	return AnalysisTask{ID: id, Phase: phase, Topic: topic, Status: TaskPending}
}

// Advance moves the task forward. Statuses only move forward and terminal
// statuses never change.
func (t *AnalysisTask) Advance(next TaskStatus, at time.Time) error {
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, t.ID, t.Status)
	}
	if next.rank() < 0 || next.rank() <= t.Status.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	if next == TaskSubmitted {
		t.SubmittedAt = at
		t.Attempts++
	}
	if next.Terminal() {
		t.ResolvedAt = at
	}
	t.Status = next
	return nil
}

// Succeed marks the task succeeded with its result.
func (t *AnalysisTask) Succeed(result AnalysisResult, tokens int, at time.Time) error {
	if err := t.Advance(TaskSucceeded, at); err != nil {
		return err
	}
	t.Result = &result
	t.TokensUsed += tokens
	return nil
}

// Fail marks the task failed with a classified error.
func (t *AnalysisTask) Fail(kind ErrorKind, detail string, at time.Time) error {
	if err := t.Advance(TaskFailed, at); err != nil {
		return err
	}
	t.ErrorKind = kind
	t.ErrorDetail = detail
	return nil
}
