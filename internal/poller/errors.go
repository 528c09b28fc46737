package poller

import (
	"context"
	"errors"
	"fmt"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/ports"
	"AssessmentPipeline/internal/retry"
)

// JobError is the classified failure of a submit or await call.
type JobError struct {
	Kind   domain.ErrorKind
	JobID  string
	Polls  int
	Detail string
	Err    error
}

func (e *JobError) Error() string {
	msg := string(e.Kind)
	if e.JobID != "" {
		msg += " (job " + e.JobID + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *JobError) Unwrap() error { return e.Err }

// KindOf extracts the error kind, defaulting to Internal for unclassified errors.
func KindOf(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorNone
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorCanceled
	}
	return domain.ErrorInternal
}

// IsTransient reports whether a service error is worth retrying.
func IsTransient(err error) bool {
	var svcErr *ports.ServiceError
	return errors.As(err, &svcErr) && svcErr.Transient
}

func classify(jobID string, polls int, err error) *JobError {
	je := &JobError{JobID: jobID, Polls: polls, Err: err}

	var exhausted *retry.ExhaustedError
	var svcErr *ports.ServiceError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		je.Kind = domain.ErrorCanceled
	case errors.As(err, &exhausted):
		je.Kind = domain.ErrorRemoteUnavailable
		je.Detail = fmt.Sprintf("gave up after %d attempts", exhausted.Attempts)
	case errors.As(err, &svcErr):
		switch {
		case svcErr.Transient:
			je.Kind = domain.ErrorRemoteUnavailable
		case svcErr.StatusCode >= 400 && svcErr.StatusCode < 500:
			je.Kind = domain.ErrorRemoteRejected
		default:
			je.Kind = domain.ErrorInvalidResponse
		}
	default:
		je.Kind = domain.ErrorInternal
	}
	return je
}
