// Package poller submits jobs to the generative service and polls them to a
// terminal state within a bounded wait.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/ports"
	"AssessmentPipeline/internal/retry"
)

// Request is one unit of generation work.
type Request struct {
	Prompt string
	Model  ports.ModelConfig
}

// JobHandle identifies a submitted job.
type JobHandle struct {
	ID          string
	SubmittedAt time.Time
}

// Result is the payload of a completed job.
type Result struct {
	JobID      string
	Payload    []byte
	TokensUsed int
	Polls      int
	Elapsed    time.Duration
}

// Poller is stateless per call and safe for concurrent use.
type Poller struct {
	service ports.GenerativeService
	retry   retry.Config
	now     func() time.Time
	sleep   retry.Sleeper
	logger  *zap.Logger
}

type Option func(*Poller)

func WithRetry(cfg retry.Config) Option {
	return func(p *Poller) { p.retry = cfg }
}

// WithClock replaces the wall clock and the sleeper together so tests can
// advance time without waiting.
func WithClock(now func() time.Time, sleep retry.Sleeper) Option {
	return func(p *Poller) {
		p.now = now
		p.sleep = sleep
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

func New(service ports.GenerativeService, opts ...Option) *Poller {
	p := &Poller{
		service: service,
		retry:   retry.DefaultConfig(),
		now:     time.Now,
		sleep:   retry.SleepContext,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit sends the request, retrying transient failures.
func (p *Poller) Submit(ctx context.Context, req Request) (JobHandle, error) {
	id, err := retry.Execute(ctx, p.retryOptions(nil, "submit"), func(int) (string, error) {
		return p.service.SubmitJob(ctx, req.Prompt, req.Model)
	})
	if err != nil {
		return JobHandle{}, classify("", 0, err)
	}
	if id == "" {
		return JobHandle{}, &JobError{Kind: domain.ErrorInvalidResponse, Detail: "empty job id"}
	}
	return JobHandle{ID: id, SubmittedAt: p.now()}, nil
}

// AwaitCompletion polls the job every pollInterval until it completes, fails,
// or maxWait elapses. Every status call, retry backoff included, runs under a
// maxWait deadline. A timed-out job is abandoned locally; the remote job is
// not cancelled.
func (p *Poller) AwaitCompletion(ctx context.Context, h JobHandle, pollInterval, maxWait time.Duration) (Result, error) {
	if pollInterval <= 0 || maxWait <= 0 {
		return Result{}, &JobError{Kind: domain.ErrorConfiguration, JobID: h.ID, Detail: "poll interval and max wait must be positive"}
	}

	start := p.now()
	deadline := start.Add(maxWait)
	remaining := func() time.Duration { return deadline.Sub(p.now()) }

	pollCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()
	timedOut := func(polls int) *JobError {
		p.logger.Debug("poller: job timed out",
			zap.String("job_id", h.ID),
			zap.Int("polls", polls),
			zap.Duration("max_wait", maxWait))
		return &JobError{Kind: domain.ErrorTimedOut, JobID: h.ID, Polls: polls, Detail: "still pending after " + maxWait.String()}
	}

	polls := 0
	for {
		status, err := retry.Execute(pollCtx, p.retryOptions(remaining, "poll"), func(int) (ports.JobStatus, error) {
			return p.service.PollJob(pollCtx, h.ID)
		})
		polls++
		if err != nil {
			if pollCtx.Err() != nil && ctx.Err() == nil {
				return Result{}, timedOut(polls)
			}
			return Result{}, classify(h.ID, polls, err)
		}

		switch status.State {
		case ports.JobComplete:
			if len(status.Payload) == 0 {
				return Result{}, &JobError{Kind: domain.ErrorInvalidResponse, JobID: h.ID, Polls: polls, Detail: "complete job without payload"}
			}
			return Result{
				JobID:      h.ID,
				Payload:    status.Payload,
				TokensUsed: status.TokensUsed,
				Polls:      polls,
				Elapsed:    p.now().Sub(start),
			}, nil
		case ports.JobError:
			return Result{}, &JobError{Kind: domain.ErrorRemoteRejected, JobID: h.ID, Polls: polls, Detail: status.Error}
		case ports.JobPending:
		default:
			return Result{}, &JobError{Kind: domain.ErrorInvalidResponse, JobID: h.ID, Polls: polls, Detail: "unknown job state " + string(status.State)}
		}

		left := remaining()
		if left <= 0 {
			return Result{}, timedOut(polls)
		}
		wait := pollInterval
		if left < wait {
			wait = left
		}
		if err := p.sleep(pollCtx, wait); err != nil {
			if ctx.Err() == nil {
				return Result{}, timedOut(polls)
			}
			return Result{}, classify(h.ID, polls, err)
		}
	}
}

func (p *Poller) retryOptions(budget func() time.Duration, op string) retry.Options {
	return retry.Options{
		Config:    p.retry,
		Retryable: IsTransient,
		Budget:    budget,
		Sleep:     p.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			p.logger.Debug("poller: retrying transient error",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	}
}
