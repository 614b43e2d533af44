// Package scheduler owns the ingestion job lifecycle: idempotent enqueue,
// batch claim-and-execute, error classification, and exponential backoff.
// It is driven by an external timer (see cmd); the package itself never
// sleeps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
	"github.com/codeGROOVE-dev/magpie/pkg/followup"
	"github.com/codeGROOVE-dev/magpie/pkg/jobstore"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
	"github.com/codeGROOVE-dev/magpie/pkg/merge"
)

// Defaults for retry policy and enqueue dedup.
const (
	defaultBackoffBase = time.Minute
	defaultBackoffMax  = 6 * time.Hour
	defaultMaxAttempts = 5
	defaultDedupWindow = 6 * time.Hour
)

// Scheduler wires the job store, extraction, and merge together.
type Scheduler struct {
	jobs   *jobstore.Store
	merger *merge.Engine
	client *fetch.Client
	logger *slog.Logger

	backoffBase time.Duration
	backoffMax  time.Duration
	maxAttempts int
	dedupWindow time.Duration
	now         func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithBackoff sets the exponential backoff base and cap.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(s *Scheduler) { s.backoffBase = base; s.backoffMax = maxDelay }
}

// WithMaxAttempts sets how many attempts a job gets before failing terminally.
func WithMaxAttempts(n int) Option {
	return func(s *Scheduler) { s.maxAttempts = n }
}

// WithDedupWindow sets how long a completed job suppresses re-enqueue of the
// same work.
func WithDedupWindow(d time.Duration) Option {
	return func(s *Scheduler) { s.dedupWindow = d }
}

// New creates a scheduler.
func New(jobs *jobstore.Store, merger *merge.Engine, client *fetch.Client, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:        jobs,
		merger:      merger,
		client:      client,
		logger:      slog.Default(),
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
		maxAttempts: defaultMaxAttempts,
		dedupWindow: defaultDedupWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request asks for a source URL to be ingested for a profile.
type Request struct {
	ProfileID string
	URL       string
	Priority  int
	Depth     int
}

// Enqueued reports what Enqueue did. JobID is empty when the URL matched no
// supported platform; Reused is true when an existing active or recent job
// absorbed the request.
type Enqueued struct {
	JobID    string
	Platform string
	Reused   bool
}

// Enqueue registers an ingestion job for the URL, reusing any active or
// recently completed job for the same canonical identity.
func (s *Scheduler) Enqueue(ctx context.Context, req Request) (*Enqueued, error) {
	normalized := linkurl.Normalize(req.URL)
	strategy, d := extract.ForURL(normalized)
	if strategy == nil {
		s.logger.InfoContext(ctx, "no platform matched, nothing to enqueue",
			"url", req.URL, "detected", d.Platform, "hint", d.Hint)
		return &Enqueued{Platform: d.Platform}, nil
	}

	dedupKey := d.Identity()
	existing, err := s.jobs.FindActiveOrRecent(ctx, strategy.Name(), req.ProfileID, dedupKey, s.dedupWindow)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.DebugContext(ctx, "reusing existing job",
			"job_id", existing.ID, "dedup_key", dedupKey, "status", existing.Status)
		return &Enqueued{JobID: existing.ID, Platform: strategy.Name(), Reused: true}, nil
	}

	id, err := s.jobs.Insert(ctx, jobstore.InsertParams{
		JobType:   strategy.Name(),
		ProfileID: req.ProfileID,
		SourceURL: d.CanonicalURL,
		DedupKey:  dedupKey,
		Depth:     req.Depth,
		Priority:  req.Priority,
		RunAt:     s.now().UTC(),
	})
	if err != nil {
		// A concurrent enqueue won the insert race against the partial
		// unique index; their job is the job.
		if isUniqueViolation(err) {
			winner, lookupErr := s.jobs.FindActiveOrRecent(ctx, strategy.Name(), req.ProfileID, dedupKey, s.dedupWindow)
			if lookupErr == nil && winner != nil {
				s.logger.DebugContext(ctx, "lost enqueue race, reusing winner",
					"job_id", winner.ID, "dedup_key", dedupKey)
				return &Enqueued{JobID: winner.ID, Platform: strategy.Name(), Reused: true}, nil
			}
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "job enqueued",
		"job_id", id, "platform", strategy.Name(), "profile_id", req.ProfileID, "depth", req.Depth)
	return &Enqueued{JobID: id, Platform: strategy.Name()}, nil
}

// Summary reports one ProcessDue batch.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
}

// ProcessDue claims up to limit due jobs and executes them sequentially.
// A drained queue is not an error.
func (s *Scheduler) ProcessDue(ctx context.Context, limit int) (Summary, error) {
	jobs, err := s.jobs.ClaimDue(ctx, limit)
	if err != nil {
		if errors.Is(err, jobstore.ErrNoJobAvailable) {
			return Summary{}, nil
		}
		return Summary{}, err
	}

	var sum Summary
	for _, job := range jobs {
		sum.Processed++
		if err := s.runJob(ctx, job); err != nil {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
	}

	s.logger.InfoContext(ctx, "batch complete",
		"processed", sum.Processed, "succeeded", sum.Succeeded, "failed", sum.Failed)
	return sum, nil
}

// runJob executes one claimed job end to end and finalizes its status.
// The returned error reflects the job outcome, not a store failure.
func (s *Scheduler) runJob(ctx context.Context, job *jobstore.Job) error {
	strategy := extract.Lookup(job.JobType)
	if strategy == nil {
		return s.finalize(ctx, job, fmt.Errorf("no strategy for job type %q", job.JobType), dispositionTerminal)
	}

	res, err := extract.Run(ctx, strategy, s.client, job.SourceURL, s.logger)
	if err != nil {
		d := classify(err)
		if d != dispositionSoft {
			return s.finalize(ctx, job, err, d)
		}
		// Unparseable page: the job succeeds with nothing to merge.
		s.logger.InfoContext(ctx, "page yielded no content, completing with zero links",
			"job_id", job.ID, "error", err)
		res = &extract.Result{}
	}

	if _, err := s.merger.Apply(ctx, job.ProfileID, res); err != nil {
		return s.finalize(ctx, job, err, classify(err))
	}

	for _, cand := range followup.Candidates(res.Links, job.Depth) {
		if _, err := s.Enqueue(ctx, Request{
			ProfileID: job.ProfileID,
			URL:       cand.URL,
			Priority:  job.Priority,
			Depth:     job.Depth + 1,
		}); err != nil {
			s.logger.WarnContext(ctx, "follow-up enqueue failed",
				"job_id", job.ID, "url", cand.URL, "error", err)
		}
	}

	return s.finalize(ctx, job, nil, dispositionNone)
}

// finalize moves the job to its terminal-for-now status: completed, failed,
// or rescheduled with backoff.
func (s *Scheduler) finalize(ctx context.Context, job *jobstore.Job, jobErr error, d disposition) error {
	switch {
	case jobErr == nil:
		if err := s.jobs.MarkCompleted(ctx, job.ID); err != nil {
			return err
		}
		return nil

	case d == dispositionTerminal:
		s.logger.WarnContext(ctx, "job failed terminally",
			"job_id", job.ID, "error", jobErr)
		if err := s.jobs.MarkFailed(ctx, job.ID, jobErr.Error()); err != nil {
			return err
		}
		return jobErr

	default:
		attempts := job.Attempts + 1
		if attempts >= s.maxAttempts {
			s.logger.WarnContext(ctx, "job exhausted retries",
				"job_id", job.ID, "attempts", attempts, "error", jobErr)
			if err := s.jobs.MarkFailed(ctx, job.ID, jobErr.Error()); err != nil {
				return err
			}
			return jobErr
		}
		runAt := s.now().UTC().Add(s.backoffFor(attempts))
		s.logger.InfoContext(ctx, "job rescheduled",
			"job_id", job.ID, "attempts", attempts, "run_at", runAt, "error", jobErr)
		if err := s.jobs.Reschedule(ctx, job.ID, jobErr.Error(), runAt); err != nil {
			return err
		}
		return jobErr
	}
}

// backoffFor computes base * 2^attempts capped at the configured max.
func (s *Scheduler) backoffFor(attempts int) time.Duration {
	d := s.backoffBase
	for i := 0; i < attempts && d < s.backoffMax; i++ {
		d *= 2
	}
	if d > s.backoffMax {
		return s.backoffMax
	}
	return d
}

// isUniqueViolation matches Postgres unique_violation (23505) anywhere in
// the chain.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

type disposition int

const (
	dispositionNone disposition = iota
	dispositionTerminal
	dispositionRetryable
	dispositionSoft
)

// classify maps an execution error to retry policy. Bad input and missing
// pages never improve with retries; parse trouble is a soft success; the
// rest is assumed transient.
func classify(err error) disposition {
	switch {
	case errors.Is(err, extract.ErrInvalidURL),
		errors.Is(err, extract.ErrInvalidHost),
		errors.Is(err, extract.ErrInvalidHandle),
		errors.Is(err, extract.ErrNotFound),
		errors.Is(err, extract.ErrRateLimited),
		errors.Is(err, fetch.ErrResponseTooLarge),
		errors.Is(err, fetch.ErrTooManyRedirects):
		return dispositionTerminal

	case errors.Is(err, extract.ErrParse):
		return dispositionSoft

	default:
		// Timeouts, network errors, 5xx, empty bodies, merge conflicts.
		return dispositionRetryable
	}
}
