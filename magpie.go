// Package magpie ingests link-in-bio pages (Linktree, Beacons, Laylo,
// YouTube channels, personal sites) and reconciles the outbound links they
// carry into a creator's stored link set.
//
// Basic usage:
//
//	db, _ := sqlx.Connect("postgres", dsn)
//	pipe := magpie.New(db)
//
//	enq, err := pipe.Enqueue(ctx, magpie.Request{
//	    ProfileID: profileID,
//	    URL:       "https://linktr.ee/artistname",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// From a timer, drain due work:
//	summary, err := pipe.ProcessDue(ctx, 25)
//
// Extraction strategies register themselves on import; importing this
// package brings in all supported platforms. Platform packages can also be
// used directly with extract.Run for one-off extraction without a database.
package magpie

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
	"github.com/codeGROOVE-dev/magpie/pkg/jobstore"
	"github.com/codeGROOVE-dev/magpie/pkg/linkstore"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
	"github.com/codeGROOVE-dev/magpie/pkg/merge"
	"github.com/codeGROOVE-dev/magpie/pkg/scheduler"

	// Platform strategies install themselves via init.
	_ "github.com/codeGROOVE-dev/magpie/pkg/beacons"
	_ "github.com/codeGROOVE-dev/magpie/pkg/laylo"
	_ "github.com/codeGROOVE-dev/magpie/pkg/linktree"
	_ "github.com/codeGROOVE-dev/magpie/pkg/website"
	_ "github.com/codeGROOVE-dev/magpie/pkg/youtube"
)

type (
	// Request re-exports scheduler.Request.
	Request = scheduler.Request
	// Enqueued re-exports scheduler.Enqueued.
	Enqueued = scheduler.Enqueued
	// Summary re-exports scheduler.Summary.
	Summary = scheduler.Summary
	// Result re-exports extract.Result.
	Result = extract.Result
	// Link re-exports extract.Link.
	Link = extract.Link
)

// Re-export common errors.
var (
	ErrNotFound    = extract.ErrNotFound
	ErrRateLimited = extract.ErrRateLimited
	ErrConflict    = merge.ErrConflict
)

// Normalize re-exports linkurl.Normalize.
func Normalize(rawURL string) string { return linkurl.Normalize(rawURL) }

// Platforms returns the registered platform ids.
func Platforms() []string { return extract.Names() }

// Option configures a Pipeline.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	cache       fetch.Cacher
	timeout     time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	maxAttempts int
	dedupWindow time.Duration
}

// WithLogger sets the structured logger used across the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithCache sets the fetch-layer response cache.
func WithCache(cache fetch.Cacher) Option {
	return func(c *config) { c.cache = cache }
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithBackoff sets the retry backoff base and cap.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *config) { c.backoffBase = base; c.backoffMax = maxDelay }
}

// WithMaxAttempts sets how many attempts a job gets before failing.
func WithMaxAttempts(n int) Option {
	return func(c *config) { c.maxAttempts = n }
}

// WithDedupWindow sets how long a completed job suppresses a duplicate
// enqueue of the same source.
func WithDedupWindow(d time.Duration) Option {
	return func(c *config) { c.dedupWindow = d }
}

// Pipeline is the assembled ingestion system over one database.
type Pipeline struct {
	sched  *scheduler.Scheduler
	jobs   *jobstore.Store
	links  *linkstore.Store
	client *fetch.Client
}

// New assembles a pipeline over the database connection.
func New(db *sqlx.DB, opts ...Option) *Pipeline {
	cfg := &config{
		logger:      slog.Default(),
		timeout:     fetch.DefaultTimeout,
		backoffBase: time.Minute,
		backoffMax:  6 * time.Hour,
		maxAttempts: 5,
		dedupWindow: 6 * time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fetchOpts := []fetch.Option{
		fetch.WithLogger(cfg.logger),
		fetch.WithTimeout(cfg.timeout),
	}
	if cfg.cache != nil {
		fetchOpts = append(fetchOpts, fetch.WithCache(cfg.cache))
	}
	client := fetch.New(fetchOpts...)

	jobs := jobstore.NewStore(db)
	links := linkstore.NewStore(db)
	merger := merge.New(links, client, cfg.logger)

	sched := scheduler.New(jobs, merger, client,
		scheduler.WithLogger(cfg.logger),
		scheduler.WithBackoff(cfg.backoffBase, cfg.backoffMax),
		scheduler.WithMaxAttempts(cfg.maxAttempts),
		scheduler.WithDedupWindow(cfg.dedupWindow),
	)

	return &Pipeline{sched: sched, jobs: jobs, links: links, client: client}
}

// Enqueue registers an ingestion job for a source URL. The call is
// idempotent: repeating it while a job for the same canonical source is
// active (or recently completed) returns the existing job's ID.
func (p *Pipeline) Enqueue(ctx context.Context, req Request) (*Enqueued, error) {
	return p.sched.Enqueue(ctx, req)
}

// ProcessDue claims and executes up to limit due jobs. Call it from a
// periodic timer; a drained queue returns an empty summary, not an error.
func (p *Pipeline) ProcessDue(ctx context.Context, limit int) (Summary, error) {
	return p.sched.ProcessDue(ctx, limit)
}

// Jobs exposes the job store for inspection tooling.
func (p *Pipeline) Jobs() *jobstore.Store { return p.jobs }

// Links exposes the link store for inspection tooling.
func (p *Pipeline) Links() *linkstore.Store { return p.links }
