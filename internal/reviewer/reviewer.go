// Package reviewer runs the review relay: fetch pages, drop seen reviews,
// notify, record seen-state.
package reviewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/internal/logger"
	"github.com/samvad-hq/samvad-review-relay/internal/metrics"
	"github.com/samvad-hq/samvad-review-relay/internal/storage"
	"github.com/samvad-hq/samvad-review-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-review-relay/pkg/publishers"
	"golang.org/x/time/rate"
)

// StoreOpener opens the seen-state backend.
type StoreOpener func() (storage.Store, error)

type options struct {
	concurrency int
	limit       rate.Limit
	client      httpclient.Client
	mirrors     *publishers.Fanout
	metrics     *metrics.Recorder
}

// Option tunes a Reviewer.
type Option func(*options)

// WithConcurrency bounds parallel page fetches.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithRateLimit paces webhook posts.
func WithRateLimit(limit rate.Limit) Option {
	return func(o *options) { o.limit = limit }
}

// WithHTTPClient sets the client used for webhook posts.
func WithHTTPClient(client httpclient.Client) Option {
	return func(o *options) { o.client = client }
}

// WithMirrors adds sinks that receive a copy of every delivered review.
func WithMirrors(f *publishers.Fanout) Option {
	return func(o *options) { o.mirrors = f }
}

// WithMetrics records run counters.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(o *options) { o.metrics = rec }
}

// Reviewer owns one seen-state store and runs the pipeline against it.
type Reviewer struct {
	mu         sync.Mutex
	store      storage.Store
	initErr    *StorageInitError
	pending    error
	firstTime  bool
	log        logger.Logger
	aggregator *Aggregator
	dispatcher *Dispatcher
}

// New opens the store and captures the first-run flag. A store that fails to open
// does not fail construction: the error is reported once a logger is attached and
// every Run returns it.
func New(fetcher PageFetcher, open StoreOpener, opts ...Option) *Reviewer {
	o := options{concurrency: DefaultConcurrency, limit: DefaultRate}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reviewer{log: logger.NopLogger{}}

	store, err := open()
	if err == nil && store == nil {
		err = fmt.Errorf("store opener returned no store")
	}
	if err != nil {
		r.initErr = &StorageInitError{Err: err}
		r.pending = r.initErr
		return r
	}

	r.store = store
	seen := NewSeenStore(store)
	r.firstTime = seen.FirstRun()
	r.aggregator = NewAggregator(fetcher, seen, o.concurrency, nil, o.metrics)
	r.dispatcher = NewDispatcher(o.client, seen, o.limit, o.mirrors, nil, o.metrics)
	return r
}

// SetLogger attaches a logger and reports a pending storage failure exactly once.
func (r *Reviewer) SetLogger(log logger.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = logger.Ensure(log)
	if r.aggregator != nil {
		r.aggregator.log = r.log
	}
	if r.dispatcher != nil {
		r.dispatcher.log = r.log
	}
	if r.pending != nil {
		r.log.ErrorObj("seen-state storage unavailable", "storage_init_error", r.pending.Error())
		r.pending = nil
	}
}

// FirstRun reports whether the next Run only seeds seen-state.
func (r *Reviewer) FirstRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstTime
}

// Run fetches new reviews for the query and delivers them. Runs are serialized.
func (r *Reviewer) Run(ctx context.Context, q domain.AppQuery, notify domain.NotificationConfig) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initErr != nil {
		return Summary{}, r.initErr
	}

	q, err := q.Normalize()
	if err != nil {
		return Summary{}, &ConfigError{Field: "app_id", Err: err}
	}

	reviews := r.aggregator.FetchNewReviews(ctx, q)
	sum, err := r.dispatcher.Dispatch(ctx, reviews, notify, r.firstTime)
	if err != nil {
		r.log.ErrorObj("dispatch aborted", "dispatch_error", err.Error())
		return sum, err
	}

	// The seeding pass is done; later runs in this process notify normally.
	r.firstTime = false

	r.log.DebugObj(fmt.Sprintf("sent %d reviews", sum.Sent), "run_summary", map[string]any{
		"app_id":     q.AppID,
		"fetched":    len(reviews),
		"sent":       sum.Sent,
		"suppressed": sum.Suppressed,
		"failed":     sum.Failed,
	})
	return sum, nil
}

// Close releases the store.
func (r *Reviewer) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}
