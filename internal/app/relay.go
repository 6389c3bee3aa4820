package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-review-relay/internal/config"
	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/internal/logger"
	"github.com/samvad-hq/samvad-review-relay/internal/metrics"
	"github.com/samvad-hq/samvad-review-relay/internal/reviewer"
	"github.com/samvad-hq/samvad-review-relay/internal/storage"
	"github.com/samvad-hq/samvad-review-relay/pkg/feed"
	"github.com/samvad-hq/samvad-review-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-review-relay/pkg/publishers"
	"golang.org/x/time/rate"
)

const (
	metricsJob    = "review_relay"
	feedRetries   = 2
	feedRetryWait = 500 * time.Millisecond
	pushTimeout   = 10 * time.Second
)

// Relay is the review relay runtime: one reviewer, its sinks and its metrics.
// By default it performs a single pass; a positive run interval turns it into a loop.
type Relay struct {
	cfg      *config.Config
	query    domain.AppQuery
	notify   domain.NotificationConfig
	reviewer *reviewer.Reviewer
	mirrors  *publishers.Fanout
	metrics  *metrics.Recorder
	interval time.Duration
	log      logger.Logger
}

// NewRelay builds a relay runtime from config. A seen-state store that cannot be
// opened is reported by the reviewer and fails every run instead of construction.
func NewRelay(ctx context.Context, cfg *config.Config, log logger.Logger) (*Relay, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	countries, err := loadCountries(cfg)
	if err != nil {
		return nil, fmt.Errorf("load countries: %w", err)
	}
	log.InfoObj("countries loaded", "countries_meta", map[string]any{
		"count": len(countries),
		"codes": countries.Codes(),
	})

	feedClient := httpclient.NewRestyClientWithOptions(httpclient.Options{
		Timeout:        cfg.FetchTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
		RetryCount:     feedRetries,
		RetryWaitTime:  feedRetryWait,
	})
	fetcher, err := feed.NewFetcher(feedClient, feed.Options{
		BaseURL: cfg.FeedBaseURL,
		Format:  cfg.FeedFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("init feed fetcher: %w", err)
	}

	mirrors, err := buildMirrors(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	rec := metrics.New()

	// Webhook posts are not retried by the client; a failed post is retried on the next run.
	webhookClient := httpclient.NewRestyClientWithOptions(httpclient.Options{
		Timeout:        cfg.FetchTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
	})

	storeOpts := storage.Options{
		TTL:           cfg.StorageTTL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	}
	open := func() (storage.Store, error) {
		return storage.NewStore(cfg.StorageType, cfg.StorageDir, storeOpts)
	}

	rv := reviewer.New(fetcher, open,
		reviewer.WithConcurrency(cfg.FetchConcurrency),
		reviewer.WithRateLimit(rate.Limit(cfg.NotifyRatePerSecond)),
		reviewer.WithHTTPClient(webhookClient),
		reviewer.WithMirrors(mirrors),
		reviewer.WithMetrics(rec),
	)
	rv.SetLogger(log)
	log.InfoObj("storage configured", "storage_config", map[string]any{
		"type":        cfg.StorageType,
		"dir":         cfg.StorageDir,
		"ttl_seconds": int(cfg.StorageTTL.Seconds()),
		"first_run":   rv.FirstRun(),
	})

	return &Relay{
		cfg: cfg,
		query: domain.AppQuery{
			AppID:     cfg.AppID,
			MaxPages:  cfg.MaxPages,
			Countries: countries,
		},
		notify: domain.NotificationConfig{
			Endpoint: cfg.SlackEndpoint,
			Channel:  cfg.SlackChannel,
			Username: cfg.SlackUsername,
			IconURL:  cfg.SlackIconURL,
		},
		reviewer: rv,
		mirrors:  mirrors,
		metrics:  rec,
		interval: cfg.RunInterval,
		log:      log,
	}, nil
}

func loadCountries(cfg *config.Config) (domain.Countries, error) {
	switch {
	case cfg.CountriesFile != "":
		return feed.LoadCountries(cfg.CountriesFile)
	case cfg.Countries != "":
		return feed.ParseCountries(cfg.Countries)
	default:
		return domain.DefaultCountries(), nil
	}
}

// buildMirrors loads the optional publishers file. No file means no mirrors.
func buildMirrors(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Run performs one pass, then keeps running on the interval until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	if r == nil || r.reviewer == nil {
		return fmt.Errorf("relay is not initialized")
	}

	err := r.runOnce(ctx)
	if r.interval <= 0 {
		return err
	}
	if err != nil {
		r.log.ErrorObj("initial run failed", "error", err)
	}

	r.log.InfoObj("relay loop starting", "relay_state", map[string]any{
		"app_id":       r.query.AppID,
		"countries":    r.query.Countries.Codes(),
		"mirrors":      r.mirrors.Size(),
		"run_interval": r.interval.String(),
	})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("relay loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				r.log.ErrorObj("scheduled run failed", "error", err)
			}
		}
	}
}

// runOnce executes a single reviewer pass and pushes its metrics.
func (r *Relay) runOnce(ctx context.Context) error {
	start := time.Now()
	r.log.InfoObj("run started", "run_meta", map[string]any{
		"app_id":     r.query.AppID,
		"max_pages":  r.query.MaxPages,
		"started_at": start.UTC(),
	})

	sum, err := r.reviewer.Run(ctx, r.query, r.notify)
	r.metrics.ObserveRun(start, err)
	r.pushMetrics(ctx)
	if err != nil {
		return err
	}

	r.log.InfoObj("run completed", "run_meta", map[string]any{
		"app_id":     r.query.AppID,
		"sent":       sum.Sent,
		"suppressed": sum.Suppressed,
		"failed":     sum.Failed,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (r *Relay) pushMetrics(ctx context.Context) {
	if r.cfg.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := r.metrics.Push(pushCtx, r.cfg.PushgatewayURL, metricsJob); err != nil {
		r.log.WarnObj("metrics push failed", "error", err)
	}
}

// Close releases the store and the mirror clients.
func (r *Relay) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.reviewer.Close(), r.mirrors.Close())
}
