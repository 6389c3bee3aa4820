package reviewer

import (
	"context"
	"strconv"
	"strings"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/internal/logger"
	"github.com/samvad-hq/samvad-review-relay/internal/metrics"
	"github.com/samvad-hq/samvad-review-relay/pkg/feed"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

// PageFetcher retrieves one page of one storefront's feed.
type PageFetcher interface {
	FetchPage(ctx context.Context, country string, appID int64, page int) (feed.Page, error)
}

// Aggregator collects reviews that are not in the seen-state yet.
type Aggregator struct {
	fetcher     PageFetcher
	seen        *SeenStore
	concurrency int
	log         logger.Logger
	metrics     *metrics.Recorder
}

// NewAggregator builds an aggregator. Concurrency below one uses DefaultConcurrency.
func NewAggregator(fetcher PageFetcher, seen *SeenStore, concurrency int, log logger.Logger, rec *metrics.Recorder) *Aggregator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Aggregator{
		fetcher:     fetcher,
		seen:        seen,
		concurrency: concurrency,
		log:         logger.Ensure(log),
		metrics:     rec,
	}
}

// pageResult is the outcome of one (country, page) fetch.
type pageResult struct {
	country domain.Country
	number  int
	page    feed.Page
	err     error
}

// FetchNewReviews fetches every page of every country and returns the unseen reviews,
// ordered by country, then page, then feed order. Failed pages contribute nothing.
func (a *Aggregator) FetchNewReviews(ctx context.Context, q domain.AppQuery) []domain.Review {
	q, err := q.Normalize()
	if err != nil {
		a.log.ErrorObj("invalid review query", "query_error", err)
		return nil
	}

	results := a.fetchAll(ctx, q)

	var out []domain.Review
	batch := make(map[int64]struct{})
	for _, res := range results {
		for _, r := range a.collect(q.AppID, res) {
			if _, dup := batch[r.ID]; dup {
				continue
			}
			batch[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// fetchAll runs the page fetches with bounded parallelism. Tasks never fail the
// group, so one bad page cannot cancel its siblings.
func (a *Aggregator) fetchAll(ctx context.Context, q domain.AppQuery) []pageResult {
	results := make([]pageResult, len(q.Countries)*q.MaxPages)

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for ci, country := range q.Countries {
		for n := 1; n <= q.MaxPages; n++ {
			idx := ci*q.MaxPages + n - 1
			g.Go(func() error {
				page, err := a.fetcher.FetchPage(ctx, country.Code, q.AppID, n)
				results[idx] = pageResult{country: country, number: n, page: page, err: err}
				return nil
			})
		}
	}
	_ = g.Wait()

	return results
}

// collect turns one page into reviews, skipping the ones already seen.
func (a *Aggregator) collect(appID int64, res pageResult) []domain.Review {
	if res.err != nil {
		a.metrics.ObservePage(res.country.Code, metrics.PageError)
		a.log.ErrorObj("feed page fetch failed", "feed_page_error", map[string]any{
			"country": res.country.Code,
			"page":    res.number,
			"error":   res.err.Error(),
		})
		return nil
	}
	if res.page.Empty() {
		a.metrics.ObservePage(res.country.Code, metrics.PageEmpty)
		a.log.DebugObj("feed page empty", "feed_page", map[string]any{
			"country": res.country.Code,
			"page":    res.number,
		})
		return nil
	}

	a.metrics.ObservePage(res.country.Code, metrics.PageOK)
	a.log.DebugObj("feed page fetched", "feed_page", map[string]any{
		"country": res.country.Code,
		"page":    res.number,
		"entries": len(res.page.Entries),
	})

	var app domain.Application
	if res.page.App != nil {
		app = domain.Application{
			Name:  res.page.App.Name,
			Image: res.page.App.Image,
			Link:  res.page.App.Link,
		}
	}

	out := make([]domain.Review, 0, len(res.page.Entries))
	for _, e := range res.page.Entries {
		id, err := strconv.ParseInt(strings.TrimSpace(e.ID), 10, 64)
		if err != nil {
			a.log.WarnObj("skipping review with invalid id", "feed_entry", map[string]any{
				"country": res.country.Code,
				"page":    res.number,
				"id":      e.ID,
			})
			continue
		}

		seen, err := a.seen.Has(id)
		if err != nil {
			a.log.WarnObj("seen lookup failed; treating review as new", "seen_lookup_error", map[string]any{
				"review_id": id,
				"error":     err.Error(),
			})
		} else if seen {
			continue
		}

		// An unreadable rating is kept as zero; the formatter clamps it.
		rating, _ := strconv.Atoi(strings.TrimSpace(e.Rating))

		application := app
		application.Version = e.Version

		out = append(out, domain.Review{
			ID:          id,
			AppID:       appID,
			Author:      e.Author,
			Title:       e.Title,
			Content:     e.Content,
			Rating:      rating,
			Country:     res.country.Name,
			Application: application,
		})
		a.metrics.ObserveNewReview(res.country.Code)
	}
	return out
}
