package reviewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/internal/logger"
	"github.com/samvad-hq/samvad-review-relay/internal/metrics"
	"github.com/samvad-hq/samvad-review-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-review-relay/pkg/publishers"
	"github.com/samvad-hq/samvad-review-relay/pkg/slack"
	"golang.org/x/time/rate"
)

const (
	DefaultUsername = "Review Relay"
	// DefaultRate is one webhook post per second.
	DefaultRate rate.Limit = 1
)

// Summary counts the outcome of one dispatch.
type Summary struct {
	Sent       int
	Suppressed int
	Failed     int
}

// Dispatcher delivers reviews to the webhook one at a time and records them as seen.
type Dispatcher struct {
	client  httpclient.Client
	mirrors *publishers.Fanout
	// mirrorTimeout bounds one review's publish across all mirrors.
	mirrorTimeout time.Duration
	seen          *SeenStore
	limiter       *rate.Limiter
	log           logger.Logger
	metrics       *metrics.Recorder
}

// NewDispatcher builds a dispatcher. mirrors may be nil.
func NewDispatcher(client httpclient.Client, seen *SeenStore, limit rate.Limit, mirrors *publishers.Fanout, log logger.Logger, rec *metrics.Recorder) *Dispatcher {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.DefaultTimeout)
	}
	if limit <= 0 {
		limit = DefaultRate
	}
	return &Dispatcher{
		client:        client,
		mirrors:       mirrors,
		mirrorTimeout: httpclient.DefaultTimeout,
		seen:          seen,
		limiter:       rate.NewLimiter(limit, 1),
		log:           logger.Ensure(log),
		metrics:       rec,
	}
}

// Dispatch posts each review in order. On a first run nothing is posted and every
// review is only marked seen. A failed post is logged and leaves the review unseen
// so the next run retries it. Only a missing endpoint or a cancelled context
// returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, reviews []domain.Review, notify domain.NotificationConfig, firstTime bool) (Summary, error) {
	var sum Summary
	if len(reviews) == 0 {
		return sum, nil
	}

	endpoint := strings.TrimSpace(notify.Endpoint)
	if endpoint == "" {
		return sum, &ConfigError{Field: "endpoint", Err: ErrMissingEndpoint}
	}

	if firstTime {
		for _, r := range reviews {
			d.markSeen(r)
			sum.Suppressed++
			d.metrics.ObserveNotification(metrics.NotifySuppressed)
		}
		d.log.InfoObj("first run: reviews recorded without notifications", "dispatch_summary", sum)
		return sum, nil
	}

	webhook, err := publishers.NewSlackPublisher("webhook", endpoint, "", d.client, d.log)
	if err != nil {
		return sum, &ConfigError{Field: "endpoint", Err: err}
	}
	identity := identityFor(notify)

	for _, r := range reviews {
		if err := d.limiter.Wait(ctx); err != nil {
			return sum, fmt.Errorf("dispatch interrupted: %w", err)
		}

		evt := publishers.NewEvent(r, slack.NewMessage(identity, slack.Format(r)))
		if err := webhook.Publish(ctx, evt); err != nil {
			sendErr := &SendError{ReviewID: r.ID, Err: err}
			d.log.ErrorObj("review notification failed", "send_error", map[string]any{
				"review_id": r.ID,
				"error":     sendErr.Error(),
			})
			sum.Failed++
			d.metrics.ObserveNotification(metrics.NotifyFailed)
			continue
		}

		d.markSeen(r)
		sum.Sent++
		d.metrics.ObserveNotification(metrics.NotifySent)
		d.mirror(ctx, evt)
	}
	return sum, nil
}

// mirror copies a delivered, already-marked review to the extra sinks within
// mirrorTimeout. Their failures are only logged.
func (d *Dispatcher) mirror(ctx context.Context, evt publishers.Event) {
	if d.mirrors.Size() == 0 {
		return
	}
	mctx, cancel := context.WithTimeout(ctx, d.mirrorTimeout)
	defer cancel()
	if _, err := d.mirrors.Publish(mctx, evt); err != nil {
		d.log.WarnObj("mirror publish failed", "mirror_error", map[string]any{
			"review_id": evt.Review.ID,
			"error":     err.Error(),
		})
	}
}

func (d *Dispatcher) markSeen(r domain.Review) {
	if err := d.seen.MarkSeen(r.ID); err != nil {
		d.log.ErrorObj("mark review seen failed", "seen_write_error", map[string]any{
			"review_id": r.ID,
			"error":     err.Error(),
		})
	}
}

func identityFor(notify domain.NotificationConfig) slack.Identity {
	username := strings.TrimSpace(notify.Username)
	if username == "" {
		username = DefaultUsername
	}
	return slack.Identity{
		Username: username,
		IconURL:  strings.TrimSpace(notify.IconURL),
		Channel:  strings.TrimSpace(notify.Channel),
	}
}
