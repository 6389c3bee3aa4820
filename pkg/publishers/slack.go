package publishers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-review-relay/internal/logger"
	"github.com/samvad-hq/samvad-review-relay/pkg/httpclient"
)

// slackPublisher posts the formatted message of an event to an incoming webhook.
type slackPublisher struct {
	id       string
	endpoint string
	channel  string
	client   httpclient.Client
	log      logger.Logger
}

// NewSlackPublisher returns a webhook publisher. A non-empty channel overrides
// the channel carried by each message.
func NewSlackPublisher(id, endpoint, channel string, client httpclient.Client, log logger.Logger) (Publisher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("slack webhook endpoint is required")
	}
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.DefaultTimeout)
	}
	return &slackPublisher{
		id:       id,
		endpoint: endpoint,
		channel:  strings.TrimSpace(channel),
		client:   client,
		log:      logger.Ensure(log),
	}, nil
}

func newSlackPublisherFromConfig(_ context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.Slack == nil {
		return nil, fmt.Errorf("publisher %q missing slack configuration", cfg.ID)
	}
	client := httpclient.NewRestyClient(time.Duration(cfg.Slack.TimeoutSeconds) * time.Second)
	return NewSlackPublisher(cfg.ID, cfg.Slack.WebhookURL, cfg.Slack.Channel, client, log)
}

func (s *slackPublisher) ID() string   { return s.id }
func (s *slackPublisher) Type() string { return TypeSlack }

// Publish posts evt.Message. Any non-2xx answer is an error.
func (s *slackPublisher) Publish(ctx context.Context, evt Event) error {
	msg := evt.Message
	if s.channel != "" {
		msg.Channel = s.channel
	}

	resp, err := s.client.PostJSON(ctx, s.endpoint, msg, nil)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return fmt.Errorf("slack webhook status %d: %s", code, readBodySnippet(resp.Body()))
	}
	s.log.DebugObj("slack publisher delivered review", "publisher_slack_delivery", map[string]any{
		"publisher_id": s.id,
		"review_id":    evt.Review.ID,
	})
	return nil
}
