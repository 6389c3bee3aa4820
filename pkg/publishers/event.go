package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/pkg/slack"
)

// Event is one review on its way to the sinks. Webhook sinks post Message;
// queue and topic sinks publish the JSON form of the event.
type Event struct {
	AppID       int64         `json:"app_id"`
	Review      domain.Review `json:"review"`
	Message     slack.Message `json:"-"`
	CollectedAt time.Time     `json:"collected_at"`
}

// NewEvent constructs an Event for a review and its formatted message.
func NewEvent(review domain.Review, msg slack.Message) Event {
	return Event{
		AppID:       review.AppID,
		Review:      review,
		Message:     msg,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"app_id":    formatInt(e.AppID),
		"review_id": formatInt(e.Review.ID),
		"country":   e.Review.Country,
	}
}
