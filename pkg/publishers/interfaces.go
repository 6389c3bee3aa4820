package publishers

import (
	"context"
	"strconv"
)

// Publisher sends review events to a downstream sink (webhook, SQS, SNS, Pub/Sub).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }
