package reviewer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/samvad-hq/samvad-review-relay/pkg/feed"
)

// ErrMissingEndpoint is wrapped by the ConfigError returned when no webhook is configured.
var ErrMissingEndpoint = errors.New("notification endpoint is required")

// ConfigError aborts a dispatch or run before any side effects.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FetchError reports a failed feed page.
type FetchError = feed.FetchError

// SendError reports a failed notification for one review.
type SendError struct {
	ReviewID int64
	Err      error
}

func (e *SendError) Error() string {
	return "send review " + strconv.FormatInt(e.ReviewID, 10) + ": " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }

// StorageInitError reports that the seen-state store could not be opened.
type StorageInitError struct {
	Err error
}

func (e *StorageInitError) Error() string {
	return fmt.Sprintf("open seen-state storage: %v", e.Err)
}

func (e *StorageInitError) Unwrap() error { return e.Err }
