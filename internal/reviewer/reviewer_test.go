package reviewer

import (
	"context"
	"errors"
	"testing"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/internal/storage"
	"github.com/samvad-hq/samvad-review-relay/pkg/feed"
	"github.com/samvad-hq/samvad-review-relay/pkg/slack"
	"golang.org/x/time/rate"
)

func newTestReviewer(fetcher PageFetcher, store storage.Store) *Reviewer {
	return New(fetcher, openerFor(store), WithRateLimit(rate.Inf), WithConcurrency(4))
}

func TestRunDeliversNewReview(t *testing.T) {
	hook := newWebhook(t)
	fetcher := newFakeFetcher()
	fetcher.set("us", 1, feed.Page{App: appMeta(), Entries: []feed.Entry{entry("42", "5")}})
	store := newMemStore(false)

	r := newTestReviewer(fetcher, store)
	sum, err := r.Run(context.Background(), usOnly(1), domain.NotificationConfig{Endpoint: hook.srv.URL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 1 {
		t.Fatalf("expected one review sent, got %+v", sum)
	}
	msgs := hook.received()
	if len(msgs) != 1 || msgs[0].Attachments[0].Color != "good" {
		t.Fatalf("unexpected webhook posts %+v", msgs)
	}
	if !store.has("r42") {
		t.Fatalf("review 42 should be seen after the run")
	}

	// A second run over the same feed is a no-op.
	sum, err = r.Run(context.Background(), usOnly(1), domain.NotificationConfig{Endpoint: hook.srv.URL})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum != (Summary{}) || len(hook.received()) != 1 {
		t.Fatalf("second run must not resend, summary %+v posts %d", sum, len(hook.received()))
	}
}

func TestRunFirstTimeSeedsThenNotifies(t *testing.T) {
	hook := newWebhook(t)
	fetcher := newFakeFetcher()
	fetcher.set("us", 1, feed.Page{Entries: []feed.Entry{entry("1", "5"), entry("2", "4")}})
	store := newMemStore(true)

	r := newTestReviewer(fetcher, store)
	if !r.FirstRun() {
		t.Fatalf("reviewer should start in first-run mode")
	}
	notify := domain.NotificationConfig{Endpoint: hook.srv.URL}

	sum, err := r.Run(context.Background(), usOnly(1), notify)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum != (Summary{Suppressed: 2}) || len(hook.received()) != 0 {
		t.Fatalf("first run must only seed, summary %+v posts %d", sum, len(hook.received()))
	}

	fetcher.set("us", 1, feed.Page{Entries: []feed.Entry{entry("3", "1"), entry("1", "5"), entry("2", "4")}})
	sum, err = r.Run(context.Background(), usOnly(1), notify)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum != (Summary{Sent: 1}) {
		t.Fatalf("second run should notify the new review only, got %+v", sum)
	}
	if msgs := hook.received(); len(msgs) != 1 || msgs[0].Attachments[0].Color != "danger" {
		t.Fatalf("unexpected posts %+v", msgs)
	}
}

func TestRunRetriesFailedSendNextRun(t *testing.T) {
	hook := newWebhook(t)
	failing := true
	hook.fail = func(slack.Message) bool {
		hook.mu.Lock()
		defer hook.mu.Unlock()
		return failing
	}
	fetcher := newFakeFetcher()
	fetcher.set("us", 1, feed.Page{Entries: []feed.Entry{entry("5", "3")}})
	store := newMemStore(false)
	r := newTestReviewer(fetcher, store)
	notify := domain.NotificationConfig{Endpoint: hook.srv.URL}

	sum, err := r.Run(context.Background(), usOnly(1), notify)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 || store.has("r5") {
		t.Fatalf("failed send must leave review unseen, summary %+v", sum)
	}

	hook.mu.Lock()
	failing = false
	hook.mu.Unlock()

	sum, err = r.Run(context.Background(), usOnly(1), notify)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum.Sent != 1 || !store.has("r5") {
		t.Fatalf("review should be retried and marked, summary %+v", sum)
	}
}

func TestRunMissingEndpoint(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("us", 1, feed.Page{Entries: []feed.Entry{entry("1", "5")}})
	store := newMemStore(true)
	r := newTestReviewer(fetcher, store)

	_, err := r.Run(context.Background(), usOnly(1), domain.NotificationConfig{})
	if !errors.Is(err, ErrMissingEndpoint) {
		t.Fatalf("expected ErrMissingEndpoint, got %v", err)
	}
	if store.markings != 0 {
		t.Fatalf("no seen-state writes expected")
	}
	if !r.FirstRun() {
		t.Fatalf("an aborted run must not consume the first-run flag")
	}
}

func TestRunRejectsInvalidQuery(t *testing.T) {
	r := newTestReviewer(newFakeFetcher(), newMemStore(false))
	_, err := r.Run(context.Background(), domain.AppQuery{AppID: -1}, domain.NotificationConfig{Endpoint: "http://unused"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "app_id" {
		t.Fatalf("expected app_id ConfigError, got %v", err)
	}
}

func TestStorageInitErrorIsDeferred(t *testing.T) {
	fetcher := newFakeFetcher()
	r := New(fetcher, func() (storage.Store, error) { return nil, errors.New("permission denied") })

	log := &recordLogger{}
	r.SetLogger(log)
	r.SetLogger(log)
	if n := log.count("error", "seen-state storage unavailable"); n != 1 {
		t.Fatalf("pending storage error should be logged exactly once, got %d", n)
	}

	_, err := r.Run(context.Background(), usOnly(1), domain.NotificationConfig{Endpoint: "http://unused"})
	var initErr *StorageInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected *StorageInitError, got %v", err)
	}
	if fetcher.callCount() != 0 {
		t.Fatalf("no fetches expected without storage")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRunWithBoltStore(t *testing.T) {
	hook := newWebhook(t)
	fetcher := newFakeFetcher()
	fetcher.set("us", 1, feed.Page{Entries: []feed.Entry{entry("42", "5")}})
	dir := t.TempDir()
	open := func() (storage.Store, error) { return storage.NewStore(storage.TypeBBolt, dir, storage.Options{}) }
	notify := domain.NotificationConfig{Endpoint: hook.srv.URL}

	first := New(fetcher, open, WithRateLimit(rate.Inf))
	if !first.FirstRun() {
		t.Fatalf("missing store file should mean first run")
	}
	if _, err := first.Run(context.Background(), usOnly(1), notify); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fetcher.set("us", 1, feed.Page{Entries: []feed.Entry{entry("43", "5"), entry("42", "5")}})
	second := New(fetcher, open, WithRateLimit(rate.Inf))
	defer second.Close()
	if second.FirstRun() {
		t.Fatalf("existing store file must not be a first run")
	}
	sum, err := second.Run(context.Background(), usOnly(1), notify)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 1 || len(hook.received()) != 1 {
		t.Fatalf("only review 43 should be sent, summary %+v", sum)
	}
}
