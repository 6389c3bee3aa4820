package publishers

import (
	"context"
	"errors"
	"testing"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
	"github.com/samvad-hq/samvad-review-relay/pkg/slack"
)

type stubPublisher struct {
	id     string
	typ    string
	err    error
	calls  int
	closed bool
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}
func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}

func sampleEvent() Event {
	review := domain.Review{
		ID:      42,
		AppID:   123,
		Author:  domain.Author{Name: "Ann", URI: "https://example.com/ann"},
		Title:   "Great",
		Content: "Love it",
		Rating:  5,
		Country: "US",
		Application: domain.Application{
			Name:    "MyApp",
			Image:   "https://example.com/icon.png",
			Version: "1.2",
		},
	}
	msg := slack.NewMessage(slack.Identity{Username: "Review Relay"}, slack.Format(review))
	return NewEvent(review, msg)
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	ok := &stubPublisher{id: "ok", typ: "http"}
	bad := &stubPublisher{id: "bad", typ: "http", err: errors.New("failed")}
	fanout := NewFanout([]Publisher{ok, nil, bad})

	if fanout.Size() != 2 {
		t.Fatalf("nil publishers should be dropped, size = %d", fanout.Size())
	}

	count, err := fanout.Publish(context.Background(), sampleEvent())
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("every publisher should be tried once, got ok=%d bad=%d", ok.calls, bad.calls)
	}
}

func TestFanoutWithoutPublishersFails(t *testing.T) {
	if _, err := NewFanout(nil).Publish(context.Background(), sampleEvent()); err == nil {
		t.Fatalf("expected error with no publishers")
	}
}

func TestFanoutCloseClosesPublishers(t *testing.T) {
	p := &stubPublisher{id: "p", typ: "http"}
	if err := NewFanout([]Publisher{p}).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !p.closed {
		t.Fatalf("publisher was not closed")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
		{ID: "slack", Type: TypeSlack, Slack: &SlackPublisherConfig{WebhookURL: "https://hooks.example.com/x"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 2 {
		t.Fatalf("expected 2 publishers, got %d", len(pubs))
	}
	if pubs[1].Type() != TypeSlack {
		t.Fatalf("second publisher type = %s", pubs[1].Type())
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{
		{ID: "x", Type: "carrier-pigeon"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown publisher type")
	}
}
