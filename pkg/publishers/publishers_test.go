package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadRegistryEnabledFilter(t *testing.T) {
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: mirror
    type: slack
    slack:
      url: " https://hooks.example.com/T/B/X "
      channel: "#android"
  - id: queue
    type: sqs
    sqs:
      uri: https://sqs.us-east-1.amazonaws.com/1/reviews
      aws:
        region: us-east-1
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "mirror" || enabled[1].ID != "queue" {
		t.Fatalf("expected mirror and queue enabled, got %#v", enabled)
	}

	mirror, ok := reg.ByID("mirror")
	if !ok {
		t.Fatalf("mirror not found")
	}
	if mirror.Slack.WebhookURL != "https://hooks.example.com/T/B/X" {
		t.Fatalf("url not trimmed: %q", mirror.Slack.WebhookURL)
	}
	if mirror.Slack.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("timeout default = %d", mirror.Slack.TimeoutSeconds)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers":[{"id":"ps","type":"pubsub","pubsub":{"project_id":"p","topic":"t"}}]}`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := reg.All(); len(got) != 1 || got[0].PubSub.Topic != "t" {
		t.Fatalf("unexpected publishers: %#v", got)
	}
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: a
    type: http
    http: {url: https://example.com}
  - id: a
    type: http
    http: {url: https://example.com/2}
`)
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  PublisherConfig
	}{
		{"missing id", PublisherConfig{Type: TypeHTTP}},
		{"missing http block", PublisherConfig{ID: "h1", Type: TypeHTTP}},
		{"slack without url", PublisherConfig{ID: "s", Type: TypeSlack, Slack: &SlackPublisherConfig{}}},
		{"sqs without region", PublisherConfig{ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "u"}}},
		{"sns without topic", PublisherConfig{ID: "n", Type: TypeSNS, SNS: &SNSPublisherConfig{}}},
		{"pubsub without topic", PublisherConfig{ID: "p", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validatePublisherConfig(tc.cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
