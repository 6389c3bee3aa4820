package reviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/samvad-hq/samvad-review-relay/internal/storage"
	"github.com/samvad-hq/samvad-review-relay/pkg/feed"
	"github.com/samvad-hq/samvad-review-relay/pkg/slack"
)

// memStore is an in-memory storage.Store.
type memStore struct {
	mu       sync.Mutex
	keys     map[string]bool
	first    bool
	seenErr  error
	markErr  error
	closed   bool
	lookups  int
	markings int
}

func newMemStore(first bool, keys ...string) *memStore {
	s := &memStore{keys: make(map[string]bool), first: first}
	for _, k := range keys {
		s.keys[k] = true
	}
	return s
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memStore) Seen(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.seenErr != nil {
		return false, s.seenErr
	}
	return s.keys[key], nil
}

func (s *memStore) Mark(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markings++
	if s.markErr != nil {
		return s.markErr
	}
	s.keys[key] = true
	return nil
}

func (s *memStore) FirstRun() bool { return s.first }

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key]
}

func openerFor(s storage.Store) StoreOpener {
	return func() (storage.Store, error) { return s, nil }
}

// fakeFetcher serves pages keyed by "country/page". Missing pages are empty.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]feed.Page
	errs  map[string]error
	calls int
	hook  func(country string, page int)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]feed.Page), errs: make(map[string]error)}
}

func pageKey(country string, page int) string { return fmt.Sprintf("%s/%d", country, page) }

func (f *fakeFetcher) set(country string, page int, p feed.Page) {
	p.Country = country
	p.Number = page
	f.pages[pageKey(country, page)] = p
}

func (f *fakeFetcher) fail(country string, page int) {
	f.errs[pageKey(country, page)] = &feed.FetchError{Country: country, Page: page, Err: errors.New("status 503")}
}

func (f *fakeFetcher) FetchPage(_ context.Context, country string, _ int64, page int) (feed.Page, error) {
	f.mu.Lock()
	f.calls++
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(country, page)
	}
	key := pageKey(country, page)
	if err := f.errs[key]; err != nil {
		return feed.Page{}, err
	}
	return f.pages[key], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func appMeta() *feed.AppMeta {
	return &feed.AppMeta{Name: "MyApp", Image: "https://example.com/icon-100.png", Link: "https://apps.example.com/myapp"}
}

func entry(id, rating string) feed.Entry {
	return feed.Entry{
		ID:      id,
		Title:   "Title " + id,
		Content: "Content " + id,
		Rating:  rating,
		Version: "1.2",
	}
}

// webhook records posted messages. fail decides which posts answer 500.
type webhook struct {
	mu       sync.Mutex
	messages []slack.Message
	fail     func(slack.Message) bool
	srv      *httptest.Server
}

func newWebhook(t *testing.T) *webhook {
	t.Helper()
	w := &webhook{}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var msg slack.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode webhook body: %v", err)
			http.Error(rw, "bad body", http.StatusBadRequest)
			return
		}
		w.mu.Lock()
		fail := w.fail
		w.mu.Unlock()
		if fail != nil && fail(msg) {
			http.Error(rw, "boom", http.StatusInternalServerError)
			return
		}
		w.mu.Lock()
		w.messages = append(w.messages, msg)
		w.mu.Unlock()
		_, _ = rw.Write([]byte("ok"))
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *webhook) received() []slack.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]slack.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

type logEntry struct {
	level string
	msg   string
}

// recordLogger keeps every log call.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordLogger) DebugObj(msg, _ string, _ interface{}) { l.add("debug", msg) }
func (l *recordLogger) InfoObj(msg, _ string, _ interface{})  { l.add("info", msg) }
func (l *recordLogger) WarnObj(msg, _ string, _ interface{})  { l.add("warn", msg) }
func (l *recordLogger) ErrorObj(msg, _ string, _ interface{}) { l.add("error", msg) }

func (l *recordLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}
