package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samvad-hq/samvad-review-relay/pkg/httpclient"
)

const (
	FormatJSON = "json"
	FormatAtom = "atom"

	DefaultBaseURL = "https://itunes.apple.com"
)

// HTTPClient aliases the shared httpclient.Client interface for clarity within feed.
type HTTPClient = httpclient.Client

type decodeFn func(body []byte, page *Page) error

// decoders maps a feed format to its decoder and the URL suffix that selects it.
var decoders = map[string]struct {
	suffix string
	decode decodeFn
}{
	FormatJSON: {suffix: "json", decode: decodeJSON},
	FormatAtom: {suffix: "xml", decode: decodeAtom},
}

// Options configures a Fetcher.
type Options struct {
	BaseURL string
	Format  string
	Headers map[string]string
}

// Fetcher retrieves one page of one storefront's review feed.
type Fetcher struct {
	client  HTTPClient
	baseURL string
	format  string
	headers map[string]string
}

// NewFetcher builds a Fetcher. A nil client gets the default resty client.
func NewFetcher(client HTTPClient, opts Options) (*Fetcher, error) {
	if client == nil {
		client = DefaultHTTPClient()
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = FormatJSON
	}
	if _, ok := decoders[format]; !ok {
		return nil, fmt.Errorf("unsupported feed format %q", opts.Format)
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Fetcher{client: client, baseURL: base, format: format, headers: opts.Headers}, nil
}

// DefaultHTTPClient returns the resty client tuned for feed reads: 20s total, 10s connect,
// two retries on throttling and server errors.
func DefaultHTTPClient() HTTPClient {
	return httpclient.NewRestyClientWithOptions(httpclient.Options{
		Timeout:        httpclient.DefaultTimeout,
		ConnectTimeout: httpclient.DefaultConnectTimeout,
		RetryCount:     2,
	})
}

// PageURL builds the feed URL for a storefront page, most recent reviews first.
func (f *Fetcher) PageURL(country string, appID int64, page int) string {
	return fmt.Sprintf("%s/%s/rss/customerreviews/page=%d/id=%d/sortBy=mostRecent/%s",
		f.baseURL, country, page, appID, decoders[f.format].suffix)
}

// FetchPage fetches and decodes one page. Every failure is returned as *FetchError.
// A page without entries is a valid, empty result.
func (f *Fetcher) FetchPage(ctx context.Context, country string, appID int64, page int) (Page, error) {
	out := Page{Country: country, Number: page}
	fail := func(err error) (Page, error) {
		return out, &FetchError{Country: country, Page: page, Err: err}
	}

	resp, err := f.client.Get(ctx, f.PageURL(country, appID, page), f.headers)
	if err != nil {
		return fail(fmt.Errorf("http get: %w", err))
	}
	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return fail(fmt.Errorf("status %d body: %s", resp.StatusCode(), responseSnippet(body)))
	}

	if err := decoders[f.format].decode(body, &out); err != nil {
		return fail(err)
	}
	return out, nil
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
