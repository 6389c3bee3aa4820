// Package feed fetches and decodes pages of the App Store customer-review feed.
package feed

import (
	"fmt"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
)

// Page is one decoded page of one storefront's review feed.
type Page struct {
	Country string
	Number  int
	// App is the page's app-metadata record, nil when the page carried none.
	App     *AppMeta
	Entries []Entry
}

// Empty reports whether the page carried no review entries.
func (p Page) Empty() bool { return len(p.Entries) == 0 }

// AppMeta is the synthetic first entry of a page describing the application.
type AppMeta struct {
	Name  string
	Image string
	Link  string
}

// Entry is a raw review entry. Numeric fields stay textual until the caller parses them.
type Entry struct {
	ID      string
	Author  domain.Author
	Title   string
	Content string
	Rating  string
	Version string
}

// FetchError reports a failed page: transport, status or decode.
type FetchError struct {
	Country string
	Page    int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Country, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
