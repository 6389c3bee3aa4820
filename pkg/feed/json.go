package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
)

// oneOrMany decodes a JSON value that the feed emits as a bare object when there is
// a single element and as an array otherwise.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}

type label struct {
	Label string `json:"label"`
}

type jsonLink struct {
	Attributes struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"attributes"`
}

type jsonEntry struct {
	ID     label `json:"id"`
	Author struct {
		URI  label `json:"uri"`
		Name label `json:"name"`
	} `json:"author"`
	Title   label `json:"title"`
	Content label `json:"content"`
	Rating  label `json:"im:rating"`
	Version label `json:"im:version"`

	Name  *label              `json:"im:name"`
	Image oneOrMany[label]    `json:"im:image"`
	Link  oneOrMany[jsonLink] `json:"link"`
}

type jsonDocument struct {
	Feed *struct {
		Entry oneOrMany[jsonEntry] `json:"entry"`
	} `json:"feed"`
}

// decodeJSON turns a JSON feed body into a Page. A body without feed.entry is an empty page.
func decodeJSON(body []byte, page *Page) error {
	var doc jsonDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode json feed: %w", err)
	}
	if doc.Feed == nil {
		return nil
	}

	for _, e := range doc.Feed.Entry {
		if e.Name != nil && len(e.Image) > 0 {
			if page.App == nil {
				page.App = &AppMeta{
					Name:  e.Name.Label,
					Image: e.Image[len(e.Image)-1].Label,
					Link:  pickLink(e.Link),
				}
			}
			continue
		}

		page.Entries = append(page.Entries, Entry{
			ID:      strings.TrimSpace(e.ID.Label),
			Author:  domain.Author{URI: e.Author.URI.Label, Name: e.Author.Name.Label},
			Title:   e.Title.Label,
			Content: e.Content.Label,
			Rating:  strings.TrimSpace(e.Rating.Label),
			Version: e.Version.Label,
		})
	}
	return nil
}

// pickLink prefers the alternate link, the store page of the app.
func pickLink(links []jsonLink) string {
	for _, l := range links {
		if l.Attributes.Rel == "alternate" && l.Attributes.Href != "" {
			return l.Attributes.Href
		}
	}
	for _, l := range links {
		if l.Attributes.Href != "" {
			return l.Attributes.Href
		}
	}
	return ""
}
