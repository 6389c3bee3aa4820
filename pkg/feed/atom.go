package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
)

const itunesNamespace = "im"

// decodeAtom turns the XML variant of the feed into a Page. Review fields that the
// JSON variant carries as "im:*" keys arrive as namespaced extension elements.
func decodeAtom(body []byte, page *Page) error {
	parser := &atom.Parser{}
	doc, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("decode atom feed: %w", err)
	}

	for _, e := range doc.Entries {
		if e == nil {
			continue
		}
		im := e.Extensions[itunesNamespace]

		name, hasName := firstExt(im, "name")
		images := im["image"]
		if hasName && len(images) > 0 {
			if page.App == nil {
				page.App = &AppMeta{
					Name:  name,
					Image: strings.TrimSpace(images[len(images)-1].Value),
					Link:  atomLink(e.Links),
				}
			}
			continue
		}

		entry := Entry{
			ID:    strings.TrimSpace(e.ID),
			Title: e.Title,
		}
		if e.Content != nil {
			entry.Content = e.Content.Value
			if isMarkup(e.Content.Type) {
				entry.Content = htmlToText(entry.Content)
			}
		}
		if len(e.Authors) > 0 && e.Authors[0] != nil {
			entry.Author = domain.Author{URI: e.Authors[0].URI, Name: e.Authors[0].Name}
		}
		entry.Rating, _ = firstExt(im, "rating")
		entry.Version, _ = firstExt(im, "version")

		page.Entries = append(page.Entries, entry)
	}
	return nil
}

func firstExt(exts map[string][]ext.Extension, name string) (string, bool) {
	values := exts[name]
	if len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0].Value), true
}

func atomLink(links []*atom.Link) string {
	for _, l := range links {
		if l != nil && (l.Rel == "" || l.Rel == "alternate") && l.Href != "" {
			return l.Href
		}
	}
	return ""
}
