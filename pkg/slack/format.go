package slack

import (
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
)

const (
	maxRating   = 5
	filledGlyph = "★"
	emptyGlyph  = "☆"

	ColorGood    = "good"
	ColorWarning = "warning"
	ColorDanger  = "danger"
)

// Glyphs renders a rating as exactly five stars, filled up to rating.
func Glyphs(rating int) string {
	filled := min(max(rating, 0), maxRating)
	return strings.Repeat(filledGlyph, filled) + strings.Repeat(emptyGlyph, maxRating-filled)
}

// Color maps a rating to the attachment color.
func Color(rating int) string {
	switch {
	case rating >= 4:
		return ColorGood
	case rating == 3:
		return ColorWarning
	default:
		return ColorDanger
	}
}

// Format converts a review into an attachment. Title and content pass through verbatim.
func Format(r domain.Review) Attachment {
	glyphs := Glyphs(r.Rating)
	return Attachment{
		Fallback:   fmt.Sprintf("%s %s — %s", glyphs, r.Title, r.Content),
		Color:      Color(r.Rating),
		AuthorName: r.Application.Name,
		AuthorIcon: r.Application.Image,
		AuthorLink: r.Application.Link,
		Fields: []Field{
			{Title: r.Title, Value: r.Content},
			{Title: "Rating", Value: glyphs, Short: true},
			{Title: "Author", Value: authorLink(r.Author), Short: true},
			{Title: "Version", Value: r.Application.Version, Short: true},
			{Title: "Country", Value: r.Country, Short: true},
		},
	}
}

func authorLink(a domain.Author) string {
	if a.URI == "" {
		return a.Name
	}
	return fmt.Sprintf("<%s|%s>", a.URI, a.Name)
}
