package domain

import (
	"fmt"
	"strconv"
)

// Domain contains core models shared by the fetch and delivery sides.

// Author identifies the person who wrote a review.
type Author struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// Application is the per-page app metadata merged into every review of that page.
type Application struct {
	Name    string `json:"name"`
	Image   string `json:"image"`
	Link    string `json:"link,omitempty"`
	Version string `json:"version"`
}

// Review is one customer review collected from a storefront feed.
type Review struct {
	ID          int64       `json:"id"`
	AppID       int64       `json:"app_id"`
	Author      Author      `json:"author"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Rating      int         `json:"rating"`
	Country     string      `json:"country"`
	Application Application `json:"application"`
}

// Key returns the seen-state key for the review.
func (r Review) Key() string { return ReviewKey(r.ID) }

// ReviewKey builds the seen-state key for a review id.
func ReviewKey(id int64) string { return "r" + strconv.FormatInt(id, 10) }

// Country is one storefront: its code in the feed URL and its display name.
type Country struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Countries keeps storefronts in the order they were configured.
type Countries []Country

// DefaultCountries is used when a query names no storefronts.
func DefaultCountries() Countries {
	return Countries{
		{Code: "ru", Name: "Russia"},
		{Code: "us", Name: "US"},
		{Code: "ua", Name: "Ukraine"},
		{Code: "by", Name: "Belarus"},
	}
}

// Codes returns the country codes in order.
func (c Countries) Codes() []string {
	out := make([]string, 0, len(c))
	for _, country := range c {
		out = append(out, country.Code)
	}
	return out
}

const DefaultMaxPages = 3

// AppQuery is the configuration of one run.
type AppQuery struct {
	AppID     int64
	MaxPages  int
	Countries Countries
}

// Normalize fills in defaults: an unset page depth becomes DefaultMaxPages, a
// negative one clamps to 1, and no countries means DefaultCountries.
func (q AppQuery) Normalize() (AppQuery, error) {
	if q.AppID <= 0 {
		return q, fmt.Errorf("app id must be positive, got %d", q.AppID)
	}
	switch {
	case q.MaxPages == 0:
		q.MaxPages = DefaultMaxPages
	case q.MaxPages < 0:
		q.MaxPages = 1
	}
	if len(q.Countries) == 0 {
		q.Countries = DefaultCountries()
	}
	return q, nil
}

// NotificationConfig describes the chat webhook reviews are delivered to.
type NotificationConfig struct {
	Endpoint string `json:"endpoint"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}
