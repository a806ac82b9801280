package domain

import (
	"strings"
	"time"
)

// DisplayLayout is the datetime format shown on the index page.
const DisplayLayout = "2006-01-02 15:04"

// Entry is the transient view of one persisted bookmark, built while
// generating the index page and discarded afterwards.
type Entry struct {
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Domain          string    `json:"domain"`
	Datetime        time.Time `json:"datetime"`
	DatetimeDisplay string    `json:"datetime_display"`
	Tags            []string  `json:"tags"`
	Source          string    `json:"source"`

	// Path is the file the entry was read from.
	Path string `json:"-"`

	// DetailsPath is the link to the persisted file, relative to the page
	// that embeds the entry.
	DetailsPath string `json:"details_path"`
}

// HasTag reports whether the entry carries tag (exact match).
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DisplayDomain returns the URL host, lower-cased, without a leading "www.".
// It returns "" when the URL has no usable host.
func DisplayDomain(rawURL string) string {
	return strings.TrimPrefix(strings.ToLower(urlHost(rawURL)), "www.")
}
