package domain

import "time"

// SourceEmail is the only source value produced by the ingestion pipeline.
const SourceEmail = "email"

// DatetimeLayout is the ISO-8601 layout written into the datetime field.
const DatetimeLayout = "2006-01-02T15:04:05-07:00"

// DateResolution tells whether a bookmark datetime came from the message
// header or was substituted with the capture time.
type DateResolution int

const (
	// DateParsed means the Date header was parsed successfully.
	DateParsed DateResolution = iota
	// DateDefaulted means the header was missing or malformed and the
	// capture time was used instead.
	DateDefaulted
)

func (r DateResolution) String() string {
	switch r {
	case DateParsed:
		return "parsed"
	case DateDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// Bookmark is one extracted link with the metadata of the message it came
// from. Each bookmark is persisted as its own markdown file.
//
// Field order is the front-matter key order.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is "{date}-{normalized-subject}-{item}".
	// It is also the file name (without extension).
	ID string `yaml:"id"`

	// Subject is the message subject, suffixed with "(i/n)" when the
	// message yielded more than one link.
	Subject string `yaml:"subject"`

	// Datetime is the resolved message date, ISO-8601.
	Datetime string `yaml:"datetime"`

	// URL is the extracted hyperlink.
	URL string `yaml:"url"`

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	// Source is always SourceEmail for ingested bookmarks.
	Source string `yaml:"source"`

	// Item is the 1-based position of the link inside its message.
	Item int `yaml:"item"`

	// Tags holds user tags followed by the derived root-domain tag.
	Tags []string `yaml:"tags"`

	// From is the raw sender header value.
	From string `yaml:"from"`

	// ─────────────────────────────
	// Not persisted
	// ─────────────────────────────

	// Total is the number of links found in the parent message.
	Total int `yaml:"-"`

	// Time is the parsed form of Datetime.
	Time time.Time `yaml:"-"`

	// DateResolution records whether Time came from the Date header.
	DateResolution DateResolution `yaml:"-"`
}
