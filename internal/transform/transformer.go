// Package transform turns a fetched message into one bookmark per link.
package transform

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	mmail "github.com/MrSnakeDoc/mailmarks/internal/mail"
)

// ErrNilMessage is returned when Transform is called without a message.
var ErrNilMessage = errors.New("nil message")

// Transformer converts messages into bookmarks.
type Transformer struct {
	now func() time.Time
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithClock injects the clock used when the Date header cannot be parsed.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a Transformer using time.Now unless a clock is injected.
func New(opts ...Option) *Transformer {
	t := &Transformer{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform extracts the links of msg and returns one bookmark per link.
// A message without links yields an empty slice.
func (t *Transformer) Transform(msg *mmail.Message) ([]domain.Bookmark, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	subject := msg.Header("Subject")
	if strings.TrimSpace(subject) == "" {
		subject = domain.DefaultSubject
	}
	from := msg.Header("From")

	body, err := msg.PlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
	}

	links := domain.ExtractLinks(strings.TrimSpace(body))
	if len(links) == 0 {
		return []domain.Bookmark{}, nil
	}

	when, resolution := ResolveDate(msg.Header("Date"), t.now)
	datetime := when.Format(domain.DatetimeLayout)
	datePart := datetime[:10]

	total := len(links)
	bookmarks := make([]domain.Bookmark, 0, total)
	for i, link := range links {
		item := i + 1
		bookmarks = append(bookmarks, domain.Bookmark{
			ID:             domain.BookmarkID(datePart, subject, item),
			Subject:        domain.ItemSubject(subject, item, total),
			Datetime:       datetime,
			URL:            link,
			Source:         domain.SourceEmail,
			Item:           item,
			Tags:           domain.DeriveTags(link, nil),
			From:           from,
			Total:          total,
			Time:           when,
			DateResolution: resolution,
		})
	}

	return bookmarks, nil
}

// ResolveDate parses an RFC 2822 date header. When the header is missing or
// malformed it returns now() in UTC and DateDefaulted.
func ResolveDate(header string, now func() time.Time) (time.Time, domain.DateResolution) {
	if header = strings.TrimSpace(header); header != "" {
		if parsed, err := mail.ParseDate(header); err == nil {
			return parsed, domain.DateParsed
		}
	}
	return now().UTC().Truncate(time.Second), domain.DateDefaulted
}
