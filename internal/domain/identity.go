package domain

import (
	"fmt"
	"strings"
)

// DefaultSubject replaces a missing or blank subject.
const DefaultSubject = "Untitled"

// NormalizeSubject turns a subject into the slug used inside bookmark IDs:
// lower-cased, trimmed, spaces and slashes replaced with "-". Everything
// else, including non-ASCII text, is kept as is.
func NormalizeSubject(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ReplaceAll(s, "/", "-")
}

// BookmarkID builds "{datePart}-{normalized subject}-{item}".
func BookmarkID(datePart, subject string, item int) string {
	return fmt.Sprintf("%s-%s-%d", datePart, NormalizeSubject(subject), item)
}

// ItemSubject returns the subject for link item of total. Single-link
// messages keep their subject untouched.
func ItemSubject(subject string, item, total int) string {
	if total == 1 {
		return subject
	}
	return fmt.Sprintf("%s (%d/%d)", subject, item, total)
}
