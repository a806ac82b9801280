package vault

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoFrontMatter is returned when a file does not start with a "---" line.
	ErrNoFrontMatter = errors.New("no front matter")
	// ErrMissingField is returned when a required front-matter key is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrBadDatetime is returned when the datetime key is absent or unparseable.
	ErrBadDatetime = errors.New("missing or malformed datetime")
)

// frontMatter holds the keys the index reads. Values stay as nodes so a
// loosely typed key cannot fail the whole decode, and a missing key
// (zero Kind) can be told apart from a null one.
type frontMatter struct {
	Subject  yaml.Node `yaml:"subject"`
	Datetime yaml.Node `yaml:"datetime"`
	URL      yaml.Node `yaml:"url"`
	Source   yaml.Node `yaml:"source"`
	Tags     yaml.Node `yaml:"tags"`
}

func present(n yaml.Node) bool {
	return n.Kind != 0
}

func isNull(n yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// scalarValue returns the text of a scalar node. Null becomes "".
func scalarValue(n yaml.Node) (string, bool) {
	if n.Kind != yaml.ScalarNode {
		return "", false
	}
	if isNull(n) {
		return "", true
	}
	return n.Value, true
}

// stringField reads a required key: absent is ErrMissingField, null is
// the empty string, a list or mapping is rejected.
func stringField(n yaml.Node, name string) (string, error) {
	if !present(n) {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	v, ok := scalarValue(n)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got a %s", name, kindName(n.Kind))
	}
	return v, nil
}

// tagList reads tags leniently: a list keeps its non-null scalar items, a
// single scalar becomes a one-element list, anything else is empty.
func tagList(n yaml.Node) []string {
	tags := []string{}
	switch {
	case n.Kind == yaml.SequenceNode:
		for _, item := range n.Content {
			if v, ok := scalarValue(*item); ok && !isNull(*item) {
				tags = append(tags, v)
			}
		}
	case n.Kind == yaml.ScalarNode && !isNull(n):
		tags = append(tags, n.Value)
	}
	return tags
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "value"
	}
}

// ExtractFrontMatter returns the text between the opening "---" line and the
// next "---" line. Without a closing delimiter everything after the opening
// line is returned.
func ExtractFrontMatter(content string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelimiter {
		return "", ErrNoFrontMatter
	}

	block := make([]string, 0, len(lines))
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == frontMatterDelimiter {
			break
		}
		block = append(block, line)
	}
	return strings.Join(block, "\n"), nil
}

func parseFrontMatter(content string) (*frontMatter, error) {
	block, err := ExtractFrontMatter(content)
	if err != nil {
		return nil, err
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, fmt.Errorf("invalid front matter yaml: %w", err)
	}
	return &fm, nil
}

// datetimeLayouts accepts RFC 3339 plus the isoformat variants written by
// older tooling (space separator, no offset, no seconds).
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDatetime parses an ISO-8601 datetime. Values without an offset are
// taken as UTC.
func ParseDatetime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrBadDatetime
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDatetime, value)
}
