package vault

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestLoaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := sampleBookmark()
	b.Tags = []string{"manual", "youtube"}

	if _, err := NewWriter(dir).Write(b); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	entries, skipped, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("Load() skipped %v", skipped)
	}
	if len(entries) != 1 {
		t.Fatalf("Load() returned %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.Title != b.Subject || e.URL != b.URL || e.Source != b.Source {
		t.Errorf("entry = %+v, want fields of %+v", e, b)
	}
	if !reflect.DeepEqual(e.Tags, b.Tags) {
		t.Errorf("entry tags = %v, want %v", e.Tags, b.Tags)
	}
	if e.Domain != "youtube.com" {
		t.Errorf("entry domain = %q, want youtube.com", e.Domain)
	}
	if e.DatetimeDisplay != "2024-03-01 10:15" {
		t.Errorf("entry display = %q", e.DatetimeDisplay)
	}
	if e.DetailsPath != "2024-03-01-hello-world-1.md" {
		t.Errorf("entry details path = %q", e.DetailsPath)
	}
}

func TestLoaderSortsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	dates := map[string]string{
		"a": "2024-01-01T00:00:00+00:00",
		"b": "2024-06-01T12:00:00+02:00",
		"c": "2023-12-31T23:59:59+00:00",
		"d": "2024-06-01T12:00:00+02:00",
	}
	for id, dt := range dates {
		b := sampleBookmark()
		b.ID = id
		b.Subject = id
		b.Datetime = dt
		if _, err := w.Write(b); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	entries, _, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var titles []string
	for i, e := range entries {
		titles = append(titles, e.Title)
		if i > 0 && entries[i-1].Datetime.Before(e.Datetime) {
			t.Errorf("entries not sorted at %d", i)
		}
	}
	// Ties keep file-name order.
	want := []string{"b", "d", "a", "c"}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("Load() order = %v, want %v", titles, want)
	}
}

func TestLoaderSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "no-front-matter.md", "# Title\n\nhttps://example.com\n")
	writeFile(t, dir, "bad-yaml.md", "---\nsubject: [unclosed\n---\n")
	writeFile(t, dir, "missing-url.md", "---\nsubject: x\ndatetime: '2024-01-01T00:00:00+00:00'\n---\n")
	writeFile(t, dir, "missing-subject.md", "---\nurl: https://example.com\ndatetime: '2024-01-01T00:00:00+00:00'\n---\n")
	writeFile(t, dir, "empty.md", "")
	writeFile(t, dir, "ignored.txt", "---\nsubject: x\nurl: https://example.com\n---\n")
	writeFile(t, dir, "ok.md", "---\nsubject: ok\nurl: https://example.com\ndatetime: '2024-01-01T00:00:00+00:00'\n---\n")

	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "nested"), "deep.md", "---\nsubject: deep\nurl: https://example.com\ndatetime: '2024-01-01T00:00:00+00:00'\n---\n")

	entries, skipped, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "ok" {
		t.Errorf("Load() entries = %+v, want only ok.md", entries)
	}
	if len(skipped) != 5 {
		t.Errorf("Load() skipped %d files, want 5: %+v", len(skipped), skipped)
	}

	reasons := map[string]error{}
	for _, s := range skipped {
		reasons[filepath.Base(s.Path)] = s.Reason
	}
	if !errors.Is(reasons["no-front-matter.md"], ErrNoFrontMatter) {
		t.Errorf("no-front-matter.md reason = %v", reasons["no-front-matter.md"])
	}
	if !errors.Is(reasons["missing-url.md"], ErrMissingField) {
		t.Errorf("missing-url.md reason = %v", reasons["missing-url.md"])
	}
	if !errors.Is(reasons["missing-subject.md"], ErrMissingField) {
		t.Errorf("missing-subject.md reason = %v", reasons["missing-subject.md"])
	}
}

func TestLoaderLooselyTypedFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-scalar-tags.md", "---\nsubject: scalar tags\nurl: https://example.com/a\ndatetime: 2024-01-04T00:00:00+00:00\ntags: manual\n---\n")
	writeFile(t, dir, "b-text-item.md", "---\nsubject: text item\nurl: https://example.com/b\ndatetime: 2024-01-03T00:00:00+00:00\nitem: first\nid: [not, a, string]\nfrom: {name: me}\n---\n")
	writeFile(t, dir, "c-odd-tags.md", "---\nsubject: odd tags\nurl: https://example.com/c\ndatetime: 2024-01-02T00:00:00+00:00\ntags: {a: b}\nsource: [x]\n---\n")
	writeFile(t, dir, "d-null-subject.md", "---\nsubject:\nurl: https://example.com/d\ndatetime: 2024-01-01T00:00:00+00:00\ntags: [go, ~, 42]\n---\n")
	writeFile(t, dir, "e-list-subject.md", "---\nsubject: [a, b]\nurl: https://example.com/e\ndatetime: 2024-01-01T00:00:00+00:00\n---\n")

	entries, skipped, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Load() kept %d entries, want 4 (skipped: %+v)", len(entries), skipped)
	}
	if len(skipped) != 1 || filepath.Base(skipped[0].Path) != "e-list-subject.md" {
		t.Errorf("Load() skipped = %+v, want only e-list-subject.md", skipped)
	}

	want := []struct {
		title  string
		tags   []string
		source string
	}{
		{"scalar tags", []string{"manual"}, ""},
		{"text item", []string{}, ""},
		{"odd tags", []string{}, ""},
		{"", []string{"go", "42"}, ""},
	}
	for i, w := range want {
		e := entries[i]
		if e.Title != w.title || !reflect.DeepEqual(e.Tags, w.tags) || e.Source != w.source {
			t.Errorf("entry %d = {%q %v %q}, want {%q %v %q}", i, e.Title, e.Tags, e.Source, w.title, w.tags, w.source)
		}
	}
}

func TestLoaderDatetimeHandling(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "no-datetime.md", "---\nsubject: x\nurl: https://example.com\n---\n")
	writeFile(t, dir, "ok.md", "---\nsubject: ok\nurl: https://example.com\ndatetime: '2024-01-01T00:00:00+00:00'\n---\n")

	entries, skipped, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 || len(skipped) != 1 {
		t.Fatalf("Load() = %d entries, %d skipped; want 1, 1", len(entries), len(skipped))
	}
	if !errors.Is(skipped[0].Reason, ErrBadDatetime) {
		t.Errorf("skip reason = %v, want ErrBadDatetime", skipped[0].Reason)
	}

	_, _, err = NewLoader(dir, WithStrictDatetime(true)).Load()
	if !errors.Is(err, ErrBadDatetime) {
		t.Errorf("strict Load() error = %v, want ErrBadDatetime", err)
	}
}

func TestLoaderMissingDirectory(t *testing.T) {
	entries, skipped, err := NewLoader(filepath.Join(t.TempDir(), "absent")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 0 || len(skipped) != 0 {
		t.Errorf("Load() on missing dir = %v, %v", entries, skipped)
	}
}

func TestExtractFrontMatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
		wantErr  bool
	}{
		{name: "simple", content: "---\na: 1\n---\nbody", expected: "a: 1"},
		{name: "crlf", content: "---\r\na: 1\r\n---\r\n", expected: "a: 1"},
		{name: "padded delimiters", content: "--- \na: 1\n  ---\n", expected: "a: 1"},
		{name: "unterminated", content: "---\na: 1\nb: 2", expected: "a: 1\nb: 2"},
		{name: "no delimiter", content: "a: 1\n---\n", wantErr: true},
		{name: "empty", content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFrontMatter(tt.content)
			if tt.wantErr {
				if !errors.Is(err, ErrNoFrontMatter) {
					t.Errorf("ExtractFrontMatter() error = %v, want ErrNoFrontMatter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractFrontMatter() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("ExtractFrontMatter() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseDatetime(t *testing.T) {
	tests := []struct {
		input   string
		display string
		wantErr bool
	}{
		{input: "2024-03-01T10:15:00+00:00", display: "2024-03-01 10:15"},
		{input: "2024-03-01T10:15:00Z", display: "2024-03-01 10:15"},
		{input: "2024-03-01T10:15:00.123456+05:30", display: "2024-03-01 10:15"},
		{input: "2024-03-01 10:15:00+00:00", display: "2024-03-01 10:15"},
		{input: "2024-03-01T10:15:00", display: "2024-03-01 10:15"},
		{input: "2024-03-01", display: "2024-03-01 00:00"},
		{input: "yesterday", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDatetime(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrBadDatetime) {
				t.Errorf("ParseDatetime(%q) error = %v, want ErrBadDatetime", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDatetime(%q) error = %v", tt.input, err)
			continue
		}
		if display := got.Format(domain.DisplayLayout); display != tt.display {
			t.Errorf("ParseDatetime(%q) display = %q, want %q", tt.input, display, tt.display)
		}
	}
}
