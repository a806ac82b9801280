// Package vault persists bookmarks as markdown files with YAML front matter
// and reads them back for index generation.
package vault

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
)

// Extension is the file extension of persisted bookmarks.
const Extension = ".md"

const frontMatterDelimiter = "---"

// ErrUnsafeID is returned for bookmark IDs that cannot be used as a file name.
var ErrUnsafeID = errors.New("bookmark id is not a safe file name")

// Writer writes one markdown file per bookmark into a content directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer for dir. The directory is created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// pathFor returns the file a bookmark with that id is written to.
func (w *Writer) pathFor(id string) string {
	return filepath.Join(w.dir, id+Extension)
}

// Write persists b to {dir}/{b.ID}.md, replacing any existing file with the
// same name. It returns the path written.
func (w *Writer) Write(b domain.Bookmark) (string, error) {
	if err := checkID(b.ID); err != nil {
		return "", err
	}

	data, err := Marshal(b)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}

	path := w.pathFor(b.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write bookmark %s: %w", b.ID, err)
	}
	return path, nil
}

// Marshal renders a bookmark file: front matter, then the subject as a
// heading and the URL on its own line.
func Marshal(b domain.Bookmark) ([]byte, error) {
	if b.Tags == nil {
		b.Tags = []string{}
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelimiter + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}

	buf.WriteString(frontMatterDelimiter + "\n\n")

	if b.Subject != "" {
		fmt.Fprintf(&buf, "# %s\n\n", b.Subject)
	}
	if b.URL != "" {
		fmt.Fprintf(&buf, "%s\n", b.URL)
	}

	return buf.Bytes(), nil
}

func checkID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrUnsafeID)
	case strings.ContainsAny(id, `/\`), strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: %q", ErrUnsafeID, id)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrUnsafeID, id)
	}
	return nil
}
